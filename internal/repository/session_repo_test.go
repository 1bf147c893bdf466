package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

func newMockSessionRepo(t *testing.T) (*SessionSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	repo := NewSessionSQLite(db)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func sessionColumns() []string {
	return []string{
		"session_id", "start_time", "end_time", "operator", "client",
		"order_number", "ambient_temperature", "relative_humidity", "notes",
	}
}

func TestSessionSQLite_Create(t *testing.T) {
	repo, mock, cleanup := newMockSessionRepo(t)
	defer cleanup()

	ambient := 23.5
	info := models.SessionInfo{
		Operator:    "kp",
		Client:      "acme",
		OrderNumber: "ZL-17",
		AmbientC:    &ambient,
		Notes:       "routine recalibration",
	}

	mock.ExpectExec(regexp.QuoteMeta(insertSessionSQL)).
		WithArgs(sqlmock.AnyArg(), "kp", "acme", "ZL-17", 23.5, nil, "routine recalibration").
		WillReturnResult(sqlmock.NewResult(11, 1))

	id, err := repo.Create(context.Background(), info)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != 11 {
		t.Errorf("id = %d, want 11", id)
	}
}

func TestSessionSQLite_UpdateEndTime(t *testing.T) {
	repo, mock, cleanup := newMockSessionRepo(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(updateSessionEndSQL)).
		WithArgs(sqlmock.AnyArg(), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateEndTime(context.Background(), 4); err != nil {
		t.Fatalf("UpdateEndTime: %v", err)
	}
}

func TestSessionSQLite_Get(t *testing.T) {
	t.Run("found with open end time", func(t *testing.T) {
		repo, mock, cleanup := newMockSessionRepo(t)
		defer cleanup()

		started := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows(sessionColumns()).
			AddRow(int64(3), started, nil, "kp", "", "", nil, nil, "")
		mock.ExpectQuery(regexp.QuoteMeta(selectSessionSQL)).
			WithArgs(int64(3)).
			WillReturnRows(rows)

		s, err := repo.Get(context.Background(), 3)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if s == nil || s.ID != 3 || s.Operator != "kp" {
			t.Fatalf("session = %+v", s)
		}
		if !s.StartTime.Equal(started) {
			t.Errorf("start = %v, want %v", s.StartTime, started)
		}
		if s.EndTime != nil {
			t.Errorf("end time = %v, want nil for an open session", s.EndTime)
		}
	})

	t.Run("missing yields nil, nil", func(t *testing.T) {
		repo, mock, cleanup := newMockSessionRepo(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(selectSessionSQL)).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(sessionColumns()))

		s, err := repo.Get(context.Background(), 99)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if s != nil {
			t.Errorf("session = %+v, want nil", s)
		}
	})
}

func TestSessionSQLite_List(t *testing.T) {
	repo, mock, cleanup := newMockSessionRepo(t)
	defer cleanup()

	now := time.Now().UTC()
	ended := now.Add(30 * time.Minute)
	rows := sqlmock.NewRows(sessionColumns()).
		AddRow(int64(2), now, ended, "kp", "", "", nil, nil, "").
		AddRow(int64(1), now.Add(-time.Hour), nil, "mg", "", "", nil, nil, "")
	mock.ExpectQuery(regexp.QuoteMeta(listSessionsSQL)).
		WithArgs(5).
		WillReturnRows(rows)

	out, err := repo.List(context.Background(), 5)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != 2 || out[1].ID != 1 {
		t.Errorf("order = %d, %d; want 2, 1", out[0].ID, out[1].ID)
	}
	if out[0].EndTime == nil {
		t.Error("closed session lost its end time")
	}
}

func TestSessionSQLite_ListDefaultsLimit(t *testing.T) {
	repo, mock, cleanup := newMockSessionRepo(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(listSessionsSQL)).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(sessionColumns()))

	if _, err := repo.List(context.Background(), 0); err != nil {
		t.Fatalf("List: %v", err)
	}
}

func TestSessionSQLite_Delete(t *testing.T) {
	repo, mock, cleanup := newMockSessionRepo(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(deleteSessionSQL)).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), 8); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(deleteSessionSQL)).
		WithArgs(int64(9)).
		WillReturnError(errors.New("locked"))
	if err := repo.Delete(context.Background(), 9); err == nil {
		t.Fatal("expected error, got nil")
	}
}
