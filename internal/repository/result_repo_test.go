package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kpszeniczka/temperature-calibration-system/internal/models"
)

func newMockResultRepo(t *testing.T) (*ResultSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	repo := NewResultSQLite(db)
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet sqlmock expectations: %v", err)
		}
		_ = db.Close()
	}
	return repo, mock, cleanup
}

func resultColumns() []string {
	return []string{
		"channel_name", "point_temperature", "n_measurements", "avg_measured_temp",
		"avg_reference_temp", "std_dev", "error", "max_absolute_error",
		"type_a_uncertainty", "type_b_uncertainty", "standard_uncertainty",
		"expanded_uncertainty", "sensor_class", "is_compliant",
	}
}

func TestResultSQLite_Add(t *testing.T) {
	repo, mock, cleanup := newMockResultRepo(t)
	defer cleanup()

	res := models.PointResult{
		Channel:          "B2",
		PointTarget:      150,
		N:                10,
		AvgMeasured:      150.12,
		AvgReference:     150.01,
		StdDev:           0.03,
		Error:            0.11,
		MaxAbsoluteError: 0.17,
		TypeA:            0.0095,
		TypeB:            0.034,
		Combined:         0.035,
		Expanded:         0.071,
		SensorClass:      "A",
		Compliant:        true,
	}

	mock.ExpectExec(regexp.QuoteMeta(insertResultSQL)).
		WithArgs(int64(5), "B2", 150.0, 10, 150.12, 150.01, 0.03, 0.11,
			0.17, 0.0095, 0.034, 0.035, 0.071, "A", true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Add(context.Background(), 5, res); err != nil {
		t.Fatalf("Add: %v", err)
	}
}

func TestResultSQLite_AddError(t *testing.T) {
	repo, mock, cleanup := newMockResultRepo(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(insertResultSQL)).
		WillReturnError(errors.New("constraint violated"))

	if err := repo.Add(context.Background(), 5, models.PointResult{Channel: "B0"}); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestResultSQLite_ListBySession(t *testing.T) {
	repo, mock, cleanup := newMockResultRepo(t)
	defer cleanup()

	rows := sqlmock.NewRows(resultColumns()).
		AddRow("A0", 50.0, 10, 50.0, 50.0, 0.01, 0.0, 0.02, 0.003, 0.03, 0.031, 0.062, "AA", true).
		AddRow("B0", 50.0, 10, 50.2, 50.0, 0.02, 0.2, 0.25, 0.006, 0.03, 0.031, 0.062, "B", true)
	mock.ExpectQuery(regexp.QuoteMeta(listResultsSQL)).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	out, err := repo.ListBySession(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Channel != "A0" || out[1].Channel != "B0" {
		t.Errorf("order = %s, %s", out[0].Channel, out[1].Channel)
	}
	if out[1].SensorClass != "B" || !out[1].Compliant {
		t.Errorf("B0 = %+v", out[1])
	}
}
