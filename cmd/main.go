package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kpszeniczka/temperature-calibration-system/internal/calibration"
	"github.com/kpszeniczka/temperature-calibration-system/internal/config"
	"github.com/kpszeniczka/temperature-calibration-system/internal/device"
	"github.com/kpszeniczka/temperature-calibration-system/internal/handlers"
	"github.com/kpszeniczka/temperature-calibration-system/internal/logger"
	"github.com/kpszeniczka/temperature-calibration-system/internal/repository"
	"github.com/kpszeniczka/temperature-calibration-system/internal/repository/db"
	"github.com/kpszeniczka/temperature-calibration-system/internal/server"
	"github.com/kpszeniczka/temperature-calibration-system/internal/service"
)

const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Default().Fatalw("error reading config", "err", err)
	}

	log := logger.Get(cfg.Log.Level)

	conn, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)
	furnace, multimeter := device.New(cfg.Devices, log)
	engine := calibration.NewEngine(furnace, multimeter, cfg.Run, cfg.Budget, log.Named("engine"))
	services := service.NewService(repos, engine, cfg.Auth)
	apiHandler := handlers.NewHandler(services, log)

	if cfg.Devices.UseSimulators {
		if err := engine.ConnectDevices(cfg.Devices.FurnacePort, cfg.Devices.MultimeterPort); err != nil {
			log.Errorw("failed to connect simulated instruments", "err", err)
		}
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(srv, engine, log)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg config.Settings, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DB.Path
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "calibration.db")
		path = "calibration.db"
	}
	return db.InitDB(path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals, asks a live run to stop,
// and performs graceful HTTP shutdown.
func waitForShutdown(srv *server.Server, engine *calibration.Engine, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// ask the worker to stop at its next safe checkpoint
	engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
