package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kintai/internal/amqp"
	"kintai/internal/auth"
	"kintai/internal/cli"
	"kintai/internal/export"
	apphttp "kintai/internal/http"
	applog "kintai/internal/log"
	"kintai/internal/services"
	"kintai/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// AMQP is optional: without it entries stay local and the timesheet
	// mirror is off.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without timesheet mirror", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			logger.Info("AMQP client initialized - entries will mirror via kintai-worker")
		}
	} else {
		logger.Info("AMQP disabled - entries will not mirror to the timesheet")
	}

	entries := services.NewEntryService(repo, amqpClient)
	clock := services.NewClockService(repo, entries)
	creds := auth.NewCredentialStore(repo)

	sessions := session.NewManager(cfg.SessionTTL)
	defer sessions.Stop()

	layout := export.DefaultLayout()
	layout.DayRowOffset = cfg.DayRowOffset
	layout.TaxMultiplier = cfg.TaxMultiplier
	exporter := export.NewExporter(repo, layout)

	srv := apphttp.NewServer(":"+cfg.Port, sessions, creds, clock, entries, exporter)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kintai server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
