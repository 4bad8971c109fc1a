package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"habitxp/internal/config"
	"habitxp/internal/game"
	"habitxp/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("dotenv", "err", err)
	}
	cfg, err := config.LoadWorkerFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	rules, err := config.LoadRules(cfg.BalanceFile)
	if err != nil {
		logger.Warn("balance file ignored", "err", err)
	}

	backend, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Error("store open failed", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	svc, err := game.Open(ctx, backend, game.Options{Rules: &rules, Logger: logger})
	if err != nil {
		if svc == nil {
			_ = backend.Close()
			logger.Error("service init failed", "err", err)
			os.Exit(1)
		}
		logger.Warn("initial save failed", "err", err)
	}
	defer svc.Close()
	if err := svc.SafeMode(); err != nil {
		logger.Warn("running in safe mode", "err", err)
	}

	check := func(trigger string) {
		report, err := svc.CheckForDailyReset(ctx)
		if err != nil {
			logger.Error("daily reset check failed", "trigger", trigger, "err", err)
			return
		}
		if report.Ran {
			logger.Info("daily reset complete",
				"trigger", trigger,
				"game_date", report.GameDate,
				"transferred", report.Rollover.Transferred,
				"overflowed", report.Rollover.Overflowed,
				"crystals", report.Rollover.Converted,
			)
			return
		}
		logger.Debug("daily reset not due", "trigger", trigger, "game_date", report.GameDate)
	}

	if cfg.RunOnce {
		check("run_once")
		logger.Info("worker run-once completed")
		return
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.ResetSchedule, func() { check("cron") }); err != nil {
		logger.Error("invalid reset schedule", "schedule", cfg.ResetSchedule, "err", err)
		os.Exit(1)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	ticker := time.NewTicker(cfg.CheckEvery)
	defer ticker.Stop()

	logger.Info("worker started", "schedule", cfg.ResetSchedule, "check_every", cfg.CheckEvery.String(), "storage", cfg.Storage.Driver)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutdown")
			return
		case <-ticker.C:
			check("ticker")
		}
	}
}
