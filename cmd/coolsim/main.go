package main

import (
	"context"
	"log"

	"coolsim/internal/engine"
	"coolsim/internal/handlers"
	"coolsim/internal/repository"
	"coolsim/internal/service"
	"coolsim/internal/session"
	"coolsim/migrations"
	"coolsim/pkg/config"
	"coolsim/pkg/database"
	"coolsim/pkg/logger"
	"coolsim/pkg/metrics"
	"coolsim/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	prometheus.MustRegister(metrics.NewRuntimeCollector(cfg.Metrics.Namespace, cfg.Metrics.Subsystem))

	// Хранилище записей шагов
	repos, err := repository.NewRepositories(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to create repositories", "error", err)
	}
	defer repos.Close()

	if db := repos.DB(); db != nil && cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.FS, migrations.Dir); err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
	}

	// Ресурсы симуляции: таблица возмущений, веса суррогата, кадры
	// прогрева, базовое наблюдение
	table, estimator, warmup, baseline, err := session.LoadResources(
		cfg.Simulation.ResourcesDir,
		int64(cfg.Simulation.BaseUnit.Seconds()),
	)
	if err != nil {
		logger.Fatal("failed to load simulation resources", "error", err)
	}

	version, err := session.LoadVersion(cfg.Simulation.ResourcesDir)
	if err != nil {
		logger.Warn("Failed to read version file, using app version", "error", err)
		version = cfg.App.Version
	}

	// Клиент физического движка
	solver := engine.NewSolverClient(&cfg.Engine)

	sess, err := session.New(session.Config{
		BaseUnit: int64(cfg.Simulation.BaseUnit.Seconds()),
		Horizon:  int64(cfg.Simulation.Horizon.Seconds()),
		Step:     int64(cfg.Simulation.Step.Seconds()),
	}, solver, table, estimator, warmup, baseline)
	if err != nil {
		logger.Fatal("failed to create simulation session", "error", err)
	}

	simulationService := service.NewSimulationService(sess, repos.StepRecords, cfg.Simulation.Name, version)

	srv := server.New(cfg)
	handlers.NewSimulationHandler(simulationService).Register(srv)

	logger.Info("Starting cooling plant simulation service",
		"port", cfg.HTTP.Port,
		"engine_addr", cfg.Engine.Address(),
		"resources_dir", cfg.Simulation.ResourcesDir,
		"environment", cfg.App.Environment,
		"version", version,
	)

	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}
