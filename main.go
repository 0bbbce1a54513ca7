package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"cryptorank/config"
	"cryptorank/internal/audit"
	"cryptorank/internal/metrics"
	"cryptorank/internal/pipeline"
	"cryptorank/internal/provider/registry"
	"cryptorank/logger"
)

const (
	exitOK     = 0
	exitConfig = 1
	exitHalted = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	path := config.ResolvePath(*configPath)
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"path": path}).Error("Failed to load configuration")
		return exitConfig
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		return exitConfig
	}

	runID := uuid.NewString()
	started := time.Now()
	runLog := log.WithRun(runID)

	runLog.WithFields(logger.Fields{
		"service":     cfg.Cryptorank.Name,
		"version":     cfg.Cryptorank.Version,
		"environment": config.AppEnvironment(),
		"config":      path,
	}).Info("starting cryptorank")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}

	sink, err := audit.NewFileSink(cfg.Audit.Dir, started)
	if err != nil {
		runLog.WithComponent("main").WithError(err).Error("failed to create audit file")
		return exitConfig
	}
	if cfg.Audit.Archive.Enabled {
		archiver, err := audit.NewS3Archiver(ctx, cfg.Audit.Archive)
		if err != nil {
			runLog.WithComponent("main").WithError(err).Warn("audit archive disabled")
		} else {
			sink.WithArchiver(archiver)
		}
	} else {
		runLog.WithComponent("main").Info("audit archive disabled; keeping local file only")
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		if err := sink.Close(closeCtx); err != nil {
			runLog.WithComponent("main").WithError(err).Warn("failed to close audit file")
		}
	}()

	providers, err := registry.Build(cfg)
	if err != nil {
		runLog.WithComponent("main").WithError(err).Error("failed to build providers")
		return exitConfig
	}

	r, err := pipeline.NewRun(cfg, providers, sink, runID)
	if err != nil {
		runLog.WithComponent("main").WithError(err).Error("failed to prepare run")
		return exitConfig
	}

	res, err := r.Execute(ctx)
	if err != nil {
		var halt *pipeline.HaltError
		if errors.As(err, &halt) {
			runLog.WithComponent("main").WithFields(logger.Fields{
				"stage": string(halt.Stage),
				"audit": sink.Path(),
			}).Error("cryptorank stopped early")
			return exitHalted
		}
		runLog.WithComponent("main").WithError(err).Error("run failed")
		return exitHalted
	}

	runLog.WithComponent("main").WithFields(logger.Fields{
		"selected": res.Selection.ModelingSet.Sorted(),
		"series":   len(res.Series),
		"prices":   len(res.Prices),
		"audit":    sink.Path(),
		"elapsed":  res.Elapsed.String(),
	}).Info("cryptorank finished")
	return exitOK
}
