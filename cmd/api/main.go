package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/prometheus88/Simple-PFT-Node/internal/analysis"
	"github.com/prometheus88/Simple-PFT-Node/internal/archive"
	"github.com/prometheus88/Simple-PFT-Node/internal/cache"
	"github.com/prometheus88/Simple-PFT-Node/internal/config"
	"github.com/prometheus88/Simple-PFT-Node/internal/server"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main runs the read-only API against the stores the node writes to. It
// needs no wallet key, so it can run on a separate host from the node.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Redis is the standalone API's data source: without it there is no
	// status and no recent responses to serve.
	responseCache, err := cache.NewCache(ctx, cfg.RedisAddr, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer responseCache.Close()

	var responseArchive *archive.Archive
	if cfg.ClickHouseAddr != "" {
		a, err := archive.NewArchive(ctx, archive.ArchiveConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("clickhouse unavailable, continuing without archive")
		} else {
			responseArchive = a
			defer responseArchive.Close()
		}
	}

	// Ad-hoc analysis is only wired up when a key is configured.
	var analyzer server.Analyzer
	if cfg.AnalysisAPIKey != "" {
		a, err := analysis.NewClient(analysis.ClientConfig{
			APIKey:       cfg.AnalysisAPIKey,
			BaseURL:      cfg.AnalysisBaseURL,
			Model:        cfg.AnalysisModel,
			Timeout:      cfg.AnalysisTimeout,
			MaxMemoRunes: cfg.MaxMemoRunes,
			Logger:       logger,
		})
		if err != nil {
			logger.WithError(err).Warn("failed to create analysis client")
		} else {
			analyzer = a
		}
	}

	h := &server.Handlers{
		Cache:    responseCache,
		Archive:  responseArchive,
		Analyzer: analyzer,
		DevMode:  cfg.DevMode,
		Logger:   logger,
	}
	srv, err := server.NewServer(h, server.ServerConfig{
		Addr:    cfg.APIAddr,
		DevMode: cfg.DevMode,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
