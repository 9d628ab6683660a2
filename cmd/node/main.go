package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/analysis"
	"github.com/prometheus88/Simple-PFT-Node/internal/archive"
	"github.com/prometheus88/Simple-PFT-Node/internal/cache"
	"github.com/prometheus88/Simple-PFT-Node/internal/config"
	"github.com/prometheus88/Simple-PFT-Node/internal/dedup"
	"github.com/prometheus88/Simple-PFT-Node/internal/events"
	"github.com/prometheus88/Simple-PFT-Node/internal/filter"
	"github.com/prometheus88/Simple-PFT-Node/internal/history"
	"github.com/prometheus88/Simple-PFT-Node/internal/ledger"
	"github.com/prometheus88/Simple-PFT-Node/internal/metrics"
	"github.com/prometheus88/Simple-PFT-Node/internal/monitor"
	"github.com/prometheus88/Simple-PFT-Node/internal/responder"
	"github.com/prometheus88/Simple-PFT-Node/internal/rpc"
	"github.com/prometheus88/Simple-PFT-Node/internal/server"
	"github.com/prometheus88/Simple-PFT-Node/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
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

// main wires the full pipeline: ledger stream -> filter -> dedup -> analysis
// -> reply, with the HTTP API running alongside.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg, err := config.MustLoad()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		logger.WithError(err).Fatal("invalid PFT_MINT")
	}

	// A wallet bound to the primary endpoint validates the key and names the
	// node before any stream exists. Replies get their own per-endpoint
	// wallets later.
	primaryRPC := ledger.PrimaryRPCURL(cfg)
	bootstrap, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:     primaryRPC,
		Timeout:    cfg.HTTPTimeout,
		PrivateKey: cfg.WalletKey,
	})
	if err != nil {
		logger.WithError(err).Fatal("invalid NODE_WALLET_KEY")
	}
	nodeKey := bootstrap.PublicKey()

	nodeATA, _, err := responder.FindAssociatedTokenAddress(nodeKey, mint)
	if err != nil {
		logger.WithError(err).Fatal("failed to derive node token account")
	}

	logger.WithFields(logrus.Fields{
		"wallet":        nodeKey.String(),
		"token_account": nodeATA.String(),
		"mint":          cfg.TokenMint,
	}).Info("node identity")

	// An unfunded fee payer should be visible at startup, not at the first
	// reply.
	balCtx, balCancel := context.WithTimeout(ctx, 10*time.Second)
	if sol, err := bootstrap.GetBalanceSOL(balCtx); err != nil {
		logger.WithError(err).Warn("could not read SOL balance")
	} else if sol == 0 {
		logger.Warn("fee payer has no SOL, replies will fail")
	} else {
		logger.WithField("sol", sol).Info("fee payer balance")
	}
	balCancel()

	store, err := dedup.Open(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to open dedup store")
	}
	defer store.Close()

	if cfg.RebuildDedup {
		scanner, err := history.NewScanner(history.ScannerConfig{
			Client: rpc.NewClient(rpc.ClientConfig{
				BaseURL:      primaryRPC,
				Timeout:      cfg.HTTPTimeout,
				MaxRetries:   cfg.MaxRetries,
				RetryBackoff: cfg.RetryBackoff,
				Logger:       logger,
			}),
			Logger: logger,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to create history scanner")
		}
		// Subscribing with partial dedup state risks answering a payment
		// twice, so a failed rebuild is fatal.
		if _, err := scanner.RebuildDedup(ctx, nodeKey, nodeATA, store); err != nil {
			logger.WithError(err).Fatal("dedup rebuild failed")
		}
	}

	// Side-effect services are optional; the node answers payments without
	// them.
	var responseCache *cache.Cache
	if cfg.RedisAddr != "" {
		c, err := cache.NewCache(ctx, cfg.RedisAddr, logger)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, continuing without cache")
		} else {
			responseCache = c
			defer responseCache.Close()
		}
	}

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
		} else if err := a.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("clickhouse schema setup failed, continuing without archive")
			_ = a.Close()
		} else {
			responseArchive = a
			defer responseArchive.Close()
		}
	}

	var publisher events.Publisher
	if cfg.NatsURL != "" {
		p, err := events.NewPublisher(cfg.NatsURL, logger)
		if err != nil {
			logger.WithError(err).Warn("nats unavailable, continuing without events")
		} else {
			publisher = p
			defer publisher.Close()
		}
	}

	registry := prometheus.NewRegistry()
	nodeMetrics := metrics.NewMetrics(registry)

	analyzer, err := analysis.NewClient(analysis.ClientConfig{
		APIKey:       cfg.AnalysisAPIKey,
		BaseURL:      cfg.AnalysisBaseURL,
		Model:        cfg.AnalysisModel,
		Timeout:      cfg.AnalysisTimeout,
		MaxMemoRunes: cfg.MaxMemoRunes,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create analysis client")
	}

	manager := ledger.NewManager(ledger.ManagerConfig{
		Endpoints:      ledger.Endpoints(cfg),
		ConnectTimeout: cfg.ConnectTimeout,
		HTTPTimeout:    cfg.HTTPTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		Logger:         logger,
	})

	payFilter := filter.NewFilter(filter.FilterConfig{
		WalletAddress: nodeKey,
		TokenAccount:  nodeATA,
		Mint:          mint,
		Logger:        logger,
	})

	// Replies are signed and confirmed against whichever endpoint the
	// current session landed on.
	newReplier := func(ep ledger.Endpoint) (monitor.Replier, error) {
		w, err := wallet.NewWallet(wallet.WalletConfig{
			RPCURL:       ep.RPCURL,
			Timeout:      cfg.HTTPTimeout,
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
			PrivateKey:   cfg.WalletKey,
		})
		if err != nil {
			return nil, err
		}
		return responder.NewResponder(responder.ResponderConfig{
			Wallet:         w,
			Mint:           mint,
			Decimals:       uint8(cfg.TokenDecimals),
			Amount:         cfg.ResponseAmount,
			ConfirmTimeout: cfg.ConfirmTimeout,
			Logger:         logger,
		})
	}

	mon, err := monitor.NewMonitor(monitor.MonitorConfig{
		Connector:              monitor.NewManagerConnector(manager),
		Filter:                 payFilter,
		Dedup:                  store,
		Analyzer:               analyzer,
		NewReplier:             newReplier,
		Wallet:                 nodeKey,
		TokenAccount:           nodeATA,
		Mint:                   mint,
		AnalysisRetries:        cfg.AnalysisRetries,
		RetryBackoff:           cfg.RetryBackoff,
		ReconnectBackoff:       cfg.ReconnectBackoff,
		MaxReconnectBackoff:    cfg.MaxReconnectBackoff,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		Cache:                  responseCache,
		Archive:                responseArchive,
		Events:                 publisher,
		Metrics:                nodeMetrics,
		Logger:                 logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create monitor")
	}

	h := &server.Handlers{
		Status:   mon,
		Cache:    responseCache,
		Archive:  responseArchive,
		Analyzer: analyzer,
		Metrics:  registry,
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

	monDone := make(chan error, 1)
	go func() { monDone <- mon.Run(ctx) }()

	// A monitor that gives up takes the whole process down so an operator
	// notices.
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
		case err := <-monDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("monitor stopped")
			}
		}
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
