package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/analysis"
	"github.com/prometheus88/Simple-PFT-Node/internal/config"
	"github.com/prometheus88/Simple-PFT-Node/internal/history"
	"github.com/prometheus88/Simple-PFT-Node/internal/ledger"
	"github.com/prometheus88/Simple-PFT-Node/internal/responder"
	"github.com/prometheus88/Simple-PFT-Node/internal/rpc"
	"github.com/prometheus88/Simple-PFT-Node/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

func main() {
	// Flags
	memoFlag := flag.String("memo", "", "Analyze a single memo and exit")
	recentFlag := flag.Int("recent", 0, "Analyze the memos of the N most recent incoming payments and exit")
	modelFlag := flag.String("model", "", "Override the configured model name")
	flag.Parse()

	// Logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.WarnLevel)

	// Config
	cfg := config.Load()
	if cfg.AnalysisAPIKey == "" {
		logger.Fatal("OPENAI_API_KEY is required for the analyze tool. Please set it in your environment or config.")
	}
	model := cfg.AnalysisModel
	if *modelFlag != "" {
		model = *modelFlag
	}

	// Context + signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	client, err := analysis.NewClient(analysis.ClientConfig{
		APIKey:       cfg.AnalysisAPIKey,
		BaseURL:      cfg.AnalysisBaseURL,
		Model:        model,
		Timeout:      cfg.AnalysisTimeout,
		MaxMemoRunes: cfg.MaxMemoRunes,
		Logger:       logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create analysis client")
	}

	// Single-shot mode
	if *memoFlag != "" {
		printAnalysis(ctx, client, *memoFlag)
		return
	}

	// History mode: pull recent incoming payments and analyze their memos.
	if *recentFlag > 0 {
		if err := runRecent(ctx, logger, cfg, client, *recentFlag); err != nil {
			logger.WithError(err).Fatal("history scan failed")
		}
		return
	}

	// REPL mode
	runREPL(ctx, client)
}

func printAnalysis(ctx context.Context, client *analysis.Client, memo string) {
	result := client.Analyze(ctx, memo)
	if !result.OK {
		fmt.Println("analysis failed")
		return
	}
	fmt.Printf("Model: %s\n\n%s\n", result.Model, result.Text)
}

func runRecent(ctx context.Context, logger *logrus.Logger, cfg *config.Config, client *analysis.Client, limit int) error {
	if cfg.TokenMint == "" || cfg.WalletKey == "" {
		return fmt.Errorf("PFT_MINT and NODE_WALLET_KEY are required to scan payment history")
	}

	primaryRPC := ledger.PrimaryRPCURL(cfg)
	w, err := wallet.NewWallet(wallet.WalletConfig{
		RPCURL:     primaryRPC,
		Timeout:    cfg.HTTPTimeout,
		PrivateKey: cfg.WalletKey,
	})
	if err != nil {
		return fmt.Errorf("invalid NODE_WALLET_KEY: %w", err)
	}

	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return fmt.Errorf("invalid PFT_MINT: %w", err)
	}
	nodeATA, _, err := responder.FindAssociatedTokenAddress(w.PublicKey(), mint)
	if err != nil {
		return err
	}

	scanner, err := history.NewScanner(history.ScannerConfig{
		Client: rpc.NewClient(rpc.ClientConfig{
			BaseURL: primaryRPC,
			Timeout: cfg.HTTPTimeout,
			Logger:  logger,
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	payments, err := scanner.Payments(ctx, nodeATA, nodeATA, limit)
	if err != nil {
		return err
	}
	if len(payments) == 0 {
		fmt.Println("no incoming payments found")
		return nil
	}

	for _, p := range payments {
		fmt.Printf("%s | %.4f from %s\n", short(p.Signature), p.UIAmount(), short(p.From))
		if p.Memo == "" {
			fmt.Println("  (no memo)")
			continue
		}
		fmt.Printf("  memo: %s\n", p.Memo)

		result := client.Analyze(ctx, p.Memo)
		if !result.OK {
			fmt.Println("  analysis failed")
			continue
		}
		fmt.Printf("  analysis: %s\n\n", result.Text)
	}
	return nil
}

func short(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}

func runREPL(ctx context.Context, client *analysis.Client) {
	fmt.Println("PFT Memo Analyzer")
	fmt.Println("Type a memo and press Enter. Empty line to exit.")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		memo, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("error reading input:", err)
			return
		}
		memo = strings.TrimSpace(memo)
		if memo == "" {
			fmt.Println("bye")
			return
		}

		// Short cooldown to avoid hammering the LLM if user spams enter.
		time.Sleep(200 * time.Millisecond)

		printAnalysis(ctx, client, memo)
		fmt.Println()
	}
}
