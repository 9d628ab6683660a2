package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"
	"github.com/prometheus88/Simple-PFT-Node/internal/responder"
	"github.com/prometheus88/Simple-PFT-Node/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

// Operator tool for the node wallet: generate a key, check balances, create
// the token account, and wrap or unwrap SOL for fees.
func main() {
	loadEnv()

	mode := flag.String("mode", "balance", "keygen | balance | ata | wrap | unwrap")
	amt := flag.Float64("amt", 0, "SOL amount for -mode wrap (e.g. 0.1)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// keygen needs no RPC connection or existing key.
	if *mode == "keygen" {
		priv, err := solana.NewRandomPrivateKey()
		if err != nil {
			fmt.Println("keygen failed:", err)
			os.Exit(1)
		}
		fmt.Printf("address=%s\nprivate_key=%s\n", priv.PublicKey(), priv.String())
		return
	}

	w, err := wallet.NewWalletFromEnv()
	if err != nil {
		fmt.Println("failed to init wallet (set SOLANA_RPC_URL and NODE_WALLET_KEY):", err)
		os.Exit(1)
	}
	defer w.Close()

	switch *mode {
	case "balance":
		if err := showBalance(ctx, w); err != nil {
			fmt.Println("balance failed:", err)
			os.Exit(1)
		}
	case "ata":
		if err := ensureATA(ctx, w); err != nil {
			fmt.Println("ata failed:", err)
			os.Exit(1)
		}
	case "wrap":
		if *amt <= 0 {
			fmt.Println("missing -amt (must be > 0)")
			os.Exit(2)
		}
		if err := wrapSOL(ctx, w, *amt); err != nil {
			fmt.Println("wrap failed:", err)
			os.Exit(1)
		}
	case "unwrap":
		if err := unwrapSOL(ctx, w); err != nil {
			fmt.Println("unwrap failed:", err)
			os.Exit(1)
		}
	default:
		fmt.Println("invalid -mode (use keygen|balance|ata|wrap|unwrap)")
		os.Exit(2)
	}
}

func showBalance(ctx context.Context, w *wallet.Wallet) error {
	sol, err := w.GetBalanceSOL(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("address=%s sol=%.6f\n", w.Address(), sol)

	mintStr := os.Getenv("PFT_MINT")
	if mintStr == "" {
		return nil
	}
	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		return fmt.Errorf("invalid PFT_MINT: %w", err)
	}
	ata, _, err := responder.FindAssociatedTokenAddress(w.PublicKey(), mint)
	if err != nil {
		return err
	}

	exists, err := w.AccountExists(ctx, ata)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Printf("token_account=%s (not created yet, run -mode ata)\n", ata)
		return nil
	}

	amount, decimals, err := w.GetTokenBalance(ctx, ata)
	if err != nil {
		return err
	}
	ui := float64(amount)
	for i := uint8(0); i < decimals; i++ {
		ui /= 10
	}
	fmt.Printf("token_account=%s balance=%.6f\n", ata, ui)
	return nil
}

// ensureATA creates the node's token account for the designated mint so the
// node can receive payments.
func ensureATA(ctx context.Context, w *wallet.Wallet) error {
	mintStr := os.Getenv("PFT_MINT")
	if mintStr == "" {
		return fmt.Errorf("PFT_MINT is required")
	}
	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		return fmt.Errorf("invalid PFT_MINT: %w", err)
	}
	ata, _, err := responder.FindAssociatedTokenAddress(w.PublicKey(), mint)
	if err != nil {
		return err
	}

	exists, err := w.AccountExists(ctx, ata)
	if err != nil {
		return err
	}
	if exists {
		fmt.Printf("token_account=%s already exists\n", ata)
		return nil
	}

	ix := responder.NewCreateAssociatedTokenAccountIx(w.PublicKey(), ata, w.PublicKey(), mint)
	sig, err := w.SignAndSend(ctx, []solana.Instruction{ix}, nil)
	if err != nil {
		return err
	}
	slot, err := w.ConfirmTransaction(ctx, sig, "confirmed", 60*time.Second)
	if err != nil {
		return err
	}
	fmt.Printf("token_account=%s created sig=%s slot=%d\n", ata, sig, slot)
	return nil
}

func wrapSOL(ctx context.Context, w *wallet.Wallet, amt float64) error {
	wsol := solana.MustPublicKeyFromBase58(constants.WrappedSOLMint)
	ata, _, err := responder.FindAssociatedTokenAddress(w.PublicKey(), wsol)
	if err != nil {
		return err
	}

	lamports := uint64(amt * 1e9)

	var instructions []solana.Instruction
	exists, err := w.AccountExists(ctx, ata)
	if err != nil {
		return err
	}
	if !exists {
		instructions = append(instructions, responder.NewCreateAssociatedTokenAccountIx(w.PublicKey(), ata, w.PublicKey(), wsol))
	}
	instructions = append(instructions,
		responder.NewSystemTransferIx(w.PublicKey(), ata, lamports),
		responder.NewTokenSyncNativeIx(ata),
	)

	sig, err := w.SignAndSend(ctx, instructions, nil)
	if err != nil {
		return err
	}
	slot, err := w.ConfirmTransaction(ctx, sig, "confirmed", 60*time.Second)
	if err != nil {
		return err
	}
	fmt.Printf("wrapped=%.6f account=%s sig=%s slot=%d\n", amt, ata, sig, slot)
	return nil
}

// unwrapSOL closes the wSOL account, returning its lamports to the wallet.
func unwrapSOL(ctx context.Context, w *wallet.Wallet) error {
	wsol := solana.MustPublicKeyFromBase58(constants.WrappedSOLMint)
	ata, _, err := responder.FindAssociatedTokenAddress(w.PublicKey(), wsol)
	if err != nil {
		return err
	}

	exists, err := w.AccountExists(ctx, ata)
	if err != nil {
		return err
	}
	if !exists {
		fmt.Println("no wSOL account to close")
		return nil
	}

	ix := responder.NewTokenCloseAccountIx(ata, w.PublicKey(), w.PublicKey())
	sig, err := w.SignAndSend(ctx, []solana.Instruction{ix}, nil)
	if err != nil {
		return err
	}
	slot, err := w.ConfirmTransaction(ctx, sig, "confirmed", 60*time.Second)
	if err != nil {
		return err
	}
	fmt.Printf("closed=%s sig=%s slot=%d\n", ata, sig, slot)
	return nil
}
