package responder

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"
	"github.com/prometheus88/Simple-PFT-Node/internal/wallet"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// SubmissionError wraps any failure between building and confirming a reply.
// The signature is set once the transaction made it onto the wire.
type SubmissionError struct {
	Stage     string // "build", "send" or "confirm"
	Signature string
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("reply submission failed at %s (%s): %v", e.Stage, e.Signature, e.Err)
	}
	return fmt.Sprintf("reply submission failed at %s: %v", e.Stage, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ResponderConfig holds configuration for the reply sender.
type ResponderConfig struct {
	Wallet *wallet.Wallet

	// The designated token mint and its decimals.
	Mint     solana.PublicKey
	Decimals uint8

	// Raw base units sent with every reply (1 whole token by default).
	Amount uint64

	ConfirmTimeout time.Duration

	Logger *logrus.Logger
}

// Responder builds, signs and submits reply payments.
type Responder struct {
	wallet         *wallet.Wallet
	mint           solana.PublicKey
	decimals       uint8
	amount         uint64
	confirmTimeout time.Duration
	tokenAccounts  TokenAccountResolver
	logger         *logrus.Logger
}

// Result describes a confirmed reply.
type Result struct {
	Signature    string
	Slot         uint64
	Recipient    string
	TokenAccount string
	Memo         string
	CreatedATA   bool
	Duration     time.Duration
}

func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if cfg.Wallet == nil {
		return nil, fmt.Errorf("responder: wallet is nil")
	}
	if err := requirePubkey(cfg.Mint, "mint"); err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}
	if cfg.Amount == 0 {
		return nil, fmt.Errorf("responder: reply amount is zero")
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	return &Responder{
		wallet:         cfg.Wallet,
		mint:           cfg.Mint,
		decimals:       cfg.Decimals,
		amount:         cfg.Amount,
		confirmTimeout: cfg.ConfirmTimeout,
		tokenAccounts:  NewDefaultTokenAccountResolver(cfg.Wallet),
		logger:         cfg.Logger,
	}, nil
}

func (r *Responder) WithTokenAccountResolver(res TokenAccountResolver) *Responder {
	if res != nil {
		r.tokenAccounts = res
	}
	return r
}

// Respond sends the reply payment: cfg.Amount of the token to the sender's
// ATA, with the analysis text and a re:<signature> tag attached as memos.
// On any failure the returned error is a *SubmissionError and no reply is
// considered sent.
func (r *Responder) Respond(ctx context.Context, to solana.PublicKey, analysisText string, inReplyTo string) (*Result, error) {
	start := time.Now()

	if err := requirePubkey(to, "recipient"); err != nil {
		return nil, &SubmissionError{Stage: "build", Err: err}
	}
	if analysisText == "" {
		return nil, &SubmissionError{Stage: "build", Err: fmt.Errorf("analysis text is empty")}
	}

	owner := r.wallet.PublicKey()
	memo := FormatReplyMemo(analysisText)

	sourceATA, _, err := FindAssociatedTokenAddress(owner, r.mint)
	if err != nil {
		return nil, &SubmissionError{Stage: "build", Err: fmt.Errorf("derive source ATA: %w", err)}
	}

	balance, _, err := r.wallet.GetTokenBalance(ctx, sourceATA)
	if err != nil {
		return nil, &SubmissionError{Stage: "build", Err: fmt.Errorf("check token balance: %w", err)}
	}
	if balance < r.amount {
		return nil, &SubmissionError{Stage: "build", Err: fmt.Errorf("insufficient token balance: have %d, need %d", balance, r.amount)}
	}

	dest, err := r.tokenAccounts.Resolve(ctx, to, r.mint)
	if err != nil {
		return nil, &SubmissionError{Stage: "build", Err: fmt.Errorf("resolve recipient token account: %w", err)}
	}

	ixs := make([]solana.Instruction, 0, len(dest.PreIxs)+3)
	ixs = append(ixs, dest.PreIxs...)
	ixs = append(ixs, NewTransferCheckedIx(sourceATA, r.mint, dest.Account, owner, r.amount, r.decimals))
	ixs = append(ixs, NewMemoIx(owner, memo))
	if inReplyTo != "" {
		ixs = append(ixs, NewMemoIx(owner, constants.ReplyTagPrefix+inReplyTo))
	}

	tx, err := r.wallet.BuildTransaction(ctx, ixs)
	if err != nil {
		return nil, &SubmissionError{Stage: "build", Err: err}
	}
	if err := r.wallet.SignTx(tx); err != nil {
		return nil, &SubmissionError{Stage: "build", Err: err}
	}

	sig, err := r.wallet.SendTx(ctx, tx, nil)
	if err != nil {
		return nil, &SubmissionError{Stage: "send", Err: err}
	}

	slot, err := r.wallet.ConfirmTransaction(ctx, sig, "confirmed", r.confirmTimeout)
	if err != nil {
		return nil, &SubmissionError{Stage: "confirm", Signature: sig, Err: err}
	}

	r.logger.WithFields(logrus.Fields{
		"signature":   sig,
		"recipient":   to.String(),
		"amount":      r.amount,
		"created_ata": dest.Created,
		"duration":    time.Since(start),
	}).Info("reply sent")

	return &Result{
		Signature:    sig,
		Slot:         slot,
		Recipient:    to.String(),
		TokenAccount: dest.Account.String(),
		Memo:         memo,
		CreatedATA:   dest.Created,
		Duration:     time.Since(start),
	}, nil
}

// FormatReplyMemo prefixes the analysis and clamps it to the memo size
// limit without splitting a UTF-8 sequence.
func FormatReplyMemo(analysisText string) string {
	return truncateUTF8("Analysis: "+analysisText, constants.MaxMemoBytes)
}

func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
