package filter

import (
	"fmt"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// FilterConfig defines what counts as a qualifying payment
type FilterConfig struct {
	// The node's wallet address (payments from ourselves are ignored)
	WalletAddress solana.PublicKey

	// The node's token account for the designated mint
	TokenAccount solana.PublicKey

	// The designated token mint
	Mint solana.PublicKey

	// Minimum transfer amount in base units (0 means 1)
	MinAmount uint64

	Logger *logrus.Logger
}

// CheckResult explains why a payment did or did not qualify
type CheckResult struct {
	Qualifies bool
	Reason    string

	TxFailed         bool
	NoTransfer       bool
	WrongDestination bool
	WrongMint        bool
	BelowMinAmount   bool
	EmptyMemo        bool
	MissingSender    bool
	SelfPayment      bool
}

// Filter decides which observed payments deserve a response
type Filter struct {
	config FilterConfig
	logger *logrus.Logger
}

// NewFilter creates a filter for the given node identity and mint
func NewFilter(config FilterConfig) *Filter {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	if config.MinAmount == 0 {
		config.MinAmount = 1
	}

	return &Filter{
		config: config,
		logger: config.Logger,
	}
}

// Qualifies reports whether the payment should be answered.
// Rejections are logged at Debug level only.
func (f *Filter) Qualifies(p *models.Payment) bool {
	result := f.Check(p)
	if !result.Qualifies {
		f.logger.WithFields(logrus.Fields{
			"signature": p.Signature,
			"reason":    result.Reason,
		}).Debug("payment does not qualify")
	}
	return result.Qualifies
}

// Check validates a payment against all qualification rules
func (f *Filter) Check(p *models.Payment) *CheckResult {
	result := &CheckResult{Qualifies: true}

	// 1. The transaction must have succeeded on chain
	if p.Failed {
		result.Qualifies = false
		result.TxFailed = true
		result.Reason = "transaction failed on chain"
		return result
	}

	// 2. It must carry a token transfer at all
	if p.Amount == 0 && p.Destination == "" {
		result.Qualifies = false
		result.NoTransfer = true
		result.Reason = "no token transfer found"
		return result
	}

	// 3. The transfer must land on the node's token account
	if p.Destination != f.config.TokenAccount.String() {
		result.Qualifies = false
		result.WrongDestination = true
		result.Reason = fmt.Sprintf("destination %s is not the node token account", p.Destination)
		return result
	}

	// 4. The mint must match when the instruction names one.
	// Plain Transfer instructions carry no mint; the destination check
	// already pins those to the designated mint's token account.
	if p.Mint != "" && p.Mint != f.config.Mint.String() {
		result.Qualifies = false
		result.WrongMint = true
		result.Reason = fmt.Sprintf("mint %s is not the designated token", p.Mint)
		return result
	}

	// 5. Check minimum amount
	if p.Amount < f.config.MinAmount {
		result.Qualifies = false
		result.BelowMinAmount = true
		result.Reason = fmt.Sprintf("amount %d below minimum %d", p.Amount, f.config.MinAmount)
		return result
	}

	// 6. A memo must be present; there is nothing to analyze otherwise
	if p.Memo == "" {
		result.Qualifies = false
		result.EmptyMemo = true
		result.Reason = "no memo attached"
		return result
	}

	// 7. The sender must be known so the reply has somewhere to go
	if p.From == "" {
		result.Qualifies = false
		result.MissingSender = true
		result.Reason = "sender authority unknown"
		return result
	}

	// 8. Never answer the node's own outgoing replies
	if p.From == f.config.WalletAddress.String() {
		result.Qualifies = false
		result.SelfPayment = true
		result.Reason = "payment sent by the node itself"
		return result
	}

	return result
}
