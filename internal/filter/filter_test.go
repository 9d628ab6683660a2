package filter

import (
	"testing"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

var (
	testWallet  = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")
	testAccount = solana.MustPublicKeyFromBase58("SysvarC1ock11111111111111111111111111111111")
	testMint    = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
	testSender  = solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
)

func newTestFilter() *Filter {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewFilter(FilterConfig{
		WalletAddress: testWallet,
		TokenAccount:  testAccount,
		Mint:          testMint,
		Logger:        logger,
	})
}

func qualifyingPayment() *models.Payment {
	return &models.Payment{
		Signature:   "5Sig",
		From:        testSender.String(),
		Destination: testAccount.String(),
		Mint:        testMint.String(),
		Amount:      1_000_000,
		Decimals:    6,
		Memo:        "hello node",
	}
}

func TestCheck_TruthTable(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.Payment)
		qualifies bool
		flag      func(*CheckResult) bool
	}{
		{
			name:      "qualifying payment",
			mutate:    func(p *models.Payment) {},
			qualifies: true,
		},
		{
			name:      "failed transaction",
			mutate:    func(p *models.Payment) { p.Failed = true },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.TxFailed },
		},
		{
			name: "no transfer at all",
			mutate: func(p *models.Payment) {
				p.Amount = 0
				p.Destination = ""
				p.Mint = ""
			},
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.NoTransfer },
		},
		{
			name:      "wrong destination",
			mutate:    func(p *models.Payment) { p.Destination = testSender.String() },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.WrongDestination },
		},
		{
			name:      "wrong mint",
			mutate:    func(p *models.Payment) { p.Mint = testWallet.String() },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.WrongMint },
		},
		{
			name:      "mint omitted by plain transfer",
			mutate:    func(p *models.Payment) { p.Mint = "" },
			qualifies: true,
		},
		{
			name:      "zero amount",
			mutate:    func(p *models.Payment) { p.Amount = 0 },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.BelowMinAmount },
		},
		{
			name:      "empty memo",
			mutate:    func(p *models.Payment) { p.Memo = "" },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.EmptyMemo },
		},
		{
			name:      "missing sender",
			mutate:    func(p *models.Payment) { p.From = "" },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.MissingSender },
		},
		{
			name:      "node answering itself",
			mutate:    func(p *models.Payment) { p.From = testWallet.String() },
			qualifies: false,
			flag:      func(r *CheckResult) bool { return r.SelfPayment },
		},
	}

	f := newTestFilter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := qualifyingPayment()
			tt.mutate(p)

			result := f.Check(p)
			assert.Equal(t, tt.qualifies, result.Qualifies)
			assert.Equal(t, tt.qualifies, f.Qualifies(p))
			if tt.qualifies {
				assert.Empty(t, result.Reason)
			} else {
				assert.NotEmpty(t, result.Reason)
				assert.True(t, tt.flag(result), "expected reason flag to be set")
			}
		})
	}
}

func TestCheck_MinAmount(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	f := NewFilter(FilterConfig{
		WalletAddress: testWallet,
		TokenAccount:  testAccount,
		Mint:          testMint,
		MinAmount:     500,
		Logger:        logger,
	})

	p := qualifyingPayment()
	p.Amount = 499
	assert.False(t, f.Qualifies(p))

	p.Amount = 500
	assert.True(t, f.Qualifies(p))
}

func TestNewFilter_DefaultMinAmount(t *testing.T) {
	f := NewFilter(FilterConfig{
		WalletAddress: testWallet,
		TokenAccount:  testAccount,
		Mint:          testMint,
	})
	assert.Equal(t, uint64(1), f.config.MinAmount)
}
