package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/constants"
	"github.com/prometheus88/Simple-PFT-Node/internal/dedup"
	"github.com/prometheus88/Simple-PFT-Node/internal/ledger"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"
	"github.com/prometheus88/Simple-PFT-Node/internal/rpc"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Scanner pages backwards through an address's confirmed transaction
// history, newest first.
type Scanner struct {
	client     *rpc.Client
	pageSize   int
	fetchDelay time.Duration
	maxPages   int
	logger     *logrus.Logger
}

// ScannerConfig holds configuration for the history scanner
type ScannerConfig struct {
	Client     *rpc.Client
	PageSize   int           // signatures per getSignaturesForAddress call
	FetchDelay time.Duration // pause between transaction fetches
	MaxPages   int           // hard page cap, 0 means scan until exhausted
	Logger     *logrus.Logger
}

func NewScanner(cfg ScannerConfig) (*Scanner, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("history: rpc client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = constants.SignatureBatchSize
	}
	if cfg.FetchDelay == 0 {
		cfg.FetchDelay = constants.DelayBetweenTxFetch
	}

	return &Scanner{
		client:     cfg.Client,
		pageSize:   cfg.PageSize,
		fetchDelay: cfg.FetchDelay,
		maxPages:   cfg.MaxPages,
		logger:     cfg.Logger,
	}, nil
}

// walk pages backwards through the address's signature listing and invokes
// visit for each successful entry until visit reports done, the history is
// exhausted or the page cap is reached.
func (s *Scanner) walk(ctx context.Context, address solana.PublicKey, visit func(rpc.SignatureInfo) (bool, error)) error {
	before := ""

	for page := 0; s.maxPages == 0 || page < s.maxPages; page++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		opts := map[string]interface{}{
			"limit": s.pageSize,
		}
		if before != "" {
			opts["before"] = before
		}

		resp, err := s.client.GetSignaturesForAddress(ctx, address.String(), opts)
		if err != nil {
			return fmt.Errorf("failed to get signatures: %w", err)
		}
		if len(resp.Result) == 0 {
			return nil
		}

		s.logger.WithFields(logrus.Fields{
			"page":  page,
			"count": len(resp.Result),
		}).Debug("fetched signature page")

		for _, info := range resp.Result {
			if info.Err != nil {
				continue
			}
			more, err := visit(info)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}

		before = resp.Result[len(resp.Result)-1].Signature
	}

	return nil
}

// fetch retrieves one transaction and parses it into a Payment, waiting
// fetchDelay first so back-to-back calls stay under RPC rate limits.
func (s *Scanner) fetch(ctx context.Context, signature string, dest solana.PublicKey) (*models.Payment, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.fetchDelay):
	}

	resp, err := s.client.GetTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, fmt.Errorf("transaction %s not found", shortSig(signature))
	}

	return ledger.ParsePayment(signature, resp.Result, dest)
}

// Payments returns up to limit parsed payments from the address's history,
// newest first. A zero dest accepts transfers to any account; otherwise only
// transfers into dest are captured, matching the live watch path.
func (s *Scanner) Payments(ctx context.Context, address solana.PublicKey, dest solana.PublicKey, limit int) ([]*models.Payment, error) {
	if limit <= 0 {
		limit = s.pageSize
	}

	var payments []*models.Payment
	err := s.walk(ctx, address, func(info rpc.SignatureInfo) (bool, error) {
		p, err := s.fetch(ctx, info.Signature, dest)
		if err != nil {
			s.logger.WithError(err).WithField("signature", shortSig(info.Signature)).Warn("failed to fetch transaction")
			return true, nil
		}
		if p == nil {
			return true, nil
		}
		payments = append(payments, p)
		return len(payments) < limit, nil
	})
	if err != nil {
		return nil, err
	}

	return payments, nil
}

// RebuildDedup scans the node's outgoing replies and records each reply
// correlation tag into the store, so a node restarted with empty dedup state
// does not answer old payments again. The signature listing's memo summary
// is used as a cheap pre-filter; only transactions that mention the tag
// prefix are fetched and parsed. Returns the number of records written.
func (s *Scanner) RebuildDedup(ctx context.Context, wallet solana.PublicKey, tokenAccount solana.PublicKey, store dedup.Store) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("history: dedup store is required")
	}

	start := time.Now()
	scanned := 0
	recorded := 0

	err := s.walk(ctx, wallet, func(info rpc.SignatureInfo) (bool, error) {
		scanned++
		if info.Memo == nil || !strings.Contains(*info.Memo, constants.ReplyTagPrefix) {
			return true, nil
		}

		p, err := s.fetch(ctx, info.Signature, tokenAccount)
		if err != nil {
			s.logger.WithError(err).WithField("signature", shortSig(info.Signature)).Warn("failed to fetch reply transaction")
			return true, nil
		}
		if p == nil || p.ReplyTag == "" {
			return true, nil
		}

		original := strings.TrimPrefix(p.ReplyTag, constants.ReplyTagPrefix)
		if original == "" {
			return true, nil
		}

		answered, err := store.AlreadyAnswered(ctx, original)
		if err != nil {
			return false, fmt.Errorf("dedup lookup: %w", err)
		}
		if answered {
			return true, nil
		}

		rec := &models.ResponseRecord{
			RequestSignature:  original,
			ResponseSignature: info.Signature,
			ResponseMemo:      p.Memo,
			AnalysisOK:        true,
			RespondedAt:       p.BlockTime,
		}
		if err := store.Record(ctx, rec); err != nil {
			return false, fmt.Errorf("dedup record: %w", err)
		}
		recorded++
		return true, nil
	})
	if err != nil {
		return recorded, err
	}

	s.logger.WithFields(logrus.Fields{
		"scanned":  scanned,
		"recorded": recorded,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("dedup history rebuilt")

	return recorded, nil
}

func shortSig(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}
