package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/models"
	"github.com/prometheus88/Simple-PFT-Node/internal/rpc"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/sirupsen/logrus"
)

// ErrStreamInterrupted is returned by Watch when the subscription stream
// terminates. The caller owns reconnect policy.
var ErrStreamInterrupted = errors.New("ledger: stream interrupted")

// PaymentHandler consumes parsed payments sequentially.
type PaymentHandler func(*models.Payment)

// Session is a live connection to one endpoint: an RPC client plus a
// WebSocket client, torn down together.
type Session struct {
	endpoint Endpoint
	rpc      *rpc.Client
	ws       *ws.Client
	logger   *logrus.Logger
	seen     *recentSet
}

func (s *Session) Endpoint() Endpoint  { return s.endpoint }
func (s *Session) Client() *rpc.Client { return s.rpc }

func (s *Session) Close() {
	if s.ws != nil {
		s.ws.Close()
	}
}

// Watch subscribes to log mentions of the given addresses, fetches each
// signaled transaction, and feeds the parsed payment addressed to dest into
// the handler. It blocks until the context ends or the stream drops; a drop
// is reported as ErrStreamInterrupted.
func (s *Session) Watch(ctx context.Context, mentions []solana.PublicKey, dest solana.PublicKey, handler PaymentHandler) error {
	if len(mentions) == 0 {
		return fmt.Errorf("ledger: no mention addresses")
	}

	recvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logCh := make(chan *ws.LogResult, 16)
	errCh := make(chan error, len(mentions))

	var subs []*ws.LogSubscription
	defer func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}()

	for _, pk := range mentions {
		sub, err := s.ws.LogsSubscribeMentions(pk, solrpc.CommitmentConfirmed)
		if err != nil {
			return fmt.Errorf("%w: subscribe %s: %v", ErrStreamInterrupted, pk, err)
		}
		subs = append(subs, sub)

		go func(sub *ws.LogSubscription, addr solana.PublicKey) {
			for {
				res, err := sub.Recv(recvCtx)
				if err != nil {
					select {
					case errCh <- fmt.Errorf("recv %s: %v", addr, err):
					default:
					}
					return
				}
				select {
				case logCh <- res:
				case <-recvCtx.Done():
					return
				}
			}
		}(sub, pk)
	}

	s.logger.WithFields(logrus.Fields{
		"endpoint":  s.endpoint.Name,
		"addresses": len(mentions),
	}).Info("watching for payments")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errCh:
			return fmt.Errorf("%w: %v", ErrStreamInterrupted, err)

		case res := <-logCh:
			sig := res.Value.Signature.String()
			if !s.seen.Add(sig) {
				continue // both subscriptions signaled the same transaction
			}
			if res.Value.Err != nil {
				s.logger.WithField("signature", shortSig(sig)).Debug("skipping failed transaction")
				continue
			}

			payment, err := s.fetch(ctx, sig, dest)
			if err != nil {
				s.logger.WithError(err).WithField("signature", shortSig(sig)).Warn("failed to fetch transaction")
				continue
			}
			if payment != nil {
				handler(payment)
			}
		}
	}
}

// fetch retrieves and parses a signaled transaction. Freshly confirmed
// transactions may not be queryable yet, so a nil result is retried briefly.
func (s *Session) fetch(ctx context.Context, signature string, dest solana.PublicKey) (*models.Payment, error) {
	var result *rpc.TransactionResult

	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}

		resp, err := s.rpc.GetTransaction(ctx, signature)
		if err != nil {
			return nil, err
		}
		if resp.Result != nil {
			result = resp.Result
			break
		}
	}
	if result == nil {
		return nil, fmt.Errorf("transaction %s not found", shortSig(signature))
	}

	return ParsePayment(signature, result, dest)
}

func shortSig(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}

// recentSet remembers the most recently seen signatures with FIFO eviction.
type recentSet struct {
	capacity int
	order    []string
	set      map[string]struct{}
}

func newRecentSet(capacity int) *recentSet {
	return &recentSet{
		capacity: capacity,
		set:      make(map[string]struct{}, capacity),
	}
}

// Add records a signature and reports whether it was new.
func (r *recentSet) Add(sig string) bool {
	if _, ok := r.set[sig]; ok {
		return false
	}
	r.set[sig] = struct{}{}
	r.order = append(r.order, sig)
	if len(r.order) > r.capacity {
		delete(r.set, r.order[0])
		r.order = r.order[1:]
	}
	return true
}
