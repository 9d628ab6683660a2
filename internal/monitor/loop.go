package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/events"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"
	"github.com/prometheus88/Simple-PFT-Node/internal/responder"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// Run drives the connect/watch/reconnect cycle until the context ends or
// consecutive connection failures exhaust the configured budget. A delivered
// payment resets the failure counter; the loop never processes two payments
// concurrently.
func (m *Monitor) Run(ctx context.Context) error {
	backoff := m.reconnectBackoff
	failures := 0

	m.logger.WithFields(logrus.Fields{
		"wallet":        m.wallet.String(),
		"token_account": m.tokenAccount.String(),
		"mint":          m.mint.String(),
	}).Info("starting payment monitor")

	for {
		select {
		case <-ctx.Done():
			m.setState(StateStopped)
			return ctx.Err()
		default:
		}

		m.setState(StateConnecting)
		sess, replier, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				m.setState(StateStopped)
				return ctx.Err()
			}

			failures++
			if failures >= m.maxFailures {
				m.setState(StateFatal)
				return fmt.Errorf("monitor: giving up after %d consecutive failures: %w", failures, err)
			}

			if m.metrics != nil {
				m.metrics.RecordReconnect()
			}
			m.logger.WithError(err).WithFields(logrus.Fields{
				"failures": failures,
				"retry_in": backoff,
			}).Warn("ledger connection failed")

			if !m.sleep(ctx, backoff) {
				m.setState(StateStopped)
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, m.maxReconnectBackoff)
			continue
		}

		m.setEndpoint(sess.Endpoint().Name)
		m.setState(StateSubscribed)

		watchErr := sess.Watch(ctx, []solana.PublicKey{m.wallet, m.tokenAccount}, m.tokenAccount, func(p *models.Payment) {
			// Delivery proves the stream works.
			failures = 0
			backoff = m.reconnectBackoff
			m.handlePayment(ctx, replier, p)
		})
		sess.Close()

		if ctx.Err() != nil {
			m.setState(StateStopped)
			return ctx.Err()
		}

		failures++
		if failures >= m.maxFailures {
			m.setState(StateFatal)
			return fmt.Errorf("monitor: giving up after %d consecutive failures: %w", failures, watchErr)
		}

		if m.metrics != nil {
			m.metrics.RecordReconnect()
		}
		m.logger.WithError(watchErr).WithFields(logrus.Fields{
			"endpoint": sess.Endpoint().Name,
			"failures": failures,
			"retry_in": backoff,
		}).Warn("stream interrupted, reconnecting")

		if !m.sleep(ctx, backoff) {
			m.setState(StateStopped)
			return ctx.Err()
		}
		backoff = nextBackoff(backoff, m.maxReconnectBackoff)
	}
}

// connect establishes a session and binds a replier to its endpoint.
func (m *Monitor) connect(ctx context.Context) (Session, Replier, error) {
	sess, err := m.connector.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	replier, err := m.newReplier(sess.Endpoint())
	if err != nil {
		sess.Close()
		return nil, nil, fmt.Errorf("build replier: %w", err)
	}
	return sess, replier, nil
}

// handlePayment runs one observed transaction through the response pipeline:
// filter, dedup check, analysis, reply, dedup record, side effects.
func (m *Monitor) handlePayment(ctx context.Context, replier Replier, p *models.Payment) {
	m.setState(StateProcessing)
	defer m.setState(StateSubscribed)

	start := time.Now()
	m.processed.Add(1)
	m.setLastSignature(p.Signature)
	if m.metrics != nil {
		m.metrics.RecordPaymentObserved()
	}

	log := m.logger.WithField("signature", shortSig(p.Signature))

	check := m.filter.Check(p)
	if !check.Qualifies {
		m.skip("filtered")
		log.WithField("reason", check.Reason).Debug("payment does not qualify")
		return
	}

	answered, err := m.dedup.AlreadyAnswered(ctx, p.Signature)
	if err != nil {
		m.skip("dedup_error")
		log.WithError(err).Error("dedup lookup failed")
		return
	}
	if answered {
		m.skip("duplicate")
		log.Debug("already answered, skipping")
		return
	}

	log.WithFields(logrus.Fields{
		"from":   p.From,
		"amount": p.UIAmount(),
		"memo":   previewMemo(p.Memo),
	}).Info("qualifying payment received")

	result := m.analyze(ctx, p.Memo)
	if result == nil || !result.OK {
		m.skip("analysis_failed")
		log.Warn("analysis failed, leaving payment unanswered")
		return
	}

	sender, err := solana.PublicKeyFromBase58(p.From)
	if err != nil {
		m.skip("bad_sender")
		log.WithError(err).Warn("sender address invalid")
		return
	}

	reply, err := replier.Respond(ctx, sender, result.Text, p.Signature)
	if err != nil {
		m.skip("submission_failed")
		if m.metrics != nil {
			var subErr *responder.SubmissionError
			stage := "unknown"
			if errors.As(err, &subErr) {
				stage = subErr.Stage
			}
			m.metrics.RecordSubmissionFailure(stage)
		}
		log.WithError(err).Error("reply submission failed")
		return
	}

	rec := &models.ResponseRecord{
		RequestSignature:  p.Signature,
		ResponseSignature: reply.Signature,
		From:              p.From,
		RequestMemo:       p.Memo,
		ResponseMemo:      reply.Memo,
		AnalysisOK:        result.OK,
		RespondedAt:       time.Now().UTC(),
	}

	if err := m.dedup.Record(ctx, rec); err != nil {
		// The reply is already on chain; losing the record risks a
		// duplicate answer after a restart.
		log.WithError(err).Error("failed to record response")
	}

	m.responded.Add(1)
	if m.metrics != nil {
		m.metrics.RecordResponseSent(time.Since(start).Seconds())
	}

	log.WithFields(logrus.Fields{
		"response": shortSig(reply.Signature),
		"duration": reply.Duration,
	}).Info("reply confirmed")

	m.publishSideEffects(ctx, rec)
}

// analyze runs the memo through the analysis backend with bounded retries
// and doubling backoff between attempts.
func (m *Monitor) analyze(ctx context.Context, memo string) *models.AnalysisResult {
	wait := m.retryBackoff
	var result *models.AnalysisResult

	for attempt := 1; attempt <= m.analysisRetries; attempt++ {
		if attempt > 1 {
			m.logger.WithFields(logrus.Fields{
				"attempt":  attempt,
				"retry_in": wait,
			}).Warn("retrying analysis")
			if !m.sleep(ctx, wait) {
				return result
			}
			wait *= 2
		}

		start := time.Now()
		result = m.analyzer.Analyze(ctx, memo)
		if m.metrics != nil {
			m.metrics.RecordAnalysis(result.OK, time.Since(start).Seconds())
		}
		if result.OK {
			return result
		}
	}
	return result
}

// publishSideEffects fans a confirmed response out to the optional services.
// All of them are best effort; the reply is already on chain.
func (m *Monitor) publishSideEffects(ctx context.Context, rec *models.ResponseRecord) {
	if m.cache != nil {
		_ = m.cache.AddRecentResponse(ctx, rec)
		_ = m.cache.SetNodeStatus(ctx, m.Status())
	}
	if m.archive != nil {
		_ = m.archive.InsertResponse(ctx, rec)
	}
	if m.events != nil {
		_ = m.events.PublishResponse(ctx, events.FromRecord(rec))
	}
}

func (m *Monitor) skip(reason string) {
	m.skipped.Add(1)
	if m.metrics != nil {
		m.metrics.RecordPaymentSkipped(reason)
	}
}

// sleep waits for d and reports false when the context ended first.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func shortSig(sig string) string {
	if len(sig) > 8 {
		return sig[:8]
	}
	return sig
}

func previewMemo(memo string) string {
	r := []rune(memo)
	if len(r) > 60 {
		return string(r[:60]) + "..."
	}
	return memo
}
