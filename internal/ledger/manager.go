package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/rpc"

	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/sirupsen/logrus"
)

// ErrAllEndpointsFailed is returned by Connect when every endpoint was tried
// and none accepted both an RPC health check and a WebSocket connection.
var ErrAllEndpointsFailed = errors.New("ledger: all endpoints failed")

// ManagerConfig holds configuration for the connection manager
type ManagerConfig struct {
	Endpoints      []Endpoint
	ConnectTimeout time.Duration
	HTTPTimeout    time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	Logger         *logrus.Logger
}

// Manager establishes sessions against the best available endpoint.
type Manager struct {
	endpoints      []Endpoint
	connectTimeout time.Duration
	httpTimeout    time.Duration
	maxRetries     int
	retryBackoff   time.Duration
	logger         *logrus.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 1 * time.Second
	}

	return &Manager{
		endpoints:      cfg.Endpoints,
		connectTimeout: cfg.ConnectTimeout,
		httpTimeout:    cfg.HTTPTimeout,
		maxRetries:     cfg.MaxRetries,
		retryBackoff:   cfg.RetryBackoff,
		logger:         cfg.Logger,
	}
}

// Connect tries endpoints in rank order and returns a session bound to the
// first one that passes a health check and accepts a WebSocket connection.
func (m *Manager) Connect(ctx context.Context) (*Session, error) {
	if len(m.endpoints) == 0 {
		return nil, fmt.Errorf("ledger: no endpoints configured")
	}

	for _, ep := range m.endpoints {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sess, err := m.dial(ctx, ep)
		if err != nil {
			m.logger.WithError(err).WithFields(logrus.Fields{
				"endpoint": ep.Name,
				"rpc":      ep.RPCURL,
			}).Warn("endpoint unavailable")
			continue
		}

		m.logger.WithFields(logrus.Fields{
			"endpoint": ep.Name,
			"rpc":      ep.RPCURL,
			"ws":       ep.WSURL,
		}).Info("connected to ledger endpoint")
		return sess, nil
	}

	return nil, ErrAllEndpointsFailed
}

func (m *Manager) dial(ctx context.Context, ep Endpoint) (*Session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	client := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      ep.RPCURL,
		Timeout:      m.httpTimeout,
		MaxRetries:   m.maxRetries,
		RetryBackoff: m.retryBackoff,
		Logger:       m.logger,
	})

	if err := client.GetHealth(dialCtx); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	wsClient, err := ws.Connect(dialCtx, ep.WSURL)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	return &Session{
		endpoint: ep,
		rpc:      client,
		ws:       wsClient,
		logger:   m.logger,
		seen:     newRecentSet(1024),
	}, nil
}
