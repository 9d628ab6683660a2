package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus88/Simple-PFT-Node/internal/archive"
	"github.com/prometheus88/Simple-PFT-Node/internal/cache"
	"github.com/prometheus88/Simple-PFT-Node/internal/dedup"
	"github.com/prometheus88/Simple-PFT-Node/internal/events"
	"github.com/prometheus88/Simple-PFT-Node/internal/filter"
	"github.com/prometheus88/Simple-PFT-Node/internal/ledger"
	"github.com/prometheus88/Simple-PFT-Node/internal/metrics"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"
	"github.com/prometheus88/Simple-PFT-Node/internal/responder"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle phase of the monitor loop.
type State string

const (
	StateStarting   State = "STARTING"
	StateConnecting State = "CONNECTING"
	StateSubscribed State = "SUBSCRIBED"
	StateProcessing State = "PROCESSING"
	StateStopped    State = "STOPPED"
	StateFatal      State = "FATAL"
)

// Session is the slice of a ledger session the monitor drives.
type Session interface {
	Watch(ctx context.Context, mentions []solana.PublicKey, dest solana.PublicKey, handler ledger.PaymentHandler) error
	Endpoint() ledger.Endpoint
	Close()
}

// Connector hands out live sessions, one per connection attempt.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// NewManagerConnector adapts a ledger.Manager to the Connector interface.
func NewManagerConnector(m *ledger.Manager) Connector {
	return managerConnector{m}
}

type managerConnector struct {
	m *ledger.Manager
}

func (c managerConnector) Connect(ctx context.Context) (Session, error) {
	sess, err := c.m.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Analyzer turns a memo into analysis text.
type Analyzer interface {
	Analyze(ctx context.Context, memo string) *models.AnalysisResult
}

// Replier submits the reply payment.
type Replier interface {
	Respond(ctx context.Context, to solana.PublicKey, analysisText string, inReplyTo string) (*responder.Result, error)
}

// ReplierFactory builds a Replier bound to the endpoint of a freshly
// established session. The responder signs and submits through the same
// endpoint the monitor watches.
type ReplierFactory func(ep ledger.Endpoint) (Replier, error)

// MonitorConfig holds configuration for the monitor loop
type MonitorConfig struct {
	Connector  Connector
	Filter     *filter.Filter
	Dedup      dedup.Store
	Analyzer   Analyzer
	NewReplier ReplierFactory

	// Wallet and TokenAccount are watched for log mentions; TokenAccount is
	// also the destination incoming payments must hit.
	Wallet       solana.PublicKey
	TokenAccount solana.PublicKey
	Mint         solana.PublicKey

	// AnalysisRetries is the total number of analysis attempts per payment.
	AnalysisRetries int
	RetryBackoff    time.Duration

	ReconnectBackoff       time.Duration
	MaxReconnectBackoff    time.Duration
	MaxConsecutiveFailures int

	// Optional side-effect services. Nil disables each one.
	Cache   *cache.Cache
	Archive *archive.Archive
	Events  events.Publisher
	Metrics *metrics.Metrics

	Logger *logrus.Logger
}

// Monitor watches the ledger for qualifying payments and answers each one
// exactly once. It is the sole writer of dedup state while running.
type Monitor struct {
	connector  Connector
	filter     *filter.Filter
	dedup      dedup.Store
	analyzer   Analyzer
	newReplier ReplierFactory

	wallet       solana.PublicKey
	tokenAccount solana.PublicKey
	mint         solana.PublicKey

	analysisRetries int
	retryBackoff    time.Duration

	reconnectBackoff    time.Duration
	maxReconnectBackoff time.Duration
	maxFailures         int

	cache   *cache.Cache
	archive *archive.Archive
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *logrus.Logger

	state atomic.Value // State

	processed atomic.Uint64
	responded atomic.Uint64
	skipped   atomic.Uint64

	mu        sync.RWMutex
	lastSig   string
	endpoint  string
	startedAt time.Time
}

// NewMonitor creates a new monitor
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Connector == nil {
		return nil, fmt.Errorf("monitor: connector is required")
	}
	if cfg.Filter == nil {
		return nil, fmt.Errorf("monitor: filter is required")
	}
	if cfg.Dedup == nil {
		return nil, fmt.Errorf("monitor: dedup store is required")
	}
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("monitor: analyzer is required")
	}
	if cfg.NewReplier == nil {
		return nil, fmt.Errorf("monitor: replier factory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.AnalysisRetries < 1 {
		cfg.AnalysisRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = 2 * time.Second
	}
	if cfg.MaxReconnectBackoff == 0 {
		cfg.MaxReconnectBackoff = 60 * time.Second
	}
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = 10
	}

	m := &Monitor{
		connector:           cfg.Connector,
		filter:              cfg.Filter,
		dedup:               cfg.Dedup,
		analyzer:            cfg.Analyzer,
		newReplier:          cfg.NewReplier,
		wallet:              cfg.Wallet,
		tokenAccount:        cfg.TokenAccount,
		mint:                cfg.Mint,
		analysisRetries:     cfg.AnalysisRetries,
		retryBackoff:        cfg.RetryBackoff,
		reconnectBackoff:    cfg.ReconnectBackoff,
		maxReconnectBackoff: cfg.MaxReconnectBackoff,
		maxFailures:         cfg.MaxConsecutiveFailures,
		cache:               cfg.Cache,
		archive:             cfg.Archive,
		events:              cfg.Events,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		startedAt:           time.Now().UTC(),
	}
	m.state.Store(StateStarting)
	return m, nil
}

// State returns the current lifecycle phase.
func (m *Monitor) State() State {
	if s, ok := m.state.Load().(State); ok {
		return s
	}
	return StateStarting
}

func (m *Monitor) setState(s State) {
	m.state.Store(s)
}

func (m *Monitor) setEndpoint(name string) {
	m.mu.Lock()
	m.endpoint = name
	m.mu.Unlock()
}

func (m *Monitor) setLastSignature(sig string) {
	m.mu.Lock()
	m.lastSig = sig
	m.mu.Unlock()
}

// Status returns a point-in-time snapshot of the node's operation.
func (m *Monitor) Status() *models.NodeStatus {
	m.mu.RLock()
	lastSig := m.lastSig
	endpoint := m.endpoint
	startedAt := m.startedAt
	m.mu.RUnlock()

	return &models.NodeStatus{
		State:         string(m.State()),
		Endpoint:      endpoint,
		Wallet:        m.wallet.String(),
		Mint:          m.mint.String(),
		Processed:     m.processed.Load(),
		Responded:     m.responded.Load(),
		Skipped:       m.skipped.Load(),
		LastSignature: lastSig,
		StartedAt:     startedAt,
		UpdatedAt:     time.Now().UTC(),
	}
}
