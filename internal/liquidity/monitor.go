package liquidity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// DefaultInterval is the refresh period while a pair is watched.
const DefaultInterval = 10 * time.Second

const msgUnavailable = "orderbook liquidity is unavailable"

// Snapshot is what the monitor currently knows. Liquidity is nil both when
// the monitor is idle and when the last poll failed; Error distinguishes the
// two.
type Snapshot struct {
	ChainID   int64                 `json:"chainId"`
	Active    bool                  `json:"active"`
	TokenA    string                `json:"tokenA,omitempty"`
	TokenB    string                `json:"tokenB,omitempty"`
	Liquidity *domain.PairLiquidity `json:"liquidity"`
	Error     string                `json:"error,omitempty"`
}

// PollObserver is notified after every poll.
type PollObserver interface {
	ObserveLiquidityPoll(chainID int64, elapsed time.Duration, err error)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithUpdateHandler registers fn to receive every published snapshot.
func WithUpdateHandler(fn func(Snapshot)) Option {
	return func(m *Monitor) { m.onUpdate = fn }
}

// WithPollObserver attaches a PollObserver.
func WithPollObserver(o PollObserver) Option {
	return func(m *Monitor) { m.observer = o }
}

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// Monitor polls liquidity for one pair at a time. At most one poller runs;
// Watch and Stop wait for the previous one to exit before returning.
type Monitor struct {
	source   OrderSource
	interval time.Duration
	onUpdate func(Snapshot)
	observer PollObserver
	logger   *slog.Logger

	// ctl serializes Watch/Stop/SetChain; mu guards chainID and snapshot.
	ctl    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	chainID  int64
	snapshot Snapshot
}

// NewMonitor creates a Monitor for a surface currently on chainID. source
// may be nil, leaving the monitor permanently dormant.
func NewMonitor(source OrderSource, chainID int64, opts ...Option) *Monitor {
	m := &Monitor{
		source:   source,
		interval: DefaultInterval,
		logger:   slog.Default(),
		chainID:  chainID,
		snapshot: Snapshot{ChainID: chainID},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "liquidity_monitor"))
	return m
}

// Active reports whether the orderbook serves the current chain.
func (m *Monitor) Active() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Monitor) activeLocked() bool {
	return m.source != nil && m.chainID == m.source.ChainID()
}

// Snapshot returns the latest state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Watch starts polling the pair, replacing any previous pair. On a chain the
// orderbook does not serve it is a no-op and the snapshot stays empty.
func (m *Monitor) Watch(ctx context.Context, tokenA, tokenB string) error {
	a, b, err := ValidatePair(tokenA, tokenB)
	if err != nil {
		return err
	}

	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.stopLocked()
	if !m.Active() {
		return nil
	}

	m.mu.Lock()
	m.snapshot = Snapshot{ChainID: m.chainID, Active: true, TokenA: a, TokenB: b}
	m.mu.Unlock()

	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	go m.poll(pollCtx, done, a, b)
	return nil
}

// Stop ends polling and clears the snapshot.
func (m *Monitor) Stop() {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	m.stopLocked()
}

// SetChain moves the monitor to another chain. Any watched pair is dropped.
func (m *Monitor) SetChain(chainID int64) {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	m.stopLocked()

	m.mu.Lock()
	m.chainID = chainID
	m.snapshot = Snapshot{ChainID: chainID}
	m.mu.Unlock()
}

func (m *Monitor) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
		m.done = nil
	}

	m.mu.Lock()
	wasActive := m.snapshot.Active
	m.snapshot = Snapshot{ChainID: m.chainID}
	snap := m.snapshot
	m.mu.Unlock()

	if wasActive && m.onUpdate != nil {
		m.onUpdate(snap)
	}
}

func (m *Monitor) poll(ctx context.Context, done chan struct{}, a, b string) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.refresh(ctx, a, b)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) refresh(ctx context.Context, a, b string) {
	start := time.Now()
	liq, err := FetchPair(ctx, m.source, a, b)
	if ctx.Err() != nil {
		return
	}

	m.mu.RLock()
	chainID := m.chainID
	m.mu.RUnlock()

	if m.observer != nil {
		m.observer.ObserveLiquidityPoll(chainID, time.Since(start), err)
	}

	snap := Snapshot{ChainID: chainID, Active: true, TokenA: a, TokenB: b, Liquidity: liq}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.WarnContext(ctx, "liquidity poll failed",
				slog.String("token_a", a),
				slog.String("token_b", b),
				slog.String("error", err.Error()),
			)
		}
		snap.Liquidity = nil
		snap.Error = msgUnavailable
	}

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate(snap)
	}
}
