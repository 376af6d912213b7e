package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// DefaultDebounce is how long input must be stable before a search runs.
const DefaultDebounce = 400 * time.Millisecond

// Searcher runs one merged search.
type Searcher interface {
	PerformSearch(ctx context.Context, chainID int64, text string) Outcome
}

// ActionHandler carries out a committed result's action.
type ActionHandler interface {
	HandleAction(ctx context.Context, action domain.Action) error
}

// ActionHandlerFunc adapts a function to ActionHandler.
type ActionHandlerFunc func(ctx context.Context, action domain.Action) error

func (f ActionHandlerFunc) HandleAction(ctx context.Context, action domain.Action) error {
	return f(ctx, action)
}

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler arms one-shot timers.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallClock struct{}

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

// WithScheduler replaces the wall-clock timer source.
func WithScheduler(sched Scheduler) SessionOption {
	return func(s *Session) { s.sched = sched }
}

// WithActionHandler sets the handler for committed actions.
func WithActionHandler(h ActionHandler) SessionOption {
	return func(s *Session) { s.actions = h }
}

// WithStateListener registers fn to receive every new state. fn runs on the
// session goroutine and must not block.
func WithStateListener(fn func(State)) SessionOption {
	return func(s *Session) { s.listener = fn }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// Session drives Reduce from a single goroutine. It owns exactly one debounce
// timer slot and one in-flight search slot; arming either replaces whatever
// was there before.
type Session struct {
	searcher Searcher
	actions  ActionHandler
	sched    Scheduler
	debounce time.Duration
	listener func(State)
	logger   *slog.Logger

	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	state State

	// owned by the run goroutine
	timer        Timer
	cancelSearch context.CancelFunc
}

// NewSession creates a Session for chainID. Call Run to start it.
func NewSession(id string, chainID int64, searcher Searcher, opts ...SessionOption) *Session {
	s := &Session{
		searcher: searcher,
		sched:    wallClock{},
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		state:    NewState(id, chainID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(
		slog.String("component", "search_session"),
		slog.String("session_id", id),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.State().SessionID }

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch queues ev for processing. It returns false once the session has
// stopped.
func (s *Session) Dispatch(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Run processes events until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.stopAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.apply(ctx, ev)
		}
	}
}

func (s *Session) apply(ctx context.Context, ev Event) {
	s.mu.Lock()
	next, effects := Reduce(s.state, ev)
	changed := stateChanged(s.state, next)
	s.state = next
	s.mu.Unlock()

	for _, eff := range effects {
		s.perform(ctx, eff)
	}
	if changed && s.listener != nil {
		s.listener(next)
	}
}

func (s *Session) perform(ctx context.Context, eff Effect) {
	switch e := eff.(type) {
	case ScheduleDebounce:
		s.stopTimer()
		gen := e.Generation
		s.timer = s.sched.AfterFunc(s.debounce, func() {
			s.Dispatch(DebounceElapsed{Generation: gen})
		})

	case CancelDebounce:
		s.stopTimer()

	case StartSearch:
		s.stopSearch()
		searchCtx, cancel := context.WithCancel(ctx)
		s.cancelSearch = cancel
		go func() {
			defer cancel()
			outcome := s.searcher.PerformSearch(searchCtx, e.ChainID, e.Query)
			s.Dispatch(SearchResolved{Generation: e.Generation, Outcome: outcome})
		}()

	case CancelSearch:
		s.stopSearch()

	case RunAction:
		if s.actions == nil {
			return
		}
		if err := s.actions.HandleAction(ctx, e.Action); err != nil {
			s.logger.WarnContext(ctx, "action failed",
				slog.String("kind", string(e.Action.Kind)),
				slog.String("target", e.Action.Target),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) stopSearch() {
	if s.cancelSearch != nil {
		s.cancelSearch()
		s.cancelSearch = nil
	}
}

func (s *Session) stopAll() {
	s.stopTimer()
	s.stopSearch()
}

// stateChanged skips listener calls for events that were dropped as stale.
func stateChanged(prev, next State) bool {
	if prev.Generation != next.Generation || prev.Query != next.Query ||
		prev.Selected != next.Selected || prev.Loading != next.Loading ||
		prev.Error != next.Error || prev.Open != next.Open || prev.ChainID != next.ChainID {
		return true
	}
	if len(prev.Results) != len(next.Results) {
		return true
	}
	for i := range prev.Results {
		if prev.Results[i].ID != next.Results[i].ID {
			return true
		}
	}
	return false
}
