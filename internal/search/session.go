package search

import (
	"github.com/alanyoungcy/dexsearch/internal/domain"
)

// State is the full state of one search surface. It is only ever replaced by
// Reduce, never mutated in place by callers.
type State struct {
	SessionID string                `json:"sessionId"`
	ChainID   int64                 `json:"chainId"`
	Query     string                `json:"query"`
	Results   []domain.SearchResult `json:"results"`
	Selected  int                   `json:"selected"`
	Loading   bool                  `json:"loading"`
	Error     string                `json:"error,omitempty"`
	Open      bool                  `json:"open"`

	// Generation increases on every input change and on close. Debounce
	// ticks and search results carrying an older generation are dropped.
	Generation uint64 `json:"generation"`
}

// NewState returns the initial closed state for a session.
func NewState(sessionID string, chainID int64) State {
	return State{
		SessionID: sessionID,
		ChainID:   chainID,
		Results:   []domain.SearchResult{},
	}
}

// Highlighted returns the currently selected result, if any.
func (s State) Highlighted() (domain.SearchResult, bool) {
	if s.Selected < 0 || s.Selected >= len(s.Results) {
		return domain.SearchResult{}, false
	}
	return s.Results[s.Selected], true
}

// Event is an input to Reduce.
type Event interface{ isEvent() }

// InputChanged is a keystroke: the query text changed.
type InputChanged struct{ Text string }

// DebounceElapsed fires when the debounce timer for Generation survives.
type DebounceElapsed struct{ Generation uint64 }

// SearchResolved delivers the outcome of the search started for Generation.
type SearchResolved struct {
	Generation uint64
	Outcome    Outcome
}

// SelectionMoved moves the highlight by Delta, wrapping at both ends.
type SelectionMoved struct{ Delta int }

// Committed invokes a result's action. Index -1 means the highlighted one.
type Committed struct{ Index int }

// Dismissed closes the surface without running an action.
type Dismissed struct{}

// ChainChanged switches the chain searched by the session.
type ChainChanged struct{ ChainID int64 }

func (InputChanged) isEvent()    {}
func (DebounceElapsed) isEvent() {}
func (SearchResolved) isEvent()  {}
func (SelectionMoved) isEvent()  {}
func (Committed) isEvent()       {}
func (Dismissed) isEvent()       {}
func (ChainChanged) isEvent()    {}

// Effect is a side effect requested by Reduce and carried out by the Session
// runner.
type Effect interface{ isEffect() }

// ScheduleDebounce replaces the pending debounce timer with one for
// Generation.
type ScheduleDebounce struct{ Generation uint64 }

// CancelDebounce drops the pending debounce timer.
type CancelDebounce struct{}

// StartSearch replaces the in-flight search with a new one.
type StartSearch struct {
	Generation uint64
	ChainID    int64
	Query      string
}

// CancelSearch abandons the in-flight search.
type CancelSearch struct{}

// RunAction executes a committed result's action.
type RunAction struct{ Action domain.Action }

func (ScheduleDebounce) isEffect() {}
func (CancelDebounce) isEffect()   {}
func (StartSearch) isEffect()      {}
func (CancelSearch) isEffect()     {}
func (RunAction) isEffect()        {}

// Reduce applies ev to s and returns the next state plus the effects the
// runner must perform, in order.
func Reduce(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case InputChanged:
		s.Query = e.Text
		s.Generation++
		s.Open = true
		s.Loading = false
		s.Error = ""
		return s, []Effect{CancelSearch{}, ScheduleDebounce{Generation: s.Generation}}

	case DebounceElapsed:
		if e.Generation != s.Generation || !s.Open {
			return s, nil
		}
		s.Loading = true
		return s, []Effect{StartSearch{Generation: s.Generation, ChainID: s.ChainID, Query: s.Query}}

	case SearchResolved:
		if e.Generation != s.Generation || !s.Open {
			return s, nil
		}
		s.Results = e.Outcome.Results
		if s.Results == nil {
			s.Results = []domain.SearchResult{}
		}
		s.Selected = 0
		s.Loading = false
		s.Error = e.Outcome.Warning
		return s, nil

	case SelectionMoved:
		n := len(s.Results)
		if n == 0 {
			return s, nil
		}
		s.Selected = ((s.Selected+e.Delta)%n + n) % n
		return s, nil

	case Committed:
		idx := e.Index
		if idx < 0 {
			idx = s.Selected
		}
		if idx < 0 || idx >= len(s.Results) {
			return s, nil
		}
		action := s.Results[idx].Action
		next, effects := closeSession(s)
		return next, append([]Effect{RunAction{Action: action}}, effects...)

	case Dismissed:
		return closeSession(s)

	case ChainChanged:
		if e.ChainID == s.ChainID {
			return s, nil
		}
		s.ChainID = e.ChainID
		if !s.Open || s.Query == "" {
			return s, nil
		}
		// re-run the current query against the new chain
		return Reduce(s, InputChanged{Text: s.Query})
	}
	return s, nil
}

func closeSession(s State) (State, []Effect) {
	s.Query = ""
	s.Results = []domain.SearchResult{}
	s.Selected = 0
	s.Loading = false
	s.Error = ""
	s.Open = false
	s.Generation++
	return s, []Effect{CancelDebounce{}, CancelSearch{}}
}
