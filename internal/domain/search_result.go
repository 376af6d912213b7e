package domain

// ResultKind tags what a SearchResult represents.
type ResultKind string

const (
	ResultToken       ResultKind = "token"
	ResultAddress     ResultKind = "address"
	ResultTransaction ResultKind = "transaction"
	ResultSuggestion  ResultKind = "suggestion"
	ResultCommand     ResultKind = "command"
)

// ActionKind enumerates the side effects a result can trigger.
type ActionKind string

const (
	ActionOpenURL  ActionKind = "open_url"
	ActionNavigate ActionKind = "navigate"
	ActionScrollTo ActionKind = "scroll_to"
	ActionNone     ActionKind = "none"
)

// Action is the deferred side effect of committing a result. It is carried
// as data and executed by whoever renders the result list.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target,omitempty"`
}

// TokenSource identifies which backend produced a token result.
type TokenSource string

const (
	SourceRemote TokenSource = "remote"
	SourceLocal  TokenSource = "local"
)

// TokenMeta is the payload of a token result.
type TokenMeta struct {
	Source TokenSource `json:"source"`
	Token  Token       `json:"token"`
	Pools  []Pool      `json:"pools,omitempty"`
}

// AddressMeta is the payload of an address result.
type AddressMeta struct {
	Address     string `json:"address"`
	ExplorerURL string `json:"explorerUrl"`
}

// CommandMeta is the payload of a command result.
type CommandMeta struct {
	Command string `json:"command"`
}

// SearchResult is one row in the merged result list. Exactly one of the
// metadata pointers is set, matching Kind.
type SearchResult struct {
	ID       string     `json:"id"`
	Kind     ResultKind `json:"kind"`
	Title    string     `json:"title"`
	Subtitle string     `json:"subtitle,omitempty"`
	Icon     string     `json:"icon,omitempty"`
	Score    float64    `json:"score,omitempty"`
	Action   Action     `json:"action"`

	Token   *TokenMeta   `json:"token,omitempty"`
	Address *AddressMeta `json:"address,omitempty"`
	Command *CommandMeta `json:"command,omitempty"`
}
