package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/dexsearch/internal/domain"
	"github.com/alanyoungcy/dexsearch/internal/liquidity"
	"github.com/alanyoungcy/dexsearch/internal/search"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize caps the messages queued for one client.
	sendBufferSize = 64
)

// Observer is notified about session lifecycle and liquidity polls.
type Observer interface {
	SessionOpened()
	SessionClosed()
	liquidity.PollObserver
}

type nopObserver struct{}

func (nopObserver) SessionOpened()                                   {}
func (nopObserver) SessionClosed()                                   {}
func (nopObserver) ObserveLiquidityPoll(int64, time.Duration, error) {}

// Config wires a Hub to the search and liquidity backends.
type Config struct {
	Chains   *domain.ChainRegistry
	Searcher search.Searcher
	// Orderbook may be nil, leaving every liquidity monitor dormant.
	Orderbook      liquidity.OrderSource
	Debounce       time.Duration
	PollInterval   time.Duration
	AllowedOrigins []string
	Observer       Observer
}

// Hub tracks live search connections. Each connection owns one search
// session and one liquidity monitor; nothing is shared between them.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a Hub. Call Run to tie connection lifetimes to a context.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = search.DefaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = liquidity.DefaultInterval
	}
	h := &Hub{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Run blocks until ctx is cancelled and then closes every connection.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.logger.Info("ws: hub stopped", slog.Int("closed_clients", len(clients)))
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// HandleWS upgrades the request and starts a search session on the chain
// given by the chainId query parameter (mainnet when absent).
// GET /ws/search?chainId=
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	chainID := domain.MainnetChainID
	if raw := strings.TrimSpace(r.URL.Query().Get("chainId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, `{"error":"chainId: must be an integer"}`, http.StatusBadRequest)
			return
		}
		chainID = id
	}
	if _, ok := h.cfg.Chains.Lookup(chainID); !ok {
		http.Error(w, `{"error":"chainId: unknown chain"}`, http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		http.Error(w, `{"error":"shutting down"}`, http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := h.newClient(conn, chainID)
	if !h.register(c) {
		c.close()
		conn.Close()
		return
	}
	h.cfg.Observer.SessionOpened()

	go c.session.Run(c.ctx)
	go c.writePump()
	c.pushState(c.session.State())
	go c.readPump()
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Info("ws: client connected",
		slog.String("session_id", c.id),
		slog.Int("total_clients", len(h.clients)),
	)
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	h.cfg.Observer.SessionClosed()
	h.logger.Info("ws: client disconnected",
		slog.String("session_id", c.id),
		slog.Int("total_clients", total),
	)
}

// client represents a single WebSocket connection.
type client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	out     *outbox
	ctx     context.Context
	cancel  context.CancelFunc
	session *search.Session
	monitor *liquidity.Monitor
	logger  *slog.Logger

	closeOnce sync.Once
}

func (h *Hub) newClient(conn *websocket.Conn, chainID int64) *client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		out:    newOutbox(sendBufferSize),
		ctx:    ctx,
		cancel: cancel,
	}
	c.logger = h.logger.With(slog.String("session_id", c.id))
	c.session = search.NewSession(c.id, chainID, h.cfg.Searcher,
		search.WithDebounce(h.cfg.Debounce),
		search.WithStateListener(c.pushState),
		search.WithActionHandler(search.ActionHandlerFunc(c.pushAction)),
		search.WithLogger(h.logger),
	)
	c.monitor = liquidity.NewMonitor(h.cfg.Orderbook, chainID,
		liquidity.WithInterval(h.cfg.PollInterval),
		liquidity.WithUpdateHandler(c.pushLiquidity),
		liquidity.WithPollObserver(h.cfg.Observer),
		liquidity.WithLogger(h.logger),
	)
	return c
}

// close stops the session and monitor. writePump notices the cancelled
// context, sends a close frame, and closes the connection. Safe to call more
// than once.
func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.monitor.Stop()
		c.hub.unregister(c)
	})
}

// Client to server message types.
const (
	msgInput       = "input"
	msgMove        = "move"
	msgCommit      = "commit"
	msgDismiss     = "dismiss"
	msgChain       = "chain"
	msgWatchPair   = "watch_pair"
	msgUnwatchPair = "unwatch_pair"
)

// Server to client message types.
const (
	msgState     = "state"
	msgAction    = "action"
	msgLiquidity = "liquidity"
	msgError     = "error"
)

// clientMsg is any message a client sends. Only the fields relevant to Type
// are read.
type clientMsg struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Delta   int    `json:"delta"`
	Index   *int   `json:"index"`
	ChainID int64  `json:"chainId"`
	TokenA  string `json:"tokenA"`
	TokenB  string `json:"tokenB"`
}

type serverMsg struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// readPump reads client messages and translates them into session events
// and monitor calls.
func (c *client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("ws: unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg clientMsg
		if err := json.Unmarshal(message, &msg); err != nil {
			c.pushError("message must be a JSON object")
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg clientMsg) {
	switch msg.Type {
	case msgInput:
		c.session.Dispatch(search.InputChanged{Text: msg.Text})
	case msgMove:
		c.session.Dispatch(search.SelectionMoved{Delta: msg.Delta})
	case msgCommit:
		index := -1
		if msg.Index != nil {
			index = *msg.Index
		}
		c.session.Dispatch(search.Committed{Index: index})
	case msgDismiss:
		c.session.Dispatch(search.Dismissed{})
	case msgChain:
		if _, ok := c.hub.cfg.Chains.Lookup(msg.ChainID); !ok {
			c.pushError("chainId: unknown chain")
			return
		}
		c.monitor.SetChain(msg.ChainID)
		c.session.Dispatch(search.ChainChanged{ChainID: msg.ChainID})
	case msgWatchPair:
		if err := c.monitor.Watch(c.ctx, msg.TokenA, msg.TokenB); err != nil {
			c.pushError(err.Error())
			return
		}
		if !c.monitor.Active() {
			c.pushLiquidity(c.monitor.Snapshot())
		}
	case msgUnwatchPair:
		c.monitor.Stop()
	default:
		c.pushError("unknown message type " + strconv.Quote(msg.Type))
	}
}

func (c *client) pushState(s search.State) {
	c.enqueue(serverMsg{Type: msgState, Payload: s})
}

func (c *client) pushAction(_ context.Context, a domain.Action) error {
	if a.Kind == domain.ActionNone {
		return nil
	}
	c.enqueue(serverMsg{Type: msgAction, Payload: a})
	return nil
}

func (c *client) pushLiquidity(s liquidity.Snapshot) {
	c.enqueue(serverMsg{Type: msgLiquidity, Payload: s})
}

func (c *client) pushError(message string) {
	c.enqueue(serverMsg{Type: msgError, Payload: errorPayload{Message: message}})
}

// enqueue never blocks. A client that stops reading sees only the latest
// state, and older messages are dropped once its queue is full.
func (c *client) enqueue(msg serverMsg) {
	if c.ctx.Err() != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("ws: encode failed",
			slog.String("type", msg.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	if dropped := c.out.push(msg.Type, data); dropped != "" {
		c.logger.Warn("ws: dropping message for slow client", slog.String("type", dropped))
	}
}

// writePump sends queued messages as text frames and pings periodically.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-c.out.wake:
			for _, message := range c.out.drain() {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
