package ws

import "sync"

// outbox queues encoded messages for one client. State and liquidity
// messages are snapshots, so a newer one replaces any older one still
// queued; other messages keep their order. When full, the oldest message
// is dropped so the latest snapshot always reaches the client.
type outbox struct {
	mu    sync.Mutex
	items []outMsg
	max   int
	wake  chan struct{}
}

type outMsg struct {
	kind string
	data []byte
}

func newOutbox(limit int) *outbox {
	return &outbox{max: limit, wake: make(chan struct{}, 1)}
}

func coalesces(kind string) bool {
	return kind == msgState || kind == msgLiquidity
}

// push queues data and returns the kind of a message dropped to make room,
// or "" when nothing was dropped.
func (o *outbox) push(kind string, data []byte) (dropped string) {
	o.mu.Lock()
	if coalesces(kind) {
		for i, m := range o.items {
			if m.kind == kind {
				o.items = append(o.items[:i], o.items[i+1:]...)
				break
			}
		}
	}
	if len(o.items) >= o.max {
		dropped = o.items[0].kind
		o.items = o.items[1:]
	}
	o.items = append(o.items, outMsg{kind: kind, data: data})
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return dropped
}

// drain removes and returns everything queued, oldest first.
func (o *outbox) drain() [][]byte {
	o.mu.Lock()
	items := o.items
	o.items = nil
	o.mu.Unlock()

	out := make([][]byte, len(items))
	for i, m := range items {
		out[i] = m.data
	}
	return out
}
