package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func texts(msgs [][]byte) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m)
	}
	return out
}

func TestOutbox_CoalescesSnapshots(t *testing.T) {
	o := newOutbox(8)
	o.push(msgState, []byte("state-1"))
	o.push(msgLiquidity, []byte("liq-1"))
	o.push(msgAction, []byte("action"))
	o.push(msgState, []byte("state-2"))
	o.push(msgLiquidity, []byte("liq-2"))
	o.push(msgError, []byte("err-1"))
	o.push(msgError, []byte("err-2"))

	assert.Equal(t, []string{"action", "state-2", "liq-2", "err-1", "err-2"}, texts(o.drain()))
	assert.Empty(t, o.drain())
}

func TestOutbox_FullQueueKeepsLatestState(t *testing.T) {
	o := newOutbox(3)
	assert.Empty(t, o.push(msgError, []byte("err-1")))
	assert.Empty(t, o.push(msgError, []byte("err-2")))
	assert.Empty(t, o.push(msgError, []byte("err-3")))
	assert.Equal(t, msgError, o.push(msgState, []byte("final")))

	assert.Equal(t, []string{"err-2", "err-3", "final"}, texts(o.drain()))
}

func TestOutbox_WakeDoesNotBlock(t *testing.T) {
	o := newOutbox(4)
	for i := 0; i < 10; i++ {
		o.push(msgState, []byte("s"))
	}
	select {
	case <-o.wake:
	default:
		t.Fatal("expected a pending wake-up")
	}
	assert.Len(t, o.drain(), 1)
}
