package redis

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "result:tokens:1"},
		{"dexsearch", "dexsearch:result:tokens:1"},
		{"dexsearch:", "dexsearch:result:tokens:1"},
		{"  app  ", "app:result:tokens:1"},
	}
	for _, tc := range tests {
		c := &Client{prefix: normalizePrefix(tc.prefix)}
		assert.Equal(t, tc.want, c.key("result", "tokens:1"))
	}
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.True(t, strings.Contains(slidingWindowLua, "ZREMRANGEBYSCORE"))
	assert.NotNil(t, NewSlidingWindow(&Client{}).script)
	assert.Contains(t, unlockLua, "DEL")
}

func TestWindowArgs(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	args, err := windowArgs(now, 60, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []any{now.UnixMilli(), int64(60_000), 60}, args)

	_, err = windowArgs(now, 0, time.Minute)
	assert.Error(t, err)
	_, err = windowArgs(now, 10, 0)
	assert.Error(t, err)
}
