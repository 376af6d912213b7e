package liquidity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexsearch/internal/domain"
)

const (
	weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
	usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	chainID int64
	mu      sync.Mutex
	orders  map[string][]domain.OrderbookOrder // key: sell+"/"+buy
	fail    error
	calls   int32
	active  int32
	maxSeen int32
}

func (f *fakeSource) ChainID() int64 { return f.chainID }

func (f *fakeSource) OpenOrders(ctx context.Context, sell, buy string) ([]domain.OrderbookOrder, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		m := atomic.LoadInt32(&f.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxSeen, m, n) {
			break
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	return f.orders[sell+"/"+buy], nil
}

func (f *fakeSource) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func order(amount string) domain.OrderbookOrder {
	return domain.OrderbookOrder{SellAmount: amount, Status: "open"}
}

func TestSum_ExactBeyondFloatPrecision(t *testing.T) {
	got := Sum([]domain.OrderbookOrder{order("9007199254740993"), order("1")}, DirectionAtoB)
	assert.Equal(t, "9007199254740994", got.TotalLiquidity.String())
	assert.Equal(t, uint(2), got.OrderCount)
	assert.Equal(t, DirectionAtoB, got.Direction)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalLiquidity":"9007199254740994"`)
}

func TestSum_SkipsInvalidAmounts(t *testing.T) {
	got := Sum([]domain.OrderbookOrder{order("10"), order("abc"), order("-5"), order("1e3"), order(" 5 ")}, DirectionBtoA)
	assert.Equal(t, "15", got.TotalLiquidity.String())
	assert.Equal(t, uint(2), got.OrderCount)

	empty := Sum(nil, DirectionAtoB)
	assert.Equal(t, "0", empty.TotalLiquidity.String())
	assert.False(t, empty.HasLiquidity())
}

func TestValidatePair(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		wantErr bool
	}{
		{"valid", weth, usdc, false},
		{"mixed case", strings.ToUpper(weth[2:]), usdc, false},
		{"empty", "", usdc, true},
		{"same", weth, strings.ToUpper("0x" + weth[2:]), true},
		{"malformed", "0x1234", usdc, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ValidatePair(tc.a, tc.b)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidPair)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchPair_BothDirections(t *testing.T) {
	src := &fakeSource{chainID: 1, orders: map[string][]domain.OrderbookOrder{
		weth + "/" + usdc: {order("100"), order("250")},
		usdc + "/" + weth: {order("7")},
	}}

	liq, err := FetchPair(context.Background(), src, strings.ToUpper(weth[:2])+weth[2:], usdc)
	require.NoError(t, err)
	assert.Equal(t, "350", liq.AtoB.TotalLiquidity.String())
	assert.Equal(t, uint(2), liq.AtoB.OrderCount)
	assert.Equal(t, "7", liq.BtoA.TotalLiquidity.String())
	assert.Equal(t, uint(1), liq.BtoA.OrderCount)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}

func TestFetchPair_FailureIsNotZero(t *testing.T) {
	src := &fakeSource{chainID: 1, fail: errors.New("HTTP 503")}

	liq, err := FetchPair(context.Background(), src, weth, usdc)
	require.Error(t, err)
	assert.Nil(t, liq)
}

func TestMonitor_DormantOnOtherChains(t *testing.T) {
	src := &fakeSource{chainID: 1}
	m := NewMonitor(src, 8453, WithInterval(10*time.Millisecond), WithLogger(testLogger()))

	require.NoError(t, m.Watch(context.Background(), weth, usdc))
	time.Sleep(30 * time.Millisecond)

	assert.False(t, m.Active())
	snap := m.Snapshot()
	assert.False(t, snap.Active)
	assert.Nil(t, snap.Liquidity)
	assert.Empty(t, snap.Error)
	assert.Zero(t, atomic.LoadInt32(&src.calls))

	dormant := NewMonitor(nil, 1, WithLogger(testLogger()))
	require.NoError(t, dormant.Watch(context.Background(), weth, usdc))
	assert.False(t, dormant.Snapshot().Active)
}

func TestMonitor_PollsAndRefreshes(t *testing.T) {
	src := &fakeSource{chainID: 1, orders: map[string][]domain.OrderbookOrder{
		weth + "/" + usdc: {order("9007199254740993"), order("1")},
	}}
	var updates int32
	m := NewMonitor(src, 1,
		WithInterval(10*time.Millisecond),
		WithUpdateHandler(func(Snapshot) { atomic.AddInt32(&updates, 1) }),
		WithLogger(testLogger()),
	)
	t.Cleanup(m.Stop)

	require.NoError(t, m.Watch(context.Background(), weth, usdc))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&updates) >= 3 }, time.Second, 5*time.Millisecond)

	snap := m.Snapshot()
	require.NotNil(t, snap.Liquidity)
	assert.True(t, snap.Active)
	assert.Equal(t, "9007199254740994", snap.Liquidity.AtoB.TotalLiquidity.String())
	assert.Equal(t, "0", snap.Liquidity.BtoA.TotalLiquidity.String())
	assert.Empty(t, snap.Error)
}

func TestMonitor_UpstreamFailureIsErrorState(t *testing.T) {
	src := &fakeSource{chainID: 1}
	m := NewMonitor(src, 1, WithInterval(10*time.Millisecond), WithLogger(testLogger()))
	t.Cleanup(m.Stop)

	require.NoError(t, m.Watch(context.Background(), weth, usdc))
	require.Eventually(t, func() bool { return m.Snapshot().Liquidity != nil }, time.Second, 5*time.Millisecond)
	assert.False(t, m.Snapshot().Liquidity.AtoB.HasLiquidity())

	src.setFail(errors.New("HTTP 500"))
	require.Eventually(t, func() bool { return m.Snapshot().Error != "" }, time.Second, 5*time.Millisecond)
	assert.Nil(t, m.Snapshot().Liquidity)

	src.setFail(nil)
	require.Eventually(t, func() bool { return m.Snapshot().Liquidity != nil }, time.Second, 5*time.Millisecond)
	assert.Empty(t, m.Snapshot().Error)
}

func TestMonitor_PairChangeNeverOverlaps(t *testing.T) {
	dai := "0x6b175474e89094c44da98b954eedeac495271d0f"
	src := &fakeSource{chainID: 1}
	m := NewMonitor(src, 1, WithInterval(2*time.Millisecond), WithLogger(testLogger()))
	t.Cleanup(m.Stop)

	for i := 0; i < 20; i++ {
		b := usdc
		if i%2 == 1 {
			b = dai
		}
		require.NoError(t, m.Watch(context.Background(), weth, b))
		time.Sleep(3 * time.Millisecond)
	}

	// one poller issues exactly two concurrent requests (one per direction)
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxSeen), int32(2))
	assert.Equal(t, dai, m.Snapshot().TokenB)
}

func TestMonitor_StopClearsAndHalts(t *testing.T) {
	src := &fakeSource{chainID: 1}
	m := NewMonitor(src, 1, WithInterval(5*time.Millisecond), WithLogger(testLogger()))

	require.NoError(t, m.Watch(context.Background(), weth, usdc))
	require.Eventually(t, func() bool { return m.Snapshot().Liquidity != nil }, time.Second, time.Millisecond)

	m.Stop()
	calls := atomic.LoadInt32(&src.calls)
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, calls, atomic.LoadInt32(&src.calls))
	assert.False(t, m.Snapshot().Active)
	assert.Nil(t, m.Snapshot().Liquidity)
}

func TestMonitor_InvalidPairRejected(t *testing.T) {
	m := NewMonitor(&fakeSource{chainID: 1}, 1, WithLogger(testLogger()))
	assert.ErrorIs(t, m.Watch(context.Background(), weth, weth), domain.ErrInvalidPair)
	assert.ErrorIs(t, m.Watch(context.Background(), "", usdc), domain.ErrInvalidPair)
}

func TestMonitor_SetChainStopsPolling(t *testing.T) {
	src := &fakeSource{chainID: 1}
	m := NewMonitor(src, 1, WithInterval(5*time.Millisecond), WithLogger(testLogger()))

	require.NoError(t, m.Watch(context.Background(), weth, usdc))
	require.Eventually(t, func() bool { return m.Snapshot().Active }, time.Second, time.Millisecond)

	m.SetChain(10)
	assert.False(t, m.Active())
	assert.Equal(t, int64(10), m.Snapshot().ChainID)
	assert.False(t, m.Snapshot().Active)
}
