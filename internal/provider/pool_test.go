package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/types"
)

type stubClient struct {
	url      string
	blockErr error
	gasErr   error
	closed   bool
}

func (s *stubClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (s *stubClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, nil
}

func (s *stubClient) BlockNumber(context.Context) (uint64, error) {
	if s.blockErr != nil {
		return 0, s.blockErr
	}
	return 100, nil
}

func (s *stubClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	if s.gasErr != nil {
		return nil, s.gasErr
	}
	return big.NewInt(25_000_000_000), nil
}

func (s *stubClient) Close() { s.closed = true }

type recordingDialer struct {
	mu      sync.Mutex
	dialed  []string
	failFor map[string]error
}

func (d *recordingDialer) Dial(_ context.Context, url string) (Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed = append(d.dialed, url)
	if err := d.failFor[url]; err != nil {
		return nil, err
	}
	return &stubClient{url: url}, nil
}

func testChains() types.ChainTable {
	return types.ChainTable{
		"1":   {ID: "1", Name: "Ethereum", RPCURLs: []string{"A", "B", "C"}},
		"137": {ID: "137", Name: "Polygon", RPCURLs: []string{"P"}},
		"10":  {ID: "10", Name: "Optimism"},
	}
}

func TestPool_GetIsLazyAndCached(t *testing.T) {
	d := &recordingDialer{}
	p := NewPool(testChains(), d.Dial)

	assert.Equal(t, StateIdle, p.State("1"))
	assert.Empty(t, d.dialed, "nothing dialed before first use")

	h1, err := p.Get(context.Background(), "1")
	require.NoError(t, err)
	h2, err := p.Get(context.Background(), "1")
	require.NoError(t, err)

	assert.Same(t, h1, h2, "handle should be cached")
	assert.Equal(t, "A", h1.URL)
	assert.Equal(t, []string{"A"}, d.dialed)
	assert.Equal(t, StateConnected, p.State("1"))
}

func TestPool_GetUnconfigured(t *testing.T) {
	p := NewPool(testChains(), (&recordingDialer{}).Dial)

	_, err := p.Get(context.Background(), "999")
	assert.True(t, errs.Is(err, errs.UnconfiguredChain))

	_, err = p.Get(context.Background(), "10")
	assert.True(t, errs.Is(err, errs.UnconfiguredChain), "chain without rpc urls")
}

func TestPool_ReconnectRoundRobin(t *testing.T) {
	d := &recordingDialer{}
	p := NewPool(testChains(), d.Dial)
	ctx := context.Background()

	h, err := p.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "A", h.URL)

	want := []string{"B", "C", "A", "B"}
	for _, url := range want {
		h, err = p.Reconnect(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, url, h.URL)
	}
	assert.Equal(t, uint64(5), h.Generation)

	cur, err := p.Get(ctx, "1")
	require.NoError(t, err)
	assert.Same(t, h, cur, "reconnect replaces the cached handle")
}

func TestPool_ReconnectSingleEndpoint(t *testing.T) {
	p := NewPool(testChains(), (&recordingDialer{}).Dial)
	ctx := context.Background()

	_, err := p.Get(ctx, "137")
	require.NoError(t, err)

	_, err = p.Reconnect(ctx, "137")
	assert.True(t, errs.Is(err, errs.NoAlternateEndpoint))
	assert.Equal(t, StateExhausted, p.State("137"))

	_, err = p.Reconnect(ctx, "10")
	assert.True(t, errs.Is(err, errs.NoAlternateEndpoint), "no urls at all")
}

func TestPool_FailoverSkipsDeadEndpoints(t *testing.T) {
	d := &recordingDialer{failFor: map[string]error{"B": errors.New("connection refused")}}
	p := NewPool(testChains(), d.Dial)
	ctx := context.Background()

	_, err := p.Get(ctx, "1")
	require.NoError(t, err)

	h, err := p.Reconnect(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "C", h.URL)
	assert.Equal(t, []string{"A", "B", "C"}, d.dialed)
	assert.Equal(t, StateConnected, p.State("1"))
}

func TestPool_FailoverDialFailureExhausts(t *testing.T) {
	refused := errors.New("connection refused")
	d := &recordingDialer{failFor: map[string]error{"B": refused, "C": refused}}
	p := NewPool(testChains(), d.Dial)
	ctx := context.Background()

	_, err := p.Get(ctx, "1")
	require.NoError(t, err)

	_, err = p.Reconnect(ctx, "1")
	assert.True(t, errs.Is(err, errs.RPCUnavailable))
	assert.False(t, errs.Is(err, errs.UpstreamUnavailable), "rpc outages are not routing API outages")
	assert.Equal(t, StateExhausted, p.State("1"))
	assert.Equal(t, []string{"A", "B", "C"}, d.dialed, "the failed endpoint is not redialed")
}

func TestPool_GetRotatesPastDeadFirstEndpoint(t *testing.T) {
	d := &recordingDialer{failFor: map[string]error{"A": errors.New("connection refused")}}
	p := NewPool(testChains(), d.Dial)
	ctx := context.Background()

	h, err := p.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "B", h.URL)
	assert.Equal(t, 1, h.Index)
	assert.Equal(t, StateConnected, p.State("1"))

	h, err = p.Reconnect(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "C", h.URL)

	cur, err := p.Get(ctx, "1")
	require.NoError(t, err)
	assert.Same(t, h, cur)
	assert.Equal(t, []string{"A", "B", "C"}, d.dialed)
}

func TestPool_GetExhaustsOnlyAfterEveryEndpoint(t *testing.T) {
	refused := errors.New("connection refused")
	d := &recordingDialer{failFor: map[string]error{"A": refused, "B": refused, "C": refused}}
	p := NewPool(testChains(), d.Dial)
	ctx := context.Background()

	_, err := p.Get(ctx, "1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RPCUnavailable))
	assert.Equal(t, StateExhausted, p.State("1"))
	assert.Equal(t, []string{"A", "B", "C"}, d.dialed)

	d.mu.Lock()
	delete(d.failFor, "A")
	d.mu.Unlock()

	h, err := p.Reconnect(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "A", h.URL, "rotation continues after the last endpoint that failed")
	assert.Equal(t, StateConnected, p.State("1"))
}

func TestPool_ReportFailure(t *testing.T) {
	d := &recordingDialer{}
	var failovers []string
	p := NewPool(testChains(), d.Dial).WithFailoverHook(func(id string) { failovers = append(failovers, id) })
	ctx := context.Background()

	h, err := p.Get(ctx, "1")
	require.NoError(t, err)

	t.Run("non-transport error keeps handle", func(t *testing.T) {
		got, err := p.ReportFailure(ctx, h, errors.New("execution reverted"))
		require.NoError(t, err)
		assert.Same(t, h, got)
	})

	t.Run("transport error fails over", func(t *testing.T) {
		got, err := p.ReportFailure(ctx, h, io.EOF)
		require.NoError(t, err)
		assert.Equal(t, "B", got.URL)
		assert.Equal(t, []string{"1"}, failovers)
	})

	t.Run("stale handle does not rotate twice", func(t *testing.T) {
		got, err := p.ReportFailure(ctx, h, io.EOF)
		require.NoError(t, err)
		assert.Equal(t, "B", got.URL, "another caller already failed over")
		assert.Len(t, failovers, 1)
	})
}

func TestPool_IsConnected(t *testing.T) {
	p := NewPool(testChains(), func(_ context.Context, url string) (Client, error) {
		if url == "P" {
			return &stubClient{url: url, blockErr: errors.New("down")}, nil
		}
		return &stubClient{url: url}, nil
	})
	ctx := context.Background()

	assert.True(t, p.IsConnected(ctx, "1"))
	assert.False(t, p.IsConnected(ctx, "137"), "probe error becomes false")
	assert.False(t, p.IsConnected(ctx, "999"), "unconfigured chain becomes false")
}

func TestPool_SuggestGasPrice(t *testing.T) {
	p := NewPool(testChains(), func(_ context.Context, url string) (Client, error) {
		if url == "A" {
			return &stubClient{url: url, gasErr: io.ErrUnexpectedEOF}, nil
		}
		return &stubClient{url: url}, nil
	})
	ctx := context.Background()

	_, err := p.SuggestGasPrice(ctx, "1")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.GasPriceUnavailable))

	h, err := p.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "B", h.URL, "transport error rotates to the next endpoint")

	price, err := p.SuggestGasPrice(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "25000000000", price.String())

	_, err = p.SuggestGasPrice(ctx, "999")
	assert.True(t, errs.Is(err, errs.UnconfiguredChain))
}

func TestPool_StatesAndClose(t *testing.T) {
	p := NewPool(testChains(), (&recordingDialer{}).Dial)
	h, err := p.Get(context.Background(), "1")
	require.NoError(t, err)

	states := p.States()
	assert.Equal(t, map[string]State{"1": StateConnected, "10": StateIdle, "137": StateIdle}, states)

	p.Close()
	assert.True(t, h.Client.(*stubClient).closed)
	assert.Equal(t, StateIdle, p.State("1"))
}

func TestPool_ConcurrentGetDialsOnce(t *testing.T) {
	d := &recordingDialer{}
	p := NewPool(testChains(), d.Dial)

	var wg sync.WaitGroup
	handles := make([]*Handle, 20)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := p.Get(context.Background(), "1")
			if err == nil {
				handles[i] = h
			}
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		assert.Same(t, handles[0], h, "every caller sees the same handle")
	}
}

func TestIsTransportError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("execution reverted"), false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{io.EOF, true},
		{fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{rpc.HTTPError{StatusCode: http.StatusBadGateway}, true},
		{rpc.HTTPError{StatusCode: http.StatusTooManyRequests}, true},
		{rpc.HTTPError{StatusCode: http.StatusBadRequest}, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransportError(tt.err))
		})
	}
}
