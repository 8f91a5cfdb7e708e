package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/xbridge-api/internal/model"
)

const (
	usdc   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	native = "0x0000000000000000000000000000000000000000"
	wallet = "0x00000000000000000000000000000000000000a1"
)

// fakeServer records requests and answers each path with a canned reply
type fakeServer struct {
	mu      sync.Mutex
	paths   []string
	queries []url.Values
	bodies  [][]byte
	replies map[string]reply
}

type reply struct {
	status int
	body   string
}

func newFakeServer(t *testing.T, replies map[string]reply) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.paths = append(f.paths, r.Method+" "+r.URL.Path)
		f.queries = append(f.queries, r.URL.Query())
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()

		rep, ok := f.replies[r.URL.Path]
		if !ok {
			rep = reply{status: http.StatusNotFound, body: `{"error":true,"message":"route not found"}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rep.status)
		_, _ = w.Write([]byte(rep.body))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--api", srv.URL))
	err := cmd.Execute()
	return out.String(), err
}

const quoteReply = `{
  "id": "q-1",
  "fromChainId": "1",
  "toChainId": "137",
  "fromToken": {"address": "` + usdc + `", "symbol": "USDC", "decimals": 6, "amount": "1500000"},
  "toToken": {"address": "` + native + `", "symbol": "MATIC", "decimals": 18, "amount": "0"},
  "routes": [
    {"routeId": "fast", "fromAmount": "1500000", "toAmount": "2000500000000000000000", "executionTimeSeconds": 180, "gasCostUSD": "3.35",
     "steps": [{"type": "cross", "tool": "stargate", "toolName": "Stargate"}]},
    {"routeId": "cheap", "fromAmount": "1500000", "toAmount": "1999000000000000000000", "executionTimeSeconds": 900, "gasCostUSD": "0.40", "steps": []}
  ],
  "fee": {"percentageBasisPoints": 30, "percentageFormatted": 0.3, "amount": "4500", "token": "` + usdc + `"}
}`

func TestQuote_ConvertsHumanAmount(t *testing.T) {
	f, srv := newFakeServer(t, map[string]reply{"/api/swap/quote": {http.StatusOK, quoteReply}})

	out, err := run(t, srv, "quote", "1.5", "--from-token", usdc, "--to-token", native,
		"--from-chain", "1", "--to-chain", "137", "--decimals", "6")
	require.NoError(t, err)

	require.Equal(t, []string{"GET /api/swap/quote"}, f.paths)
	q := f.queries[0]
	assert.Equal(t, "1500000", q.Get("amount"))
	assert.Equal(t, usdc, q.Get("fromToken"))
	assert.Equal(t, "137", q.Get("toChain"))

	assert.Contains(t, out, "QUOTE q-1")
	assert.Contains(t, out, "1.5 USDC on chain 1")
	assert.Contains(t, out, "0.30%")
	assert.Contains(t, out, "0.0045")
	assert.Contains(t, out, "#1 best")
	assert.Contains(t, out, "2,000.5")
	assert.Contains(t, out, "3m0s")
	assert.Contains(t, out, "Stargate")
}

func TestQuote_InvalidAmountNeverCallsServer(t *testing.T) {
	f, srv := newFakeServer(t, nil)

	_, err := run(t, srv, "quote", "1.0000001", "--from-token", usdc, "--to-token", native, "--decimals", "6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
	assert.Empty(t, f.paths)
}

func TestQuote_ServerErrorIsDecoded(t *testing.T) {
	_, srv := newFakeServer(t, map[string]reply{"/api/swap/quote": {http.StatusBadRequest,
		`{"error":true,"kind":"validation","code":"InvalidAddress","field":"fromToken","message":"\"0x12\" is not a 20-byte hex address"}`}})

	_, err := run(t, srv, "quote", "1", "--from-token", "0x12", "--to-token", native)
	require.Error(t, err)

	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "InvalidAddress", apiErr.Code)
	assert.Equal(t, `InvalidAddress (fromToken): "0x12" is not a 20-byte hex address`, err.Error())
}

func TestRoutes_JSON(t *testing.T) {
	_, srv := newFakeServer(t, map[string]reply{"/api/swap/routes": {http.StatusOK, `[{"routeId":"a","steps":[]},{"routeId":"b","steps":[]}]`}})

	out, err := run(t, srv, "routes", "2", "--from-token", usdc, "--to-token", native, "--json")
	require.NoError(t, err)

	var routes []model.RouteSummary
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	require.Len(t, routes, 2)
	assert.Equal(t, "a", routes[0].RouteID)
}

func TestTx_PostsBody(t *testing.T) {
	f, srv := newFakeServer(t, map[string]reply{"/api/swap/transaction": {http.StatusOK,
		`{"to":"0x00000000000000000000000000000000000000ad","data":"0xdeadbeef","value":"0","gasLimit":3000000,"route":{"id":"q","routes":[]},"fee":{"percentageBasisPoints":30,"percentageFormatted":0.3,"amount":"3000"}}`}})

	out, err := run(t, srv, "tx", "1", "--from-token", usdc, "--to-token", native, "--decimals", "6",
		"--from-chain", "137", "--from-address", wallet, "--slippage", "0.5")
	require.NoError(t, err)

	require.Equal(t, []string{"POST /api/swap/transaction"}, f.paths)
	var sent transactionRequest
	require.NoError(t, json.Unmarshal(f.bodies[0], &sent))
	assert.Equal(t, transactionRequest{
		FromToken: usdc, ToToken: native, Amount: "1000000", FromChain: "137", Slippage: "0.5", FromAddress: wallet,
	}, sent)

	assert.Contains(t, out, "0x00000000000000000000000000000000000000ad")
	assert.Contains(t, out, "Gas limit: 3000000")
	assert.Contains(t, out, "(4 bytes)")
}

func TestTx_RequiresSender(t *testing.T) {
	f, srv := newFakeServer(t, nil)

	_, err := run(t, srv, "tx", "1", "--from-token", usdc, "--to-token", native)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from-address")
	assert.Empty(t, f.paths)
}

func TestStatus(t *testing.T) {
	f, srv := newFakeServer(t, map[string]reply{"/api/swap/status": {http.StatusOK,
		`{"status":"PENDING","substatus":"WAIT_DESTINATION_TRANSACTION","steps":[{"type":"cross","status":"PENDING","tool":"hop"}]}`}})

	out, err := run(t, srv, "status", "0xabc", "--chain", "137")
	require.NoError(t, err)

	assert.Equal(t, "0xabc", f.queries[0].Get("txHash"))
	assert.Equal(t, "137", f.queries[0].Get("chainId"))
	assert.Contains(t, out, "Status:  PENDING")
	assert.Contains(t, out, "Step 1:  cross via hop: PENDING")
}

func TestStatus_WatchRejectsJSON(t *testing.T) {
	_, srv := newFakeServer(t, nil)

	_, err := run(t, srv, "status", "0xabc", "--chain", "1", "--watch", "--json")
	assert.Error(t, err)
}

func TestFee(t *testing.T) {
	t.Run("percentage", func(t *testing.T) {
		f, srv := newFakeServer(t, map[string]reply{"/api/swap/fee": {http.StatusOK, `{"percentageBasisPoints":25,"percentageFormatted":0.25}`}})

		out, err := run(t, srv, "fee", "--chain", "42161")
		require.NoError(t, err)
		assert.Equal(t, "42161", f.queries[0].Get("chainId"))
		assert.Contains(t, out, "0.25% (25 bps)")
	})

	t.Run("amount", func(t *testing.T) {
		f, srv := newFakeServer(t, map[string]reply{"/api/swap/calculate-fee": {http.StatusOK, `{"amount":"250000","token":"native"}`}})

		out, err := run(t, srv, "fee", "--chain", "1", "--amount", "100", "--decimals", "6")
		require.NoError(t, err)

		var sent map[string]string
		require.NoError(t, json.Unmarshal(f.bodies[0], &sent))
		assert.Equal(t, map[string]string{"chainId": "1", "amount": "100000000"}, sent)
		assert.Contains(t, out, "Fee on 100: 0.25")
		assert.Contains(t, out, "token native")
	})
}

func TestTokens_FilterBySymbol(t *testing.T) {
	f, srv := newFakeServer(t, map[string]reply{"/api/tokens": {http.StatusOK,
		`[{"address":"` + usdc + `","symbol":"USDC","decimals":6,"active":true},{"address":"` + wallet + `","symbol":"WETH","decimals":18,"external":true}]`}})

	out, err := run(t, srv, "tokens", "--chain", "1", "--external", "--symbol", "usd")
	require.NoError(t, err)

	assert.Equal(t, "true", f.queries[0].Get("includeExternal"))
	assert.Contains(t, out, "1 TOKENS ON CHAIN 1")
	assert.Contains(t, out, "0xA0b869...eB48")
	assert.NotContains(t, out, "WETH")
}

func TestChainsGasInfo(t *testing.T) {
	_, srv := newFakeServer(t, map[string]reply{
		"/api/chains": {http.StatusOK, `[{"id":137,"key":"pol","name":"Polygon"}]`},
		"/api/gas":    {http.StatusOK, `{"chainId":"137","gasPrice":"30000000000","gasPriceGwei":30}`},
		"/api/info":   {http.StatusOK, `{"name":"xBridge API","version":"1.0.0","supportedChains":[{"id":"1","name":"Ethereum"}]}`},
	})

	out, err := run(t, srv, "chains")
	require.NoError(t, err)
	assert.Contains(t, out, "Polygon")

	out, err = run(t, srv, "gas", "--chain", "137")
	require.NoError(t, err)
	assert.Contains(t, out, "30.00 gwei")

	out, err = run(t, srv, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "xBridge API 1.0.0")
	assert.Contains(t, out, "Ethereum")
}

func TestAPIError_NonJSONBody(t *testing.T) {
	_, srv := newFakeServer(t, map[string]reply{"/api/chains": {http.StatusBadGateway, "upstream exploded"}})

	_, err := run(t, srv, "chains")
	require.Error(t, err)
	assert.Equal(t, "HTTP 502: upstream exploded", err.Error())
}
