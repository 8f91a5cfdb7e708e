package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yourorg/xbridge-api/internal/circuitbreaker"
	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/provider"
	"github.com/yourorg/xbridge-api/internal/swap"
)

func quoteParams(r *http.Request) swap.QuoteParams {
	q := r.URL.Query()
	return swap.QuoteParams{
		FromToken: q.Get("fromToken"),
		ToToken:   q.Get("toToken"),
		Amount:    q.Get("amount"),
		FromChain: q.Get("fromChain"),
		ToChain:   q.Get("toChain"),
	}
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := a.svc.GetQuoteWithFee(r.Context(), quoteParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// transactionBody is the POST /api/swap/transaction payload
type transactionBody struct {
	FromToken   string      `json:"fromToken"`
	ToToken     string      `json:"toToken"`
	Amount      looseString `json:"amount"`
	FromChain   looseString `json:"fromChain"`
	ToChain     looseString `json:"toChain"`
	Slippage    looseString `json:"slippage"`
	FromAddress string      `json:"fromAddress"`
	ToAddress   string      `json:"toAddress"`
}

func (a *API) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var body transactionBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	payload, err := a.svc.BuildTransactionWithFee(r.Context(), swap.TransactionParams{
		QuoteParams: swap.QuoteParams{
			FromToken: body.FromToken,
			ToToken:   body.ToToken,
			Amount:    string(body.Amount),
			FromChain: string(body.FromChain),
			ToChain:   string(body.ToChain),
		},
		Slippage:    string(body.Slippage),
		FromAddress: body.FromAddress,
		ToAddress:   body.ToAddress,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) handleRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := a.svc.ListRoutes(r.Context(), quoteParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := a.svc.TrackStatus(r.Context(), q.Get("txHash"), q.Get("chainId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleFee(w http.ResponseWriter, r *http.Request) {
	info, err := a.svc.GetFeeInfo(r.Context(), r.URL.Query().Get("chainId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// calculateFeeBody is the POST /api/swap/calculate-fee payload
type calculateFeeBody struct {
	ChainID looseString `json:"chainId"`
	Amount  looseString `json:"amount"`
	Token   string      `json:"token"`
}

func (a *API) handleCalculateFee(w http.ResponseWriter, r *http.Request) {
	var body calculateFeeBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	fee, err := a.svc.CalculateFee(r.Context(), string(body.ChainID), string(body.Amount), body.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fee)
}

func (a *API) handleTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokens, err := a.svc.ListTokens(r.Context(), q.Get("chainId"), q.Get("includeExternal") == "true")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (a *API) handleEquivalentToken(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := a.svc.EquivalentToken(r.Context(), q.Get("srcChainId"), q.Get("destChainId"), q.Get("tokenAddress"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleTokenInfo(w http.ResponseWriter, r *http.Request) {
	token, err := a.svc.TokenInfo(r.Context(), r.URL.Query().Get("chainId"), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (a *API) handleGasPrice(w http.ResponseWriter, r *http.Request) {
	price, err := a.svc.GasPrice(r.Context(), r.URL.Query().Get("chainId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (a *API) handleChains(w http.ResponseWriter, r *http.Request) {
	chains, err := a.svc.SupportedChains(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chains)
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Info())
}

func (a *API) handleProxy(w http.ResponseWriter, r *http.Request) {
	if a.proxy == nil {
		writeError(w, r, errs.New(errs.Configuration, errs.UpstreamUnavailable, "routing API passthrough disabled"))
		return
	}
	path := "/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	resp, err := a.proxy.Proxy(r.Context(), path, r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// healthReport is the /health body
type healthReport struct {
	Status    string                    `json:"status"`
	Version   string                    `json:"version"`
	Uptime    string                    `json:"uptime"`
	Timestamp string                    `json:"timestamp"`
	Chains    map[string]provider.State `json:"chains,omitempty"`
	Upstream  *circuitbreaker.State     `json:"upstream,omitempty"`
}

// handleHealth reports "degraded" while the routing API circuit is open or a
// chain has run out of endpoints. It always answers 200.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := healthReport{
		Status:    "ok",
		Version:   a.opts.Version,
		Uptime:    time.Since(a.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if a.providers != nil {
		report.Chains = a.providers.States()
		for _, s := range report.Chains {
			if s == provider.StateExhausted {
				report.Status = "degraded"
			}
		}
	}
	if a.breaker != nil {
		state := a.breaker.GetState()
		report.Upstream = &state
		if state == circuitbreaker.StateOpen {
			report.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, report)
}
