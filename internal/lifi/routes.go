package lifi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/model"
	"github.com/yourorg/xbridge-api/internal/types"
)

// defaultQuoteSlippage is the 1% tolerance used for indicative quotes
var defaultQuoteSlippage = decimal.NewFromInt(1)

// QuoteRequest identifies a swap to price. ToChain defaults to FromChain.
type QuoteRequest struct {
	FromToken string
	ToToken   string
	Amount    string
	FromChain string
	ToChain   string
}

func (r QuoteRequest) withDefaults() QuoteRequest {
	if r.ToChain == "" {
		r.ToChain = r.FromChain
	}
	return r
}

// CacheKey is the quote cache key. Sender and slippage are deliberately not
// part of it, so requests differing only in those share a cached quote.
func (r QuoteRequest) CacheKey() string {
	r = r.withDefaults()
	return fmt.Sprintf("%s-%s-%s-%s-%s", r.FromToken, r.ToToken, r.Amount, r.FromChain, r.ToChain)
}

func (r QuoteRequest) query(fromAddress string, slippagePercent decimal.Decimal) url.Values {
	q := url.Values{}
	q.Set("fromChain", r.FromChain)
	q.Set("toChain", r.ToChain)
	q.Set("fromToken", r.FromToken)
	q.Set("toToken", r.ToToken)
	q.Set("fromAmount", r.Amount)
	q.Set("fromAddress", fromAddress)
	q.Set("slippage", slippagePercent.Div(decimal.NewFromInt(100)).String())
	return q
}

// GetQuote returns a normalized quote, serving repeated requests from the
// quote cache until the entry expires. Failures are never cached.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (model.Quote, error) {
	req = req.withDefaults()
	key := req.CacheKey()

	if c.quotes != nil {
		if q, ok := c.quotes.Lookup(ctx, key); ok {
			logrus.WithField("cache_key", key).Debug("Quote cache hit")
			c.observeCache(true)
			return q, nil
		}
		c.observeCache(false)
	}

	q := req.query(types.ZeroAddress, defaultQuoteSlippage)
	c.withIntegrator(q)
	body, err := c.get(ctx, "/quote", q)
	if err != nil {
		return model.Quote{}, errs.Wrap(errs.Upstream, errs.QuoteFetchFailed, err, "quote request failed").OnChain(req.FromChain)
	}
	d, err := decodeResponse(body)
	if err != nil {
		return model.Quote{}, errs.Wrap(errs.Upstream, errs.QuoteFetchFailed, err, "quote response malformed").OnChain(req.FromChain)
	}

	quote := normalize(d)
	if c.quotes != nil {
		c.quotes.Save(ctx, key, quote)
	}
	return quote, nil
}

// GetRoutes returns candidate routes in the order the routing API ranked them.
// Route lists are not cached.
func (c *Client) GetRoutes(ctx context.Context, req QuoteRequest) ([]model.RouteSummary, error) {
	req = req.withDefaults()
	q := url.Values{}
	q.Set("fromChain", req.FromChain)
	q.Set("toChain", req.ToChain)
	q.Set("fromToken", req.FromToken)
	q.Set("toToken", req.ToToken)
	q.Set("fromAmount", req.Amount)
	q.Set("fromAddress", types.ZeroAddress)
	c.withIntegrator(q)

	body, err := c.get(ctx, "/routes", q)
	if err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.RoutesFetchFailed, err, "routes request failed").OnChain(req.FromChain)
	}
	d, err := decodeResponse(body)
	if err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.RoutesFetchFailed, err, "routes response malformed").OnChain(req.FromChain)
	}
	return normalize(d).Routes, nil
}

// TrackStatus returns the routing API's view of a submitted transfer. A
// transfer the API has not indexed yet is reported with status NOT_FOUND,
// not as an error.
func (c *Client) TrackStatus(ctx context.Context, txHash, chainID string) (model.StatusResult, error) {
	q := url.Values{}
	q.Set("txHash", txHash)
	if chainID != "" {
		q.Set("fromChain", chainID)
		q.Set("chainId", chainID)
	}

	body, err := c.get(ctx, "/status", q)
	if err != nil {
		if isNotFound(err) {
			return model.StatusResult{Status: "NOT_FOUND", Steps: []model.StepStatus{}}, nil
		}
		return model.StatusResult{}, errs.Wrap(errs.Upstream, errs.StatusFetchFailed, err, "status request failed").OnChain(chainID)
	}

	var w wireStatus
	if err := decodeJSON(body, &w); err != nil {
		return model.StatusResult{}, errs.Wrap(errs.Upstream, errs.StatusFetchFailed, err, "status response malformed").OnChain(chainID)
	}
	return w.toModel(), nil
}

// SupportedChains lists the chains the routing API serves
func (c *Client) SupportedChains(ctx context.Context) ([]model.Chain, error) {
	body, err := c.get(ctx, "/chains", nil)
	if err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.ChainsFetchFailed, err, "chains request failed")
	}
	var w wireChains
	if err := decodeJSON(body, &w); err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.ChainsFetchFailed, err, "chains response malformed")
	}
	out := make([]model.Chain, 0, len(w.Chains))
	for _, ch := range w.Chains {
		out = append(out, model.Chain{ID: ch.ID, Key: ch.Key, Name: ch.Name, LogoURI: ch.LogoURI, TokenListURL: ch.TokenListURL})
	}
	return out, nil
}

// Tokens lists the routing API's known tokens for chainID
func (c *Client) Tokens(ctx context.Context, chainID string) ([]model.Token, error) {
	q := url.Values{}
	q.Set("chains", chainID)
	body, err := c.get(ctx, "/tokens", q)
	if err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.TokensFetchFailed, err, "tokens request failed").OnChain(chainID)
	}
	var w wireTokens
	if err := decodeJSON(body, &w); err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.TokensFetchFailed, err, "tokens response malformed").OnChain(chainID)
	}
	list := w.Tokens[chainID]
	out := make([]model.Token, 0, len(list))
	for _, t := range list {
		out = append(out, model.Token{
			Address:  t.Address,
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			LogoURI:  t.LogoURI,
		})
	}
	return out, nil
}

func (c *Client) withIntegrator(q url.Values) {
	if c.cfg.Integrator != "" {
		q.Set("integrator", c.cfg.Integrator)
	}
}

func (c *Client) observeCache(hit bool) {
	if c.hooks.CacheResult != nil {
		c.hooks.CacheResult(hit)
	}
}
