// Package api exposes the swap pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/yourorg/xbridge-api/internal/circuitbreaker"
	"github.com/yourorg/xbridge-api/internal/lifi"
	"github.com/yourorg/xbridge-api/internal/model"
	"github.com/yourorg/xbridge-api/internal/provider"
	"github.com/yourorg/xbridge-api/internal/swap"
)

// Swapper is the swap pipeline behind the HTTP surface
type Swapper interface {
	GetQuoteWithFee(ctx context.Context, p swap.QuoteParams) (model.Quote, error)
	BuildTransactionWithFee(ctx context.Context, p swap.TransactionParams) (model.TransactionPayload, error)
	ListRoutes(ctx context.Context, p swap.QuoteParams) ([]model.RouteSummary, error)
	TrackStatus(ctx context.Context, txHash, chainID string) (model.StatusResult, error)
	GetFeeInfo(ctx context.Context, chainID string) (model.FeeInfo, error)
	CalculateFee(ctx context.Context, chainID, amount, token string) (model.CalculatedFee, error)
	ListTokens(ctx context.Context, chainID string, includeExternal bool) ([]model.Token, error)
	EquivalentToken(ctx context.Context, srcChainID, destChainID, token string) (model.EquivalentToken, error)
	TokenInfo(ctx context.Context, chainID, token string) (model.Token, error)
	GasPrice(ctx context.Context, chainID string) (model.GasPrice, error)
	SupportedChains(ctx context.Context) ([]model.Chain, error)
	Info() model.ServiceInfo
}

// Proxier relays raw routing API requests
type Proxier interface {
	Proxy(ctx context.Context, path string, query url.Values) (lifi.ProxyResponse, error)
}

// ProviderStates reports per-chain RPC connection state
type ProviderStates interface {
	States() map[string]provider.State
}

// BreakerState reports the routing API circuit state
type BreakerState interface {
	GetState() circuitbreaker.State
}

// Options configures the HTTP surface
type Options struct {
	Version        string
	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
	Registerer     prometheus.Registerer
	Gatherer       prometheus.Gatherer
}

// API holds the handlers and their collaborators
type API struct {
	opts      Options
	svc       Swapper
	proxy     Proxier
	providers ProviderStates
	breaker   BreakerState
	metrics   *Metrics
	limiter   *rate.Limiter
	started   time.Time
}

// New creates the API. Metrics are registered with opts.Registerer, or the
// default registry when nil.
func New(svc Swapper, opts Options) *API {
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Version == "" {
		opts.Version = svc.Info().Version
	}
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 20
	}

	return &API{
		opts:    opts,
		svc:     svc,
		metrics: NewMetrics(opts.Registerer),
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst),
		started: time.Now(),
	}
}

// WithProxy enables the /api/lifi passthrough and returns the API
func (a *API) WithProxy(p Proxier) *API {
	a.proxy = p
	return a
}

// WithHealth sets the sources reported by /health and returns the API
func (a *API) WithHealth(providers ProviderStates, breaker BreakerState) *API {
	a.providers = providers
	a.breaker = breaker
	return a
}

// Metrics returns the collectors so upstream clients can report into them
func (a *API) Metrics() *Metrics {
	return a.metrics
}

// Handler builds the router
func (a *API) Handler() http.Handler {
	mux := chi.NewMux()

	mux.Use(requestLogger)
	mux.Use(recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(a.instrument)

	mux.Get("/health", a.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(a.opts.Gatherer, promhttp.HandlerOpts{}))

	mux.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter(a.limiter))

		r.Get("/info", a.handleInfo)
		r.Get("/chains", a.handleChains)
		r.Get("/gas", a.handleGasPrice)

		r.Route("/swap", func(r chi.Router) {
			r.Use(noStore)
			r.Get("/quote", a.handleQuote)
			r.Post("/transaction", a.handleTransaction)
			r.Get("/routes", a.handleRoutes)
			r.Get("/status", a.handleStatus)
			r.Get("/fee", a.handleFee)
			r.Post("/calculate-fee", a.handleCalculateFee)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/", a.handleTokens)
			r.Get("/equivalent", a.handleEquivalentToken)
			r.Get("/{address}", a.handleTokenInfo)
		})

		r.Get("/lifi/*", a.handleProxy)
	})

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:     true,
			Message:   "route not found",
			Path:      r.URL.RequestURI(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})

	return newCORSHandler(a.opts.CORSOrigin, mux)
}
