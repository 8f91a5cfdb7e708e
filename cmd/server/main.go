// Package main is the entry point for the xBridge API server, which prices
// cross-chain swaps through LI.FI and attaches the platform fee.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/yourorg/xbridge-api/internal/api"
	"github.com/yourorg/xbridge-api/internal/cache"
	"github.com/yourorg/xbridge-api/internal/config"
	"github.com/yourorg/xbridge-api/internal/contracts"
	"github.com/yourorg/xbridge-api/internal/fee"
	"github.com/yourorg/xbridge-api/internal/lifi"
	"github.com/yourorg/xbridge-api/internal/model"
	xotel "github.com/yourorg/xbridge-api/internal/otel"
	"github.com/yourorg/xbridge-api/internal/provider"
	"github.com/yourorg/xbridge-api/internal/swap"
	"github.com/yourorg/xbridge-api/internal/types"
)

// version is stamped at build time with -ldflags "-X main.version=..."
var version string

// Server represents the API server instance
type Server struct {
	cfg config.Config

	// HTTP server instance
	server *http.Server

	pool    *provider.Pool
	closers []func()
}

// main is the entry point for the application
func main() {
	configPath := pflag.StringP("config", "c", "", "config file (yaml, json or toml)")
	pflag.Parse()

	// Configure logging
	setupLogging()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}
	if version != "" {
		cfg.Version = version
	}

	// Create and start server
	server := NewServer(context.Background(), cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	// Set log formatter based on environment
	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log level based on environment
	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer wires the provider pool, contract gateway, fee engine, routing
// client and swap service behind the HTTP API.
func NewServer(ctx context.Context, cfg config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) *Server {
	s := &Server{cfg: cfg}
	s.closers = append(s.closers, xotel.InitTracer(cfg))

	pool := provider.NewPool(cfg.Chains, provider.DialEthclient).WithProbeTimeout(cfg.ProbeTimeout)
	s.pool = pool
	s.closers = append(s.closers, pool.Close)

	gateway := contracts.NewGateway(pool, cfg.Chains)
	fees := fee.NewEngine(gateway)

	quotes, closeQuotes := newQuoteStore(ctx, cfg)
	s.closers = append(s.closers, closeQuotes)

	routes := lifi.New(lifi.Config{
		BaseURL:          cfg.LiFi.APIURL,
		APIKey:           cfg.LiFi.APIKey,
		Integrator:       cfg.LiFi.Integrator,
		Timeout:          cfg.LiFi.Timeout,
		RetryMax:         cfg.LiFi.RetryMax,
		GasLimit:         cfg.GasLimit,
		BreakerFailures:  cfg.BreakerFailures,
		BreakerSuccesses: cfg.BreakerSuccesses,
		BreakerCooldown:  cfg.BreakerCooldown,
		Diamonds:         diamonds(cfg.Chains),
	}, quotes, gateway)

	tokens, err := cache.NewLRU[string, model.Token](cfg.TokenCacheSize)
	if err != nil {
		logrus.Fatalf("Token cache: %v", err)
	}

	svc := swap.NewService(cfg.Chains, routes, fees).
		WithRegistry(gateway).
		WithGasOracle(pool).
		WithTokenCache(tokens).
		WithVersion(cfg.Version)

	handlers := api.New(svc, api.Options{
		Version:        cfg.Version,
		CORSOrigin:     cfg.CORSOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Registerer:     reg,
		Gatherer:       gatherer,
	}).
		WithProxy(routes).
		WithHealth(pool, routes.Breaker())

	metrics := handlers.Metrics()
	routes.WithHooks(lifi.Hooks{
		CacheResult:   metrics.CacheResult,
		UpstreamError: metrics.UpstreamError,
		BreakerTrip:   metrics.BreakerTrip,
	})
	pool.WithFailoverHook(metrics.Failover)

	s.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logrus.WithFields(logrus.Fields{
		"port":        cfg.Port,
		"chains":      strings.Join(cfg.Chains.IDs(), ","),
		"quote_cache": cfg.QuoteCacheBackend,
		"quote_ttl":   cfg.QuoteCacheTTL,
		"lifi_url":    cfg.LiFi.APIURL,
		"rate_limit":  cfg.RateLimitRPS,
		"tracing":     cfg.OtelEndpoint != "",
		"version":     cfg.Version,
	}).Info("Server initialized")

	return s
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	// Start the server in a goroutine
	go func() {
		logrus.Infof("xBridge API server running on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	go s.warmProviders(context.Background())

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	timeout := config.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}

	logrus.Info("Server stopped")
}

// warmProviders connects every configured chain so the first request does not
// pay the dial. Failures only log; requests retry the connection lazily.
func (s *Server) warmProviders(ctx context.Context) {
	var wg sync.WaitGroup
	for _, id := range s.cfg.Chains.IDs() {
		wg.Add(1)
		go func(chainID string) {
			defer wg.Done()
			if !s.pool.IsConnected(ctx, chainID) {
				logrus.WithField("chain_id", chainID).Warn("RPC provider not reachable at start-up")
			}
		}(id)
	}
	wg.Wait()
}

// diamonds maps each chain to the LI.FI diamond its routes must target
func diamonds(chains types.ChainTable) map[string]string {
	out := make(map[string]string, len(chains))
	for id, c := range chains {
		if c.Contracts.LiFiDiamond != "" {
			out[id] = c.Contracts.LiFiDiamond
		}
	}
	return out
}
