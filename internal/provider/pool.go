// Package provider manages one JSON-RPC connection per chain with round-robin
// failover across the chain's configured endpoints.
package provider

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/types"
)

// Client is the subset of an RPC client the swap pipeline uses
type Client interface {
	bind.ContractCaller
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	Close()
}

// DialFunc opens a client for url
type DialFunc func(ctx context.Context, url string) (Client, error)

// DialEthclient dials url with go-ethereum's ethclient
func DialEthclient(ctx context.Context, url string) (Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// State is the connection state of a chain
type State int

// Connection states
const (
	StateIdle State = iota
	StateConnected
	StateReconnecting
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateReconnecting:
		return "Reconnecting"
	case StateExhausted:
		return "Exhausted"
	default:
		return "Idle"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Handle is an immutable view of the active connection for a chain. A
// failover replaces the handle; Generation increases with each replacement.
type Handle struct {
	ChainID    string
	URL        string
	Index      int
	Generation uint64
	Client     Client
}

// Pool caches one Handle per chain id
type Pool struct {
	chains       types.ChainTable
	dial         DialFunc
	probeTimeout time.Duration
	onFailover   func(chainID string)

	mu      sync.Mutex
	handles map[string]*Handle
	states  map[string]State
	gens    map[string]uint64
	// index of the last endpoint dialed for a chain without a live handle
	cursors map[string]int
}

// NewPool creates a pool over the chain table. Connections are opened lazily.
func NewPool(chains types.ChainTable, dial DialFunc) *Pool {
	if dial == nil {
		dial = DialEthclient
	}
	return &Pool{
		chains:       chains,
		dial:         dial,
		probeTimeout: 5 * time.Second,
		handles:      make(map[string]*Handle),
		states:       make(map[string]State),
		gens:         make(map[string]uint64),
		cursors:      make(map[string]int),
	}
}

// WithProbeTimeout sets the liveness probe timeout and returns the pool
func (p *Pool) WithProbeTimeout(d time.Duration) *Pool {
	p.probeTimeout = d
	return p
}

// WithFailoverHook registers a callback invoked after every successful failover
func (p *Pool) WithFailoverHook(fn func(chainID string)) *Pool {
	p.onFailover = fn
	return p
}

// Get returns the active handle for chainID, connecting on first use. The
// first dial starts at the chain's first endpoint and walks the list until
// one answers; the chain is Exhausted only when every endpoint failed.
func (p *Pool) Get(ctx context.Context, chainID string) (*Handle, error) {
	p.mu.Lock()
	if h, ok := p.handles[chainID]; ok {
		p.mu.Unlock()
		return h, nil
	}
	start := p.cursors[chainID]
	p.mu.Unlock()

	urls, err := p.urls(chainID)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < len(urls); i++ {
		idx := (start + i) % len(urls)
		client, err := p.dial(ctx, urls[idx])
		if err != nil {
			lastErr = err
			p.mu.Lock()
			p.cursors[chainID] = idx
			p.mu.Unlock()
			logrus.WithFields(logrus.Fields{"chain_id": chainID, "url": urls[idx], "error": err}).Warn("RPC dial failed, trying next endpoint")
			continue
		}
		return p.install(chainID, idx, urls[idx], client), nil
	}

	p.setState(chainID, StateExhausted)
	return nil, errs.Wrap(errs.Upstream, errs.RPCUnavailable, lastErr, "every rpc endpoint failed to dial").OnChain(chainID)
}

// install caches a freshly dialed client unless another caller connected first
func (p *Pool) install(chainID string, idx int, url string, client Client) *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.handles[chainID]; ok {
		// lost the race to another caller
		client.Close()
		return existing
	}
	p.gens[chainID]++
	h := &Handle{ChainID: chainID, URL: url, Index: idx, Generation: p.gens[chainID], Client: client}
	p.handles[chainID] = h
	p.cursors[chainID] = idx
	p.states[chainID] = StateConnected

	logrus.WithFields(logrus.Fields{"chain_id": chainID, "url": url}).Info("RPC provider connected")
	return h
}

// Reconnect rotates chainID to the first endpoint after the active (or last
// failed) one that accepts a dial, wrapping to the start of the list. It
// fails with NoAlternateEndpoint when the chain has fewer than two endpoints.
func (p *Pool) Reconnect(ctx context.Context, chainID string) (*Handle, error) {
	p.mu.Lock()
	var gen uint64
	if h, ok := p.handles[chainID]; ok {
		gen = h.Generation
	}
	p.mu.Unlock()
	return p.reconnectFrom(ctx, chainID, gen)
}

// ReportFailure classifies err observed on h. Transport errors trigger a
// failover unless another caller already replaced h, in which case the
// current handle is returned. Other errors leave the pool untouched.
func (p *Pool) ReportFailure(ctx context.Context, h *Handle, err error) (*Handle, error) {
	if h == nil || !IsTransportError(err) {
		return h, nil
	}
	logrus.WithFields(logrus.Fields{
		"chain_id": h.ChainID,
		"url":      h.URL,
		"error":    err,
	}).Warn("RPC transport error, failing over")
	return p.reconnectFrom(ctx, h.ChainID, h.Generation)
}

func (p *Pool) reconnectFrom(ctx context.Context, chainID string, gen uint64) (*Handle, error) {
	cfg, ok := p.chains.Lookup(chainID)
	if !ok {
		return nil, errs.New(errs.Configuration, errs.UnconfiguredChain,
			fmt.Sprintf("chain %s is not configured", chainID)).OnChain(chainID)
	}
	urls := cfg.RPCURLs

	p.mu.Lock()
	cur := p.handles[chainID]
	if cur != nil && cur.Generation != gen {
		p.mu.Unlock()
		return cur, nil
	}
	if len(urls) < 2 {
		p.states[chainID] = StateExhausted
		p.mu.Unlock()
		return nil, errs.New(errs.Configuration, errs.NoAlternateEndpoint,
			"no alternate rpc endpoint configured").OnChain(chainID)
	}
	failed := p.cursors[chainID]
	if cur != nil {
		failed = cur.Index
	}
	p.states[chainID] = StateReconnecting
	p.mu.Unlock()

	// every endpoint except the failed one, in round-robin order after it
	var lastErr error
	for i := 1; i < len(urls); i++ {
		next := (failed + i) % len(urls)
		client, err := p.dial(ctx, urls[next])
		if err != nil {
			lastErr = err
			logrus.WithFields(logrus.Fields{"chain_id": chainID, "url": urls[next], "error": err}).Warn("RPC failover dial failed")
			continue
		}

		p.mu.Lock()
		if latest := p.handles[chainID]; latest != nil && latest.Generation != gen {
			p.mu.Unlock()
			client.Close()
			return latest, nil
		}
		p.gens[chainID]++
		h := &Handle{ChainID: chainID, URL: urls[next], Index: next, Generation: p.gens[chainID], Client: client}
		// the previous client is left open so calls already issued on it can finish
		p.handles[chainID] = h
		p.cursors[chainID] = next
		p.states[chainID] = StateConnected
		p.mu.Unlock()

		logrus.WithFields(logrus.Fields{"chain_id": chainID, "url": h.URL, "generation": h.Generation}).Info("RPC provider failed over")
		if p.onFailover != nil {
			p.onFailover(chainID)
		}
		return h, nil
	}

	p.setState(chainID, StateExhausted)
	logrus.WithFields(logrus.Fields{"chain_id": chainID, "error": lastErr}).Error("RPC failover exhausted every endpoint")
	return nil, errs.Wrap(errs.Upstream, errs.RPCUnavailable, lastErr, "rpc failover failed").OnChain(chainID)
}

// IsConnected probes chainID by reading the block height. Every error is reported as false.
func (p *Pool) IsConnected(ctx context.Context, chainID string) bool {
	h, err := p.Get(ctx, chainID)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()
	if _, err := h.Client.BlockNumber(ctx); err != nil {
		logrus.WithFields(logrus.Fields{"chain_id": chainID, "url": h.URL, "error": err}).Debug("Liveness probe failed")
		return false
	}
	return true
}

// SuggestGasPrice reads the current gas price of chainID in wei. A transport
// failure rotates the chain to its next endpoint before the error is returned.
func (p *Pool) SuggestGasPrice(ctx context.Context, chainID string) (*big.Int, error) {
	h, err := p.Get(ctx, chainID)
	if err != nil {
		return nil, err
	}
	price, err := h.Client.SuggestGasPrice(ctx)
	if err != nil {
		if _, ferr := p.ReportFailure(ctx, h, err); ferr != nil {
			logrus.WithFields(logrus.Fields{"chain_id": chainID, "error": ferr}).Warn("Failover after gas price read failed")
		}
		return nil, errs.Wrap(errs.Upstream, errs.GasPriceUnavailable, err, "eth_gasPrice failed").OnChain(chainID)
	}
	return price, nil
}

// State returns the connection state of chainID
func (p *Pool) State(chainID string) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[chainID]
}

// States returns the state of every configured chain
func (p *Pool) States() map[string]State {
	out := make(map[string]State, len(p.chains))
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.chains.IDs() {
		out[id] = p.states[id]
	}
	return out
}

// Close closes every active client
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, h := range p.handles {
		h.Client.Close()
		delete(p.handles, id)
		p.states[id] = StateIdle
	}
}

func (p *Pool) urls(chainID string) ([]string, error) {
	cfg, ok := p.chains.Lookup(chainID)
	if !ok {
		return nil, errs.New(errs.Configuration, errs.UnconfiguredChain,
			fmt.Sprintf("chain %s is not configured", chainID)).OnChain(chainID)
	}
	if len(cfg.RPCURLs) == 0 {
		return nil, errs.New(errs.Configuration, errs.UnconfiguredChain,
			fmt.Sprintf("chain %s has no rpc url", chainID)).OnChain(chainID)
	}
	return cfg.RPCURLs, nil
}

func (p *Pool) setState(chainID string, s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[chainID] = s
}
