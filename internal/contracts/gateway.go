// Package contracts resolves and caches typed handles to the platform's
// on-chain contracts and exposes their read methods.
package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/model"
	"github.com/yourorg/xbridge-api/internal/provider"
	"github.com/yourorg/xbridge-api/internal/types"
)

// Kind names a platform contract
type Kind string

// Contract kinds
const (
	KindAdapter       Kind = "adapter"
	KindFeeCollector  Kind = "feeCollector"
	KindTokenRegistry Kind = "tokenRegistry"
)

// registryReadConcurrency bounds parallel getTokenInfo calls per request
const registryReadConcurrency = 8

// Contract is a handle bound to the provider generation it was built on
type Contract struct {
	Kind    Kind
	ChainID string
	Address common.Address

	handle *provider.Handle
	bound  *bind.BoundContract
}

// Gateway caches one Contract per (kind, chain) and rebuilds it when the
// chain's provider has failed over.
type Gateway struct {
	pool   *provider.Pool
	chains types.ChainTable

	mu      sync.Mutex
	handles map[string]*Contract
}

// NewGateway creates a gateway reading through pool
func NewGateway(pool *provider.Pool, chains types.ChainTable) *Gateway {
	return &Gateway{
		pool:    pool,
		chains:  chains,
		handles: make(map[string]*Contract),
	}
}

func cacheKey(kind Kind, chainID string) string {
	return fmt.Sprintf("%s-%s", kind, chainID)
}

// GetAdapter returns the swap adapter for chainID
func (g *Gateway) GetAdapter(ctx context.Context, chainID string) (*Contract, error) {
	addr, err := g.staticAddress(KindAdapter, chainID)
	if err != nil {
		return nil, err
	}
	return g.contract(ctx, KindAdapter, chainID, addr, AdapterABI)
}

// AdapterAddress returns the configured adapter address of chainID without
// dialing the chain
func (g *Gateway) AdapterAddress(_ context.Context, chainID string) (common.Address, error) {
	return g.staticAddress(KindAdapter, chainID)
}

// GetTokenRegistry returns the token registry for chainID
func (g *Gateway) GetTokenRegistry(ctx context.Context, chainID string) (*Contract, error) {
	addr, err := g.staticAddress(KindTokenRegistry, chainID)
	if err != nil {
		return nil, err
	}
	return g.contract(ctx, KindTokenRegistry, chainID, addr, TokenRegistryABI)
}

// GetFeeCollector returns the fee collector for chainID. The address is read
// from the adapter's feeCollector() getter; chains without an adapter fall
// back to the statically configured fee collector.
func (g *Gateway) GetFeeCollector(ctx context.Context, chainID string) (*Contract, error) {
	h, err := g.pool.Get(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if c := g.cached(KindFeeCollector, chainID, h); c != nil {
		return c, nil
	}

	adapter, err := g.GetAdapter(ctx, chainID)
	if err != nil {
		if !errs.Is(err, errs.MissingContractAddress) {
			return nil, err
		}
		addr, serr := g.staticAddress(KindFeeCollector, chainID)
		if serr != nil {
			return nil, serr
		}
		return g.contract(ctx, KindFeeCollector, chainID, addr, FeeCollectorABI)
	}

	out, err := g.call(ctx, adapter, "feeCollector")
	if err != nil {
		return nil, errs.Wrap(errs.Upstream, errs.FeeCollectorResolutionFailed, err,
			"reading feeCollector() from adapter failed").OnChain(chainID)
	}
	addr, ok := out[0].(common.Address)
	if !ok || addr == (common.Address{}) {
		return nil, errs.New(errs.Upstream, errs.FeeCollectorResolutionFailed,
			"adapter returned no fee collector").OnChain(chainID)
	}
	return g.contract(ctx, KindFeeCollector, chainID, addr, FeeCollectorABI)
}

// ClearCache drops the cached handles of chainID, or of every chain when chainID is empty
func (g *Gateway) ClearCache(chainID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if chainID == "" {
		g.handles = make(map[string]*Contract)
		return
	}
	for _, kind := range []Kind{KindAdapter, KindFeeCollector, KindTokenRegistry} {
		delete(g.handles, cacheKey(kind, chainID))
	}
}

// FeePercentage reads the fee in basis points from the fee collector
func (g *Gateway) FeePercentage(ctx context.Context, chainID string) (*big.Int, error) {
	fc, err := g.GetFeeCollector(ctx, chainID)
	if err != nil {
		return nil, err
	}
	out, err := g.call(ctx, fc, "feePercentage")
	if err != nil {
		return nil, err
	}
	return bigOutput(out)
}

// CalculateFee asks the fee collector for the fee owed on amount
func (g *Gateway) CalculateFee(ctx context.Context, chainID string, amount *big.Int) (*big.Int, error) {
	fc, err := g.GetFeeCollector(ctx, chainID)
	if err != nil {
		return nil, err
	}
	out, err := g.call(ctx, fc, "calculateFee", amount)
	if err != nil {
		return nil, err
	}
	return bigOutput(out)
}

// RegisteredTokens lists the registry's tokens with their metadata, in
// registry order. Any failed read fails the whole call.
func (g *Gateway) RegisteredTokens(ctx context.Context, chainID string, activeOnly bool) ([]model.Token, error) {
	reg, err := g.GetTokenRegistry(ctx, chainID)
	if err != nil {
		return nil, err
	}

	method := "getTokens"
	if activeOnly {
		method = "getActiveTokens"
	}
	out, err := g.call(ctx, reg, method)
	if err != nil {
		return nil, registryErr(chainID, err, method+" failed")
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, registryErr(chainID, nil, method+" returned an unexpected type")
	}

	tokens := make([]model.Token, len(addrs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(registryReadConcurrency)
	for i, addr := range addrs {
		i, addr := i, addr
		eg.Go(func() error {
			tok, err := g.tokenInfo(egCtx, reg, addr)
			if err != nil {
				return err
			}
			tokens[i] = tok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, registryErr(chainID, err, "getTokenInfo failed")
	}

	logrus.WithFields(logrus.Fields{"chain_id": chainID, "count": len(tokens), "active_only": activeOnly}).Debug("Read registered tokens")
	return tokens, nil
}

// TokenInfo reads a single token's registry metadata
func (g *Gateway) TokenInfo(ctx context.Context, chainID, token string) (model.Token, error) {
	reg, err := g.GetTokenRegistry(ctx, chainID)
	if err != nil {
		return model.Token{}, err
	}
	tok, err := g.tokenInfo(ctx, reg, common.HexToAddress(token))
	if err != nil {
		return model.Token{}, registryErr(chainID, err, "getTokenInfo failed")
	}
	return tok, nil
}

// EquivalentToken returns the destChainID counterpart of token. The zero
// address means the registry has no mapping.
func (g *Gateway) EquivalentToken(ctx context.Context, chainID, destChainID, token string) (string, error) {
	dest, ok := new(big.Int).SetString(destChainID, 10)
	if !ok {
		return "", errs.Field(errs.UnknownChain, "destChainId", fmt.Sprintf("%q is not a chain id", destChainID))
	}
	reg, err := g.GetTokenRegistry(ctx, chainID)
	if err != nil {
		return "", err
	}
	out, err := g.call(ctx, reg, "getChainToken", dest, common.HexToAddress(token))
	if err != nil {
		return "", registryErr(chainID, err, "getChainToken failed")
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return "", registryErr(chainID, nil, "getChainToken returned an unexpected type")
	}
	return addr.Hex(), nil
}

func (g *Gateway) tokenInfo(ctx context.Context, reg *Contract, addr common.Address) (model.Token, error) {
	out, err := g.call(ctx, reg, "getTokenInfo", addr)
	if err != nil {
		return model.Token{}, err
	}
	if len(out) != 5 {
		return model.Token{}, fmt.Errorf("getTokenInfo returned %d values", len(out))
	}
	name, _ := out[0].(string)
	symbol, _ := out[1].(string)
	decimals, _ := out[2].(uint8)
	active, _ := out[3].(bool)
	logo, _ := out[4].(string)
	return model.Token{
		Address:  addr.Hex(),
		Name:     name,
		Symbol:   symbol,
		Decimals: int(decimals),
		Active:   active,
		LogoURI:  logo,
	}, nil
}

// call runs a read against c. Transport failures are reported to the pool so
// the next call uses a fresh endpoint; this call is not retried.
func (g *Gateway) call(ctx context.Context, c *Contract, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"chain_id": c.ChainID,
			"kind":     c.Kind,
			"method":   method,
			"error":    err,
		}).Warn("Contract read failed")
		if _, ferr := g.pool.ReportFailure(ctx, c.handle, err); ferr != nil {
			logrus.WithFields(logrus.Fields{"chain_id": c.ChainID, "error": ferr}).Warn("Provider failover unavailable")
		}
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}

func (g *Gateway) contract(ctx context.Context, kind Kind, chainID string, addr common.Address, parsed abi.ABI) (*Contract, error) {
	h, err := g.pool.Get(ctx, chainID)
	if err != nil {
		return nil, err
	}
	if c := g.cached(kind, chainID, h); c != nil && c.Address == addr {
		return c, nil
	}

	c := &Contract{
		Kind:    kind,
		ChainID: chainID,
		Address: addr,
		handle:  h,
		bound:   bind.NewBoundContract(addr, parsed, h.Client, nil, nil),
	}
	g.mu.Lock()
	g.handles[cacheKey(kind, chainID)] = c
	g.mu.Unlock()
	return c, nil
}

func (g *Gateway) cached(kind Kind, chainID string, h *provider.Handle) *Contract {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.handles[cacheKey(kind, chainID)]
	if !ok || c.handle.Generation != h.Generation {
		return nil
	}
	return c
}

func (g *Gateway) staticAddress(kind Kind, chainID string) (common.Address, error) {
	cfg, ok := g.chains.Lookup(chainID)
	if !ok {
		return common.Address{}, errs.New(errs.Configuration, errs.UnconfiguredChain,
			fmt.Sprintf("chain %s is not configured", chainID)).OnChain(chainID)
	}
	var raw string
	switch kind {
	case KindAdapter:
		raw = cfg.Contracts.LiFiAdapter
	case KindFeeCollector:
		raw = cfg.Contracts.FeeCollector
	case KindTokenRegistry:
		raw = cfg.Contracts.TokenRegistry
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || !common.IsHexAddress(raw) || common.HexToAddress(raw) == (common.Address{}) {
		return common.Address{}, errs.New(errs.Configuration, errs.MissingContractAddress,
			fmt.Sprintf("no %s address configured", kind)).OnChain(chainID)
	}
	return common.HexToAddress(raw), nil
}

func bigOutput(out []interface{}) (*big.Int, error) {
	v, ok := out[0].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("unexpected output type %T", out[0])
	}
	return v, nil
}

func registryErr(chainID string, cause error, msg string) error {
	return errs.Wrap(errs.Upstream, errs.RegistryReadFailed, cause, msg).OnChain(chainID)
}
