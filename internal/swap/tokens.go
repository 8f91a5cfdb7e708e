package swap

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/model"
	xotel "github.com/yourorg/xbridge-api/internal/otel"
	"github.com/yourorg/xbridge-api/internal/types"
	"github.com/yourorg/xbridge-api/internal/units"
	"github.com/yourorg/xbridge-api/internal/validation"
)

// ListTokens returns the chain's active registry tokens. With includeExternal
// the routing API's tokens that are not registered are appended and flagged
// external; a routing API failure only drops them.
func (s *Service) ListTokens(ctx context.Context, chainID string, includeExternal bool) (tokens []model.Token, err error) {
	ctx, span := xotel.Start(ctx, "swap.ListTokens", "chain_id", chainID)
	defer func() { xotel.End(span, err) }()

	if err := validation.ValidateChainID(s.chains, chainID, "chainId"); err != nil {
		return nil, err
	}
	if s.registry == nil {
		return nil, errs.New(errs.Configuration, errs.MissingContractAddress, "token registry not configured").OnChain(chainID)
	}

	tokens, err = s.registry.RegisteredTokens(ctx, chainID, true)
	if err != nil {
		return nil, err
	}
	if !includeExternal {
		return tokens, nil
	}

	external, xerr := s.routes.Tokens(ctx, chainID)
	if xerr != nil {
		logrus.WithFields(logrus.Fields{"chain_id": chainID, "error": xerr}).Warn("External token list unavailable")
		return tokens, nil
	}
	return mergeExternal(tokens, external), nil
}

func mergeExternal(registered, external []model.Token) []model.Token {
	seen := make(map[string]struct{}, len(registered))
	for _, t := range registered {
		seen[strings.ToLower(t.Address)] = struct{}{}
	}
	out := append(make([]model.Token, 0, len(registered)+len(external)), registered...)
	for _, t := range external {
		key := strings.ToLower(t.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		t.External = true
		t.Active = false
		out = append(out, t)
	}
	return out
}

// EquivalentToken finds the destination-chain counterpart of token. No
// mapping is reported as Found false, not as an error.
func (s *Service) EquivalentToken(ctx context.Context, srcChainID, destChainID, token string) (res model.EquivalentToken, err error) {
	ctx, span := xotel.Start(ctx, "swap.EquivalentToken", "chain_id", srcChainID, "dest_chain_id", destChainID)
	defer func() { xotel.End(span, err) }()

	if err := validation.First(
		validation.ValidateChainID(s.chains, srcChainID, "srcChainId"),
		validation.ValidateChainID(s.chains, destChainID, "destChainId"),
		validation.ValidateAddress(token, "tokenAddress"),
	); err != nil {
		return model.EquivalentToken{}, err
	}
	if s.registry == nil {
		return model.EquivalentToken{}, errs.New(errs.Configuration, errs.MissingContractAddress, "token registry not configured").OnChain(srcChainID)
	}

	addr, err := s.registry.EquivalentToken(ctx, srcChainID, destChainID, token)
	if err != nil {
		return model.EquivalentToken{}, err
	}
	if addr == "" || strings.EqualFold(addr, types.ZeroAddress) {
		return model.EquivalentToken{Found: false}, nil
	}

	dest, derr := s.registry.RegisteredTokens(ctx, destChainID, true)
	if derr != nil {
		logrus.WithFields(logrus.Fields{"chain_id": destChainID, "error": derr}).Warn("Destination registry unavailable")
	}
	for _, t := range dest {
		if strings.EqualFold(t.Address, addr) {
			t.Active = false
			return model.EquivalentToken{Found: true, Token: &t}, nil
		}
	}
	return model.EquivalentToken{Found: true, Token: &model.Token{Address: addr}}, nil
}

// TokenInfo looks token up in the full registry, then in the routing API's
// token list. Hits are kept in the token cache.
func (s *Service) TokenInfo(ctx context.Context, chainID, token string) (res model.Token, err error) {
	ctx, span := xotel.Start(ctx, "swap.TokenInfo", "chain_id", chainID)
	defer func() { xotel.End(span, err) }()

	if err := validation.First(
		validation.ValidateAddress(token, "address"),
		validation.ValidateChainID(s.chains, chainID, "chainId"),
	); err != nil {
		return model.Token{}, err
	}

	key := tokenCacheKey(chainID, token)
	if s.tokens != nil {
		if t, ok := s.tokens.Get(key); ok {
			return t, nil
		}
	}

	t, found := s.lookupToken(ctx, chainID, token)
	if !found {
		return model.Token{}, errs.Field(errs.TokenNotFound, "address", fmt.Sprintf("token %s not found", token)).
			OnChain(chainID).WithKind(errs.NotFound)
	}
	if s.tokens != nil {
		s.tokens.Add(key, t)
	}
	return t, nil
}

func (s *Service) lookupToken(ctx context.Context, chainID, token string) (model.Token, bool) {
	if s.registry != nil {
		all, err := s.registry.RegisteredTokens(ctx, chainID, false)
		if err != nil {
			logrus.WithFields(logrus.Fields{"chain_id": chainID, "error": err}).Warn("Registry lookup failed")
		}
		for _, t := range all {
			if strings.EqualFold(t.Address, token) {
				return t, true
			}
		}
	}

	external, err := s.routes.Tokens(ctx, chainID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"chain_id": chainID, "error": err}).Warn("External token lookup failed")
		return model.Token{}, false
	}
	for _, t := range external {
		if strings.EqualFold(t.Address, token) {
			t.External = true
			return t, true
		}
	}
	return model.Token{}, false
}

func tokenCacheKey(chainID, token string) string {
	return chainID + ":" + strings.ToLower(token)
}

// GasPrice reads the chain's current gas price
func (s *Service) GasPrice(ctx context.Context, chainID string) (res model.GasPrice, err error) {
	ctx, span := xotel.Start(ctx, "swap.GasPrice", "chain_id", chainID)
	defer func() { xotel.End(span, err) }()

	if err := validation.ValidateChainID(s.chains, chainID, "chainId"); err != nil {
		return model.GasPrice{}, err
	}
	if s.gas == nil {
		return model.GasPrice{}, errs.New(errs.Configuration, errs.GasPriceUnavailable, "no gas price source configured").OnChain(chainID)
	}
	wei, err := s.gas.SuggestGasPrice(ctx, chainID)
	if err != nil {
		return model.GasPrice{}, err
	}
	gwei, err := units.WeiToGwei(wei.String())
	if err != nil {
		return model.GasPrice{}, errs.Wrap(errs.Upstream, errs.GasPriceUnavailable, err, "bad gas price").OnChain(chainID)
	}
	return model.GasPrice{ChainID: chainID, GasPrice: wei.String(), GasPriceGwei: gwei}, nil
}

// SupportedChains lists the chains the routing API serves
func (s *Service) SupportedChains(ctx context.Context) (chains []model.Chain, err error) {
	ctx, span := xotel.Start(ctx, "swap.SupportedChains")
	defer func() { xotel.End(span, err) }()
	return s.routes.SupportedChains(ctx)
}
