// Package swap composes validation, the routing API and the fee engine into
// the public swap operations. Every quote and transaction it returns carries
// fee data; a fee failure fails the whole operation.
package swap

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/cache"
	"github.com/yourorg/xbridge-api/internal/lifi"
	"github.com/yourorg/xbridge-api/internal/model"
	xotel "github.com/yourorg/xbridge-api/internal/otel"
	"github.com/yourorg/xbridge-api/internal/types"
	"github.com/yourorg/xbridge-api/internal/validation"
)

// defaultSlippage is the percentage applied when a transaction request has none
const defaultSlippage = "1"

// Routes is the routing API surface used by the service
type Routes interface {
	GetQuote(ctx context.Context, req lifi.QuoteRequest) (model.Quote, error)
	GetRoutes(ctx context.Context, req lifi.QuoteRequest) ([]model.RouteSummary, error)
	BuildTransaction(ctx context.Context, req lifi.TransactionRequest) (model.TransactionPayload, error)
	TrackStatus(ctx context.Context, txHash, chainID string) (model.StatusResult, error)
	SupportedChains(ctx context.Context) ([]model.Chain, error)
	Tokens(ctx context.Context, chainID string) ([]model.Token, error)
}

// Fees produces the platform fee
type Fees interface {
	GetFeeInfo(ctx context.Context, chainID string) (model.FeeInfo, error)
	CalculateFee(ctx context.Context, chainID, amount string) (string, error)
	Quote(ctx context.Context, chainID, amount, token string) (model.FeeInfo, error)
}

// Registry is the on-chain token registry
type Registry interface {
	RegisteredTokens(ctx context.Context, chainID string, activeOnly bool) ([]model.Token, error)
	EquivalentToken(ctx context.Context, chainID, destChainID, token string) (string, error)
}

// GasOracle reads current gas prices
type GasOracle interface {
	SuggestGasPrice(ctx context.Context, chainID string) (*big.Int, error)
}

// QuoteParams is a quote or route-list request. ToChain defaults to FromChain.
type QuoteParams struct {
	FromToken string
	ToToken   string
	Amount    string
	FromChain string
	ToChain   string
}

// TransactionParams is a transaction build request. Slippage defaults to 1
// percent and ToAddress to FromAddress.
type TransactionParams struct {
	QuoteParams
	Slippage    string
	FromAddress string
	ToAddress   string
}

// Service is the swap orchestrator. It holds no per-request state.
type Service struct {
	name     string
	version  string
	chains   types.ChainTable
	routes   Routes
	fees     Fees
	registry Registry
	gas      GasOracle
	tokens   *cache.LRU[string, model.Token]
}

// NewService creates a service over the configured chains
func NewService(chains types.ChainTable, routes Routes, fees Fees) *Service {
	return &Service{
		name:    "xBridge API",
		version: "dev",
		chains:  chains,
		routes:  routes,
		fees:    fees,
	}
}

// WithRegistry sets the token registry and returns the service
func (s *Service) WithRegistry(r Registry) *Service {
	s.registry = r
	return s
}

// WithGasOracle sets the gas price source and returns the service
func (s *Service) WithGasOracle(g GasOracle) *Service {
	s.gas = g
	return s
}

// WithTokenCache sets the token metadata cache and returns the service
func (s *Service) WithTokenCache(c *cache.LRU[string, model.Token]) *Service {
	s.tokens = c
	return s
}

// WithVersion sets the version reported by Info and returns the service
func (s *Service) WithVersion(v string) *Service {
	s.version = v
	return s
}

// Chains returns the configured chain table
func (s *Service) Chains() types.ChainTable {
	return s.chains
}

func (s *Service) validateQuote(p QuoteParams) error {
	checks := []error{
		validation.ValidateAddress(p.FromToken, "fromToken"),
		validation.ValidateAddress(p.ToToken, "toToken"),
		validation.ValidateAmount(p.Amount, "amount"),
		validation.ValidateChainID(s.chains, p.FromChain, "fromChain"),
	}
	if p.ToChain != "" {
		checks = append(checks, validation.ValidateChainID(s.chains, p.ToChain, "toChain"))
	}
	return validation.First(checks...)
}

func (p QuoteParams) withDefaults() QuoteParams {
	if p.ToChain == "" {
		p.ToChain = p.FromChain
	}
	return p
}

func (p QuoteParams) request() lifi.QuoteRequest {
	return lifi.QuoteRequest{
		FromToken: p.FromToken,
		ToToken:   p.ToToken,
		Amount:    p.Amount,
		FromChain: p.FromChain,
		ToChain:   p.ToChain,
	}
}

// GetQuoteWithFee prices a swap and attaches the platform fee
func (s *Service) GetQuoteWithFee(ctx context.Context, p QuoteParams) (quote model.Quote, err error) {
	ctx, span := xotel.Start(ctx, "swap.GetQuoteWithFee", "from_chain", p.FromChain, "to_chain", p.ToChain)
	defer func() { xotel.End(span, err) }()

	if err := s.validateQuote(p); err != nil {
		return model.Quote{}, err
	}
	p = p.withDefaults()

	quote, err = s.routes.GetQuote(ctx, p.request())
	if err != nil {
		return model.Quote{}, err
	}
	fee, err := s.fees.Quote(ctx, p.FromChain, p.Amount, p.FromToken)
	if err != nil {
		return model.Quote{}, err
	}
	quote.Fee = &fee

	logrus.WithFields(logrus.Fields{
		"from_chain": p.FromChain,
		"to_chain":   p.ToChain,
		"routes":     len(quote.Routes),
		"fee_bps":    fee.PercentageBasisPoints,
	}).Debug("Quote with fee")
	return quote, nil
}

// BuildTransactionWithFee builds the adapter transaction and attaches the platform fee
func (s *Service) BuildTransactionWithFee(ctx context.Context, p TransactionParams) (payload model.TransactionPayload, err error) {
	ctx, span := xotel.Start(ctx, "swap.BuildTransactionWithFee", "from_chain", p.FromChain, "to_chain", p.ToChain)
	defer func() { xotel.End(span, err) }()

	if p.Slippage == "" {
		p.Slippage = defaultSlippage
	}
	checks := []error{
		s.validateQuote(p.QuoteParams),
		validation.ValidateAddress(p.FromAddress, "fromAddress"),
		validation.ValidateSlippage(p.Slippage, "slippage"),
	}
	if p.ToAddress != "" {
		checks = append(checks, validation.ValidateAddress(p.ToAddress, "toAddress"))
	}
	if err := validation.First(checks...); err != nil {
		return model.TransactionPayload{}, err
	}
	p.QuoteParams = p.QuoteParams.withDefaults()
	if p.ToAddress == "" {
		p.ToAddress = p.FromAddress
	}

	payload, err = s.routes.BuildTransaction(ctx, lifi.TransactionRequest{
		FromToken:   p.FromToken,
		ToToken:     p.ToToken,
		Amount:      p.Amount,
		FromChain:   p.FromChain,
		ToChain:     p.ToChain,
		Slippage:    p.Slippage,
		FromAddress: p.FromAddress,
		ToAddress:   p.ToAddress,
	})
	if err != nil {
		return model.TransactionPayload{}, err
	}
	fee, err := s.fees.Quote(ctx, p.FromChain, p.Amount, p.FromToken)
	if err != nil {
		return model.TransactionPayload{}, err
	}
	payload.Fee = &fee
	return payload, nil
}

// ListRoutes returns candidate routes without fee data
func (s *Service) ListRoutes(ctx context.Context, p QuoteParams) (routes []model.RouteSummary, err error) {
	ctx, span := xotel.Start(ctx, "swap.ListRoutes", "from_chain", p.FromChain, "to_chain", p.ToChain)
	defer func() { xotel.End(span, err) }()

	if err := s.validateQuote(p); err != nil {
		return nil, err
	}
	return s.routes.GetRoutes(ctx, p.withDefaults().request())
}

// TrackStatus reports the progress of a submitted transfer
func (s *Service) TrackStatus(ctx context.Context, txHash, chainID string) (res model.StatusResult, err error) {
	ctx, span := xotel.Start(ctx, "swap.TrackStatus", "chain_id", chainID)
	defer func() { xotel.End(span, err) }()

	if err := validation.First(
		validation.ValidateTxHash(txHash, "txHash"),
		validation.ValidateChainID(s.chains, chainID, "chainId"),
	); err != nil {
		return model.StatusResult{}, err
	}
	return s.routes.TrackStatus(ctx, txHash, chainID)
}

// GetFeeInfo returns the fee percentage of chainID
func (s *Service) GetFeeInfo(ctx context.Context, chainID string) (info model.FeeInfo, err error) {
	ctx, span := xotel.Start(ctx, "swap.GetFeeInfo", "chain_id", chainID)
	defer func() { xotel.End(span, err) }()

	if err := validation.ValidateChainID(s.chains, chainID, "chainId"); err != nil {
		return model.FeeInfo{}, err
	}
	return s.fees.GetFeeInfo(ctx, chainID)
}

// CalculateFee returns the fee owed on amount. An empty token means the native asset.
func (s *Service) CalculateFee(ctx context.Context, chainID, amount, token string) (res model.CalculatedFee, err error) {
	ctx, span := xotel.Start(ctx, "swap.CalculateFee", "chain_id", chainID)
	defer func() { xotel.End(span, err) }()

	checks := []error{
		validation.ValidateChainID(s.chains, chainID, "chainId"),
		validation.ValidateAmount(amount, "amount"),
	}
	if token != "" {
		checks = append(checks, validation.ValidateAddress(token, "token"))
	}
	if err := validation.First(checks...); err != nil {
		return model.CalculatedFee{}, err
	}

	fee, err := s.fees.CalculateFee(ctx, chainID, amount)
	if err != nil {
		return model.CalculatedFee{}, err
	}
	if token == "" {
		token = "native"
	}
	return model.CalculatedFee{Amount: fee, Token: token}, nil
}

// Info lists the configured chains
func (s *Service) Info() model.ServiceInfo {
	ids := s.chains.IDs()
	chains := make([]model.ChainSummary, 0, len(ids))
	for _, id := range ids {
		chains = append(chains, model.ChainSummary{ID: id, Name: s.chains[id].Name})
	}
	return model.ServiceInfo{Name: s.name, Version: s.version, SupportedChains: chains}
}
