package lifi

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/contracts"
	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/model"
	"github.com/yourorg/xbridge-api/internal/types"
)

// TransactionRequest describes the swap a user wants to sign. Slippage is a
// percentage in [0,100].
type TransactionRequest struct {
	FromToken   string
	ToToken     string
	Amount      string
	FromChain   string
	ToChain     string
	Slippage    string
	FromAddress string
	ToAddress   string
}

// adapterCall selects the adapter entry point for a swap
type adapterCall int

const (
	callExecuteWithFee adapterCall = iota
	callExecuteWithTokenFee
	callExecuteBridgeWithFee
)

func (a adapterCall) String() string {
	switch a {
	case callExecuteWithTokenFee:
		return "executeWithTokenFee"
	case callExecuteBridgeWithFee:
		return "executeBridgeWithFee"
	default:
		return "executeWithFee"
	}
}

// selectAdapterCall picks the entry point: cross-chain always bridges, a
// same-chain native swap forwards value, a same-chain token swap pulls the token.
func selectAdapterCall(crossChain, native bool) adapterCall {
	switch {
	case crossChain:
		return callExecuteBridgeWithFee
	case native:
		return callExecuteWithFee
	default:
		return callExecuteWithTokenFee
	}
}

// IsNativeToken reports whether token is the all-zero native asset address
func IsNativeToken(token string) bool {
	return strings.EqualFold(strings.TrimSpace(token), types.ZeroAddress)
}

// BuildTransaction fetches an executable route for the real sender and wraps
// its calldata in the fee-charging adapter call for FromChain.
func (c *Client) BuildTransaction(ctx context.Context, req TransactionRequest) (model.TransactionPayload, error) {
	if req.ToChain == "" {
		req.ToChain = req.FromChain
	}
	if req.ToAddress == "" {
		req.ToAddress = req.FromAddress
	}

	if c.adapters == nil {
		return model.TransactionPayload{}, errs.New(errs.Configuration, errs.AdapterUnavailable, "no adapter resolver configured").OnChain(req.FromChain)
	}
	adapter, err := c.adapters.AdapterAddress(ctx, req.FromChain)
	if err != nil {
		return model.TransactionPayload{}, errs.Wrap(errs.KindOf(err), errs.AdapterUnavailable, err, "swap adapter unavailable").OnChain(req.FromChain)
	}

	slippage := defaultQuoteSlippage
	if req.Slippage != "" {
		s, err := decimal.NewFromString(req.Slippage)
		if err != nil {
			return model.TransactionPayload{}, errs.Field(errs.InvalidSlippage, "slippage", "slippage must be a number")
		}
		slippage = s
	}

	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		return model.TransactionPayload{}, errs.Field(errs.InvalidAmount, "amount", "amount must be a positive integer in base units")
	}

	q := QuoteRequest{
		FromToken: req.FromToken,
		ToToken:   req.ToToken,
		Amount:    req.Amount,
		FromChain: req.FromChain,
		ToChain:   req.ToChain,
	}.query(req.FromAddress, slippage)
	q.Set("toAddress", req.ToAddress)
	c.withIntegrator(q)

	body, err := c.get(ctx, "/route", q)
	if err != nil {
		return model.TransactionPayload{}, buildErr(req.FromChain, err, "route request failed")
	}
	d, err := decodeResponse(body)
	if err != nil {
		return model.TransactionPayload{}, buildErr(req.FromChain, err, "route response malformed")
	}
	tx, routeData, err := routeTransaction(d)
	if err != nil {
		return model.TransactionPayload{}, buildErr(req.FromChain, err, "route carries no transaction data")
	}
	if diamond := c.cfg.Diamonds[req.FromChain]; diamond != "" && !strings.EqualFold(tx.To, diamond) {
		return model.TransactionPayload{}, buildErr(req.FromChain,
			fmt.Errorf("route targets %q, want %s", tx.To, diamond), "route does not target the LI.FI diamond")
	}

	crossChain := req.FromChain != req.ToChain
	native := IsNativeToken(req.FromToken)
	call := selectAdapterCall(crossChain, native)

	data, err := encodeAdapterCall(call, req, amount, routeData)
	if err != nil {
		return model.TransactionPayload{}, buildErr(req.FromChain, err, "encoding adapter call failed")
	}

	value := "0"
	if native {
		value = amount.String()
	}

	logrus.WithFields(logrus.Fields{
		"chain_id":   req.FromChain,
		"to_chain":   req.ToChain,
		"adapter":    adapter.Hex(),
		"entrypoint": call.String(),
	}).Debug("Built adapter transaction")

	return model.TransactionPayload{
		To:       adapter.Hex(),
		Data:     hexutil.Encode(data),
		Value:    value,
		GasLimit: c.cfg.GasLimit,
		Route:    normalize(d),
	}, nil
}

func encodeAdapterCall(call adapterCall, req TransactionRequest, amount *big.Int, routeData []byte) ([]byte, error) {
	switch call {
	case callExecuteBridgeWithFee:
		dest, ok := new(big.Int).SetString(req.ToChain, 10)
		if !ok {
			return nil, fmt.Errorf("destination chain %q is not numeric", req.ToChain)
		}
		return contracts.EncodeExecuteBridgeWithFee(common.HexToAddress(req.FromToken), amount, dest, routeData)
	case callExecuteWithTokenFee:
		return contracts.EncodeExecuteWithTokenFee(common.HexToAddress(req.FromToken), amount, routeData)
	default:
		return contracts.EncodeExecuteWithFee(routeData)
	}
}

// routeTransaction extracts the routing API's own transaction and its calldata
func routeTransaction(d decoded) (*wireTxRequest, []byte, error) {
	var tx *wireTxRequest
	if d.action != nil {
		tx = d.action.TransactionRequest
		if tx == nil {
			for _, s := range d.action.IncludedSteps {
				if s.TransactionRequest != nil {
					tx = s.TransactionRequest
					break
				}
			}
		}
	}
	if tx == nil || tx.Data == "" {
		return nil, nil, errors.New("missing transactionRequest.data")
	}
	data, err := hexutil.Decode(tx.Data)
	if err != nil {
		return nil, nil, err
	}
	return tx, data, nil
}

func buildErr(chainID string, cause error, msg string) error {
	return errs.Wrap(errs.Upstream, errs.TransactionBuildFailed, cause, msg).OnChain(chainID)
}
