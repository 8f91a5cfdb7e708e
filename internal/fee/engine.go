// Package fee produces the platform fee attached to quotes and transactions.
// The fee collector contract owns the formula; this package only reads it.
package fee

import (
	"context"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/model"
)

// MaxBasisPoints is 100%
const MaxBasisPoints = 10000

// Reader is the contract surface the engine needs
type Reader interface {
	FeePercentage(ctx context.Context, chainID string) (*big.Int, error)
	CalculateFee(ctx context.Context, chainID string, amount *big.Int) (*big.Int, error)
}

// Engine computes FeeInfo from fee collector reads
type Engine struct {
	reader Reader
}

// NewEngine creates an engine over reader
func NewEngine(reader Reader) *Engine {
	return &Engine{reader: reader}
}

// GetFeeInfo returns the fee percentage of chainID
func (e *Engine) GetFeeInfo(ctx context.Context, chainID string) (model.FeeInfo, error) {
	bps, err := e.reader.FeePercentage(ctx, chainID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"chain_id": chainID, "error": err}).Warn("Fee percentage unavailable")
		return model.FeeInfo{}, errs.Wrap(kindOf(err), errs.FeeInfoUnavailable, err, "fee collector unreachable or misconfigured").OnChain(chainID)
	}
	if bps.Sign() < 0 || bps.Cmp(big.NewInt(MaxBasisPoints)) > 0 {
		return model.FeeInfo{}, errs.New(errs.Upstream, errs.FeeInfoUnavailable,
			fmt.Sprintf("fee collector reported %s basis points", bps)).OnChain(chainID)
	}
	return model.FeeInfo{
		PercentageBasisPoints: bps.Int64(),
		PercentageFormatted:   FormatBasisPoints(bps.Int64()),
	}, nil
}

// CalculateFee returns the fee owed on amount as a base-unit integer string.
// A read error or an out-of-range answer is an error; there is no zero-fee fallback.
func (e *Engine) CalculateFee(ctx context.Context, chainID, amount string) (string, error) {
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() <= 0 {
		return "", errs.Field(errs.InvalidAmount, "amount", fmt.Sprintf("%q is not a positive base-unit integer", amount))
	}
	fee, err := e.reader.CalculateFee(ctx, chainID, n)
	if err != nil {
		logrus.WithFields(logrus.Fields{"chain_id": chainID, "amount": amount, "error": err}).Warn("Fee calculation failed")
		return "", errs.Wrap(kindOf(err), errs.FeeCalculationFailed, err, "calculateFee read failed").OnChain(chainID)
	}
	if fee.Sign() < 0 || fee.Cmp(n) > 0 {
		return "", errs.New(errs.Upstream, errs.FeeCalculationFailed,
			fmt.Sprintf("fee %s outside [0, %s]", fee, amount)).OnChain(chainID)
	}
	return fee.String(), nil
}

// Quote returns FeeInfo for amount of token, combining both reads
func (e *Engine) Quote(ctx context.Context, chainID, amount, token string) (model.FeeInfo, error) {
	info, err := e.GetFeeInfo(ctx, chainID)
	if err != nil {
		return model.FeeInfo{}, err
	}
	feeAmount, err := e.CalculateFee(ctx, chainID, amount)
	if err != nil {
		return model.FeeInfo{}, err
	}
	info.Amount = feeAmount
	info.Token = token
	return info, nil
}

// FormatBasisPoints converts basis points to a percentage, e.g. 30 -> 0.3
func FormatBasisPoints(bps int64) float64 {
	f, _ := decimal.New(bps, -2).Float64()
	return f
}

// configuration problems keep their kind; everything else is upstream
func kindOf(err error) errs.Kind {
	if errs.KindOf(err) == errs.Configuration {
		return errs.Configuration
	}
	return errs.Upstream
}
