// Package validation checks swap request parameters before they reach the
// routing API or the chain.
package validation

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yourorg/xbridge-api/internal/errs"
	"github.com/yourorg/xbridge-api/internal/types"
)

// ValidateAddress accepts the zero address or a 20-byte hex address. Mixed-case
// input must carry a valid EIP-55 checksum.
func ValidateAddress(value, label string) error {
	if value == types.ZeroAddress {
		return nil
	}
	if !common.IsHexAddress(value) || !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return errs.Field(errs.InvalidAddress, label, fmt.Sprintf("%q is not a 20-byte hex address", value))
	}
	body := value[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if common.HexToAddress(value).Hex() != "0x"+body {
			return errs.Field(errs.InvalidAddress, label, fmt.Sprintf("%q has a bad checksum", value))
		}
	}
	return nil
}

// ValidateChainID fails unless value is a configured chain id
func ValidateChainID(chains types.ChainTable, value, label string) error {
	if value == "" {
		return errs.Field(errs.MissingParameter, label, "chain id is required")
	}
	if _, ok := chains.Lookup(value); !ok {
		return errs.Field(errs.UnknownChain, label, fmt.Sprintf("chain %s is not configured", value))
	}
	return nil
}

// ValidateAmount requires a base-unit integer strictly greater than zero
func ValidateAmount(value, label string) error {
	if value == "" {
		return errs.Field(errs.InvalidAmount, label, "amount is required")
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return errs.Field(errs.InvalidAmount, label, fmt.Sprintf("%q is not a base-unit integer", value))
		}
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok || n.Sign() <= 0 {
		return errs.Field(errs.InvalidAmount, label, "amount must be greater than zero")
	}
	return nil
}

// ValidateSlippage requires a finite percentage in [0,100]
func ValidateSlippage(value, label string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return errs.Field(errs.InvalidSlippage, label, fmt.Sprintf("%q is not a number", value))
	}
	if f < 0 || f > 100 {
		return errs.Field(errs.InvalidSlippage, label, "slippage must be between 0 and 100")
	}
	return nil
}

// ValidateTxHash requires a 32-byte hex transaction hash
func ValidateTxHash(value, label string) error {
	if value == "" {
		return errs.Field(errs.MissingParameter, label, "transaction hash is required")
	}
	if len(value) != 66 || !strings.HasPrefix(value, "0x") {
		return errs.Field(errs.InvalidTxHash, label, fmt.Sprintf("%q is not a transaction hash", value))
	}
	for _, r := range value[2:] {
		if !isHex(r) {
			return errs.Field(errs.InvalidTxHash, label, fmt.Sprintf("%q is not a transaction hash", value))
		}
	}
	return nil
}

func isHex(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
}

// Required fails with MissingParameter when value is blank
func Required(value, label string) error {
	if strings.TrimSpace(value) == "" {
		return errs.Field(errs.MissingParameter, label, label+" is required")
	}
	return nil
}

// First returns the first non-nil error
func First(checks ...error) error {
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
