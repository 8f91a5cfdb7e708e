// Package units converts between human-readable token amounts and base units.
package units

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// GweiDecimals is the exponent between wei and gwei
const GweiDecimals = 9

// ToBaseUnits converts a human amount such as "1.5" into base units for a
// token with the given decimals. Fractions finer than one base unit are rejected.
func ToBaseUnits(human string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(human))
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", human, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("invalid amount %q: negative", human)
	}
	if decimals < 0 {
		return "", fmt.Errorf("invalid decimals %d", decimals)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return "", fmt.Errorf("amount %q has more than %d decimal places", human, decimals)
	}
	return shifted.BigInt().String(), nil
}

// FormatUnits renders a base-unit amount with at most maxDecimals fractional
// digits, truncating rather than rounding and dropping trailing zeros.
// Invalid input renders as "0".
func FormatUnits(base string, decimals, maxDecimals int32, commas bool) string {
	d, err := decimal.NewFromString(strings.TrimSpace(base))
	if err != nil || base == "" {
		return "0"
	}
	out := d.Shift(-decimals).Truncate(maxDecimals).String()
	if commas {
		out = groupThousands(out)
	}
	return out
}

// WeiToGwei converts a wei amount to gwei
func WeiToGwei(wei string) (float64, error) {
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return 0, fmt.Errorf("invalid wei amount %q: %w", wei, err)
	}
	f, _ := d.Shift(-GweiDecimals).Float64()
	return f, nil
}

// ShortAddress truncates a valid address to 0x1234...abcd; other input is returned unchanged
func ShortAddress(addr string) string {
	if !common.IsHexAddress(addr) || len(addr) != 42 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-4:]
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}
	if hasFrac {
		return sign + intPart + "." + frac
	}
	return sign + intPart
}
