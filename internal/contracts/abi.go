package contracts

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const adapterABIJSON = `[
	{"type":"function","name":"feeCollector","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"executeWithFee","stateMutability":"payable","inputs":[{"name":"lifiData","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"executeWithTokenFee","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"lifiData","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"executeBridgeWithFee","stateMutability":"payable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"},{"name":"destinationChainId","type":"uint256"},{"name":"lifiData","type":"bytes"}],"outputs":[]}
]`

const feeCollectorABIJSON = `[
	{"type":"function","name":"feePercentage","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"calculateFee","stateMutability":"view","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const tokenRegistryABIJSON = `[
	{"type":"function","name":"getActiveTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getTokens","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
	{"type":"function","name":"getTokenInfo","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[
		{"name":"name","type":"string"},
		{"name":"symbol","type":"string"},
		{"name":"decimals","type":"uint8"},
		{"name":"active","type":"bool"},
		{"name":"logoURI","type":"string"}
	]},
	{"type":"function","name":"getChainToken","stateMutability":"view","inputs":[{"name":"chainId","type":"uint256"},{"name":"token","type":"address"}],"outputs":[{"name":"","type":"address"}]}
]`

var (
	// AdapterABI is the swap adapter interface
	AdapterABI = mustParseABI(adapterABIJSON)
	// FeeCollectorABI is the fee collector interface
	FeeCollectorABI = mustParseABI(feeCollectorABIJSON)
	// TokenRegistryABI is the token registry interface
	TokenRegistryABI = mustParseABI(tokenRegistryABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeExecuteWithFee builds calldata for a same-chain swap paid in the native asset
func EncodeExecuteWithFee(routeData []byte) ([]byte, error) {
	return AdapterABI.Pack("executeWithFee", routeData)
}

// EncodeExecuteWithTokenFee builds calldata for a same-chain swap paid in an ERC-20 token
func EncodeExecuteWithTokenFee(token common.Address, amount *big.Int, routeData []byte) ([]byte, error) {
	return AdapterABI.Pack("executeWithTokenFee", token, amount, routeData)
}

// EncodeExecuteBridgeWithFee builds calldata for a cross-chain transfer
func EncodeExecuteBridgeWithFee(token common.Address, amount, destChainID *big.Int, routeData []byte) ([]byte, error) {
	return AdapterABI.Pack("executeBridgeWithFee", token, amount, destChainID, routeData)
}
