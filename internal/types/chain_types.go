// Package types contains the static chain reference data shared across packages
package types

import "sort"

// ZeroAddress is the all-zero address used for a chain's native asset
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NativeCurrency describes a chain's gas-paying asset
type NativeCurrency struct {
	Name     string `json:"name" mapstructure:"name"`
	Symbol   string `json:"symbol" mapstructure:"symbol"`
	Decimals uint8  `json:"decimals" mapstructure:"decimals"`
}

// ContractAddresses holds the deployed platform contracts for a chain.
// Any field may be empty when the chain has no such deployment.
type ContractAddresses struct {
	LiFiDiamond   string `json:"lifiDiamond,omitempty" mapstructure:"lifi_diamond"`
	LiFiAdapter   string `json:"lifiAdapter,omitempty" mapstructure:"lifi_adapter"`
	FeeCollector  string `json:"feeCollector,omitempty" mapstructure:"fee_collector"`
	TokenRegistry string `json:"tokenRegistry,omitempty" mapstructure:"token_registry"`
}

// ChainConfig holds configuration for a specific blockchain network
type ChainConfig struct {
	ID             string            `json:"id" mapstructure:"id"`
	Name           string            `json:"name" mapstructure:"name"`
	RPCURLs        []string          `json:"rpcUrls" mapstructure:"rpc_urls"`
	BlockExplorer  string            `json:"blockExplorer" mapstructure:"block_explorer"`
	NativeCurrency NativeCurrency    `json:"nativeCurrency" mapstructure:"native_currency"`
	Contracts      ContractAddresses `json:"contracts" mapstructure:"contracts"`
}

// ChainTable maps a decimal chain id to its configuration. It is built once at
// start-up and only read afterwards.
type ChainTable map[string]ChainConfig

// Lookup returns the configuration for chainID
func (t ChainTable) Lookup(chainID string) (ChainConfig, bool) {
	cfg, ok := t[chainID]
	return cfg, ok
}

// IDs returns the configured chain ids in ascending lexical order
func (t ChainTable) IDs() []string {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
