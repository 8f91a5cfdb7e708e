// Package model defines the normalized data structures returned by the swap API.
package model

import "encoding/json"

// TokenAmount is one side of a quote: the token and the base-unit amount
type TokenAmount struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Amount   string `json:"amount"`
}

// StepSummary describes a single hop of a route
type StepSummary struct {
	Type        string `json:"type"`
	Tool        string `json:"tool"`
	ToolName    string `json:"toolName"`
	ToolLogoURI string `json:"toolLogoURI"`
}

// RouteSummary is one concrete path proposed by the routing API
type RouteSummary struct {
	RouteID              string        `json:"routeId"`
	FromAmount           string        `json:"fromAmount"`
	ToAmount             string        `json:"toAmount"`
	ExecutionTimeSeconds int64         `json:"executionTimeSeconds"`
	GasCostUSD           string        `json:"gasCostUSD"`
	Steps                []StepSummary `json:"steps"`
}

// FeeInfo is the platform fee attached to a quote or transaction.
// PercentageFormatted is always PercentageBasisPoints / 100 and Amount is in
// the same base units as the request amount.
type FeeInfo struct {
	PercentageBasisPoints int64   `json:"percentageBasisPoints"`
	PercentageFormatted   float64 `json:"percentageFormatted"`
	Amount                string  `json:"amount,omitempty"`
	Token                 string  `json:"token,omitempty"`
}

// Quote is a priced estimate of a swap. It is transient and only lives as long
// as the quote cache TTL.
type Quote struct {
	ID          string         `json:"id"`
	FromChainID string         `json:"fromChainId"`
	ToChainID   string         `json:"toChainId"`
	FromToken   TokenAmount    `json:"fromToken"`
	ToToken     TokenAmount    `json:"toToken"`
	Routes      []RouteSummary `json:"routes"`
	Fee         *FeeInfo       `json:"fee,omitempty"`
}

// TransactionPayload is an unsigned transaction ready for the user's wallet
type TransactionPayload struct {
	To       string   `json:"to"`
	Data     string   `json:"data"`
	Value    string   `json:"value"`
	GasLimit uint64   `json:"gasLimit"`
	Route    Quote    `json:"route"`
	Fee      *FeeInfo `json:"fee,omitempty"`
}

// StepStatus is the per-step execution state reported by the status endpoint
type StepStatus struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Tool    string `json:"tool"`
	Message string `json:"message,omitempty"`
}

// StatusResult passes the routing API status through without interpretation.
// A NOT_FOUND status means the transfer is not indexed yet.
type StatusResult struct {
	Status           string          `json:"status"`
	Substatus        string          `json:"substatus,omitempty"`
	SubstatusMessage string          `json:"substatusMessage,omitempty"`
	Sending          json.RawMessage `json:"sending,omitempty"`
	Receiving        json.RawMessage `json:"receiving,omitempty"`
	Timestamp        int64           `json:"timestamp,omitempty"`
	Steps            []StepStatus    `json:"steps"`
}

// Token is token metadata from the on-chain registry or the routing API
type Token struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
	Active   bool   `json:"active,omitempty"`
	LogoURI  string `json:"logoURI,omitempty"`
	External bool   `json:"external,omitempty"`
}

// EquivalentToken is the cross-chain mapping result; Found is false when the
// registry has no mapping.
type EquivalentToken struct {
	Found bool   `json:"found"`
	Token *Token `json:"token,omitempty"`
}

// Chain is a chain supported by the routing API
type Chain struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	LogoURI      string `json:"logoURI,omitempty"`
	TokenListURL string `json:"tokenlistUrl,omitempty"`
}

// GasPrice is the current gas price for a chain
type GasPrice struct {
	ChainID      string  `json:"chainId"`
	GasPrice     string  `json:"gasPrice"`
	GasPriceGwei float64 `json:"gasPriceGwei"`
}

// CalculatedFee is the result of a standalone fee calculation
type CalculatedFee struct {
	Amount string `json:"amount"`
	Token  string `json:"token"`
}

// ChainSummary names a configured chain
type ChainSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServiceInfo describes the running API
type ServiceInfo struct {
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	SupportedChains []ChainSummary `json:"supportedChains"`
}
