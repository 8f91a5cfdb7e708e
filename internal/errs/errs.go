// Package errs defines the error taxonomy shared by every layer of the swap pipeline.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for retry and status-code decisions
type Kind string

const (
	// Validation errors are bad input and are never retried
	Validation Kind = "validation"
	// Upstream errors come from the routing API or an RPC endpoint and are transient
	Upstream Kind = "upstream"
	// Configuration errors mean a chain or contract is missing from config
	Configuration Kind = "configuration"
	// NotFound is a valid negative result
	NotFound Kind = "not_found"
)

// Code names a specific failure
type Code string

// Named errors
const (
	InvalidAddress    Code = "InvalidAddress"
	UnknownChain      Code = "UnknownChain"
	InvalidAmount     Code = "InvalidAmount"
	InvalidSlippage   Code = "InvalidSlippage"
	MissingParameter  Code = "MissingParameter"
	InvalidBody       Code = "InvalidBody"
	InvalidTxHash     Code = "InvalidTxHash"

	UnconfiguredChain            Code = "UnconfiguredChain"
	NoAlternateEndpoint          Code = "NoAlternateEndpoint"
	MissingContractAddress       Code = "MissingContractAddress"
	FeeCollectorResolutionFailed Code = "FeeCollectorResolutionFailed"
	RegistryReadFailed           Code = "RegistryReadFailed"
	FeeInfoUnavailable           Code = "FeeInfoUnavailable"
	FeeCalculationFailed         Code = "FeeCalculationFailed"
	GasPriceUnavailable          Code = "GasPriceUnavailable"
	RPCUnavailable               Code = "RPCUnavailable"

	QuoteFetchFailed       Code = "QuoteFetchFailed"
	RoutesFetchFailed      Code = "RoutesFetchFailed"
	TransactionBuildFailed Code = "TransactionBuildFailed"
	AdapterUnavailable     Code = "AdapterUnavailable"
	StatusFetchFailed      Code = "StatusFetchFailed"
	ChainsFetchFailed      Code = "ChainsFetchFailed"
	TokensFetchFailed      Code = "TokensFetchFailed"
	UpstreamUnavailable    Code = "UpstreamUnavailable"

	TokenNotFound Code = "TokenNotFound"
)

// Error carries the kind, the named code and, where known, the offending
// field or chain.
type Error struct {
	Kind    Kind
	Code    Code
	Field   string
	ChainID string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Field != "" {
		fmt.Fprintf(&b, "(%s)", e.Field)
	}
	if e.ChainID != "" {
		fmt.Fprintf(&b, " [chain %s]", e.ChainID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error without a cause
func New(kind Kind, code Code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Wrap builds an error around cause
func Wrap(kind Kind, code Code, cause error, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Err: cause}
}

// Field builds a validation error naming the offending field
func Field(code Code, field, msg string) *Error {
	return &Error{Kind: Validation, Code: code, Field: field, Message: msg}
}

// OnChain returns a copy of e annotated with chainID
func (e *Error) OnChain(chainID string) *Error {
	c := *e
	c.ChainID = chainID
	return &c
}

// WithKind returns a copy of e with its kind replaced
func (e *Error) WithKind(kind Kind) *Error {
	c := *e
	c.Kind = kind
	return &c
}

// As returns the first *Error in err's chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether any *Error in err's chain has the given code
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error, or Upstream for foreign errors
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Upstream
}
