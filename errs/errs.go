// Package errs provides structured error types shared across the kairos core.
package errs

import (
	"strconv"
	"strings"
)

// Code identifies a transport-level error category.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeParse indicates a malformed venue payload.
	CodeParse Code = "parse"
	// CodeAuth indicates missing or rejected credentials.
	CodeAuth Code = "auth"
	// CodeExchange indicates a venue-side failure.
	CodeExchange Code = "exchange_error"
	// CodeUnavailable indicates a component is closed or temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// CanonicalCode captures venue-agnostic failure categories.
type CanonicalCode string

const (
	// CanonicalUnknown captures uncategorized failures.
	CanonicalUnknown CanonicalCode = "unknown"
	// CanonicalInsufficientBalance indicates the account cannot cover the order value.
	CanonicalInsufficientBalance CanonicalCode = "insufficient_balance"
	// CanonicalRiskLimitExceeded indicates the daily risk budget is exhausted.
	CanonicalRiskLimitExceeded CanonicalCode = "risk_limit_exceeded"
	// CanonicalCredentialsMissing indicates required API credentials are absent.
	CanonicalCredentialsMissing CanonicalCode = "credentials_missing"
	// CanonicalInvalidSymbol indicates an unsupported or malformed symbol.
	CanonicalInvalidSymbol CanonicalCode = "invalid_symbol"
	// CanonicalVenueDisconnected indicates the venue connection was lost.
	CanonicalVenueDisconnected CanonicalCode = "venue_disconnected"
)

// E captures structured error information produced across the kairos stack.
type E struct {
	Op        string
	Code      Code
	Canonical CanonicalCode
	Venue     string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given operation and code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{
		Op:        strings.TrimSpace(op),
		Code:      code,
		Canonical: CanonicalUnknown,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithVenue records the venue the error originates from.
func WithVenue(venue string) Option {
	trimmed := strings.TrimSpace(venue)
	return func(e *E) {
		e.Venue = trimmed
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithCanonicalCode sets the canonical code describing the failure category.
func WithCanonicalCode(code CanonicalCode) Option {
	trimmed := strings.TrimSpace(string(code))
	return func(e *E) {
		if trimmed == "" {
			e.Canonical = CanonicalUnknown
			return
		}
		e.Canonical = CanonicalCode(trimmed)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	op := e.Op
	if op == "" {
		op = "unknown"
	}
	parts = append(parts, "op="+op)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if cc := strings.TrimSpace(string(e.Canonical)); cc != "" && cc != string(CanonicalUnknown) {
		parts = append(parts, "canonical="+cc)
	}
	if e.Venue != "" {
		parts = append(parts, "venue="+e.Venue)
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CanonicalOf extracts the canonical code from err, or CanonicalUnknown.
func CanonicalOf(err error) CanonicalCode {
	if e, ok := err.(*E); ok && e != nil {
		return e.Canonical
	}
	return CanonicalUnknown
}
