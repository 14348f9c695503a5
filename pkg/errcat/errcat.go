// Package errcat is the stable error catalog: a closed enum of error kinds
// (spec §7's RatchetrError taxonomy), each mapped to a stable TW### code,
// wrapped in a single error type so every CORE package can return
// *errcat.Error instead of an ad-hoc error string. Modeled on the teacher's
// typed ValidationError/OperationError (pkg/workflow/error_helpers.go), but
// collapsed to one struct with a Kind field per spec §9's closed-enum design
// note rather than one Go type per kind.
package errcat

import (
	"errors"
	"fmt"
)

// Kind is the closed set of abstract error kinds from spec §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfigValidation
	KindManifestValidation
	KindRatchetModelValidation
	KindReadinessValidation
	KindTypeCoercion
	KindSubprocessInvocation
	KindEngineOutputParse
	KindCacheIO
	KindManifestNotFound
	KindAmbiguousManifest
	KindRatchetFileExists
	KindRatchetPathRequired
	KindUnknownEngineProfile
)

// code maps every Kind to its stable TW### identifier. The mapping is
// exhaustive: codeFor panics on an unmapped Kind rather than silently
// returning an empty string, so a new Kind added without a code is caught
// immediately rather than surfacing as "TW???" in production.
var code = map[Kind]string{
	KindUnknown:                "TW000",
	KindConfigValidation:       "TW001",
	KindManifestValidation:     "TW002",
	KindRatchetModelValidation: "TW003",
	KindReadinessValidation:    "TW004",
	KindTypeCoercion:           "TW005",
	KindSubprocessInvocation:   "TW006",
	KindEngineOutputParse:      "TW007",
	KindCacheIO:                "TW008",
	KindManifestNotFound:       "TW009",
	KindAmbiguousManifest:      "TW010",
	KindRatchetFileExists:      "TW011",
	KindRatchetPathRequired:    "TW012",
	KindUnknownEngineProfile:   "TW013",
}

func codeFor(k Kind) string {
	c, ok := code[k]
	if !ok {
		panic(fmt.Sprintf("errcat: no TW code registered for kind %d", k))
	}
	return c
}

// Error is the single error type every CORE component returns for the
// conditions spec §7 names. Component and Context give enough information
// to reproduce the failure (spec §7 "user-visible behaviour").
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Context   map[string]string
	Cause     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s] %s", codeFor(e.Kind), e.Component, e.Message)
	for k, v := range e.Context {
		msg += fmt.Sprintf(" %s=%q", k, v)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As keep working
// across a *errcat.Error boundary.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the stable TW### identifier for this error.
func (e *Error) Code() string {
	return codeFor(e.Kind)
}

// New constructs an *Error with no context map preallocated until WithContext is called.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap constructs an *Error around a causal error.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// WithContext attaches a reproduction-context key/value and returns the
// receiver for chaining, e.g. errcat.New(...).WithContext("path", p).
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Is reports whether err is an *Error of the given kind, so callers can
// branch on kind without a type assertion: `if errcat.Is(err, errcat.KindCacheIO)`.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
