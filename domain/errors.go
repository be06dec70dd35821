package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind is the closed set of failure categories surfaced to callers.
// Every vendor-reported failure is translated into exactly one of these;
// unmapped vendor codes land in KindUnknownVendorError instead of leaking
// raw payloads or crashing the pipeline.
type ErrorKind int

const (
	KindAuthenticationFailed ErrorKind = iota + 1
	KindInvalidRequestParameter
	KindRateLimited
	KindInsufficientBalance
	KindOrderNotFound
	KindVendorUnavailable
	KindAmbiguousOutcome
	KindUnknownVendorError
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindInvalidRequestParameter:
		return "InvalidRequestParameter"
	case KindRateLimited:
		return "RateLimited"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindOrderNotFound:
		return "OrderNotFound"
	case KindVendorUnavailable:
		return "VendorUnavailable"
	case KindAmbiguousOutcome:
		return "AmbiguousOutcome"
	case KindUnknownVendorError:
		return "UnknownVendorError"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// CanonicalError is the uniform error surfaced for every vendor-reported
// failure, whatever wire shape the vendor used.
type CanonicalError struct {
	Kind       ErrorKind
	Vendor     string
	RetryAfter time.Duration // only for KindRateLimited, zero if unknown
	RawCode    string
	RawMessage string
	cause      error
}

func (e *CanonicalError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Vendor, e.Kind)
	if e.RawCode != "" {
		msg += fmt.Sprintf(" (code=%s, msg=%q)", e.RawCode, e.RawMessage)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *CanonicalError) Unwrap() error { return e.cause }

// IsKind reports whether err is a CanonicalError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *CanonicalError
	return errors.As(err, &ce) && ce.Kind == kind
}

func NewCanonicalError(vendor string, kind ErrorKind, cause error) *CanonicalError {
	return &CanonicalError{Kind: kind, Vendor: vendor, cause: cause}
}

// AmbiguousOutcome marks a mutating call whose effect on the vendor could not
// be confirmed. The caller must reconcile before retrying; the core never
// retries these.
func AmbiguousOutcome(vendor string, cause error) *CanonicalError {
	return &CanonicalError{Kind: KindAmbiguousOutcome, Vendor: vendor, cause: cause}
}

// ErrorTable is the per-vendor mapping consumed by Translate. Codes maps the
// vendor's error code (as rendered by ParseBody) to a canonical kind.
type ErrorTable struct {
	Codes map[string]ErrorKind

	// ParseBody extracts the vendor code and human message from a failing
	// response body. Nil means the common {"code":..,"msg":..} shape.
	ParseBody func(body []byte) (code, message string)
}

func defaultParseBody(body []byte) (string, string) {
	var payload struct {
		Code json.Number `json:"code"`
		Msg  string      `json:"msg"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", string(body)
	}
	return payload.Code.String(), payload.Msg
}

// Translate converts one failing vendor HTTP response into a CanonicalError.
// Order of precedence: vendor code table, then HTTP status class. Anything
// unmapped becomes KindUnknownVendorError carrying the raw code and message.
func Translate(vendor string, table ErrorTable, status int, header http.Header, body []byte) *CanonicalError {
	parse := table.ParseBody
	if parse == nil {
		parse = defaultParseBody
	}
	code, message := parse(body)

	if kind, ok := table.Codes[code]; ok {
		ce := &CanonicalError{Kind: kind, Vendor: vendor, RawCode: code, RawMessage: message}
		if kind == KindRateLimited {
			ce.RetryAfter = retryAfter(header)
		}
		return ce
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &CanonicalError{Kind: KindAuthenticationFailed, Vendor: vendor, RawCode: code, RawMessage: message}
	case status == http.StatusTooManyRequests:
		return &CanonicalError{
			Kind:       KindRateLimited,
			Vendor:     vendor,
			RetryAfter: retryAfter(header),
			RawCode:    code,
			RawMessage: message,
		}
	case status >= 500:
		return &CanonicalError{Kind: KindVendorUnavailable, Vendor: vendor, RawCode: code, RawMessage: message}
	}

	return &CanonicalError{Kind: KindUnknownVendorError, Vendor: vendor, RawCode: code, RawMessage: message}
}

func retryAfter(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	seconds, err := strconv.Atoi(header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// ValidationError marks a request rejected client-side: the request was never
// sent, which callers can rely on when deciding whether a retry is safe.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err originated from client-side validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
