package domain

import (
	"fmt"
	"strings"
)

// Currency is an upper-cased asset code, e.g. "BTC".
type Currency string

var (
	ErrInvalidCurrencyCode = fmt.Errorf("invalid currency code")
	ErrMalformedSymbol     = fmt.Errorf("malformed symbol")
)

func NewCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) < 2 || len(code) > 10 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrencyCode, code)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrencyCode, code)
		}
	}
	return Currency(code), nil
}

// CurrencyPair is the canonical market identifier. The textual form is
// "BASE-QUOTE" regardless of how a vendor spells the same market.
type CurrencyPair struct {
	Base  Currency
	Quote Currency
}

func NewCurrencyPair(base, quote string) (CurrencyPair, error) {
	b, err := NewCurrency(base)
	if err != nil {
		return CurrencyPair{}, err
	}
	q, err := NewCurrency(quote)
	if err != nil {
		return CurrencyPair{}, err
	}
	if b == q {
		return CurrencyPair{}, fmt.Errorf("%w: base and quote must differ", ErrMalformedSymbol)
	}
	return CurrencyPair{Base: b, Quote: q}, nil
}

// ParseCurrencyPair parses the canonical "BASE-QUOTE" form. Inputs with zero
// or more than one separator, or an empty segment, fail with ErrMalformedSymbol.
func ParseCurrencyPair(s string) (CurrencyPair, error) {
	split := strings.Split(s, "-")
	if len(split) != 2 {
		return CurrencyPair{}, fmt.Errorf("%w: %q", ErrMalformedSymbol, s)
	}
	if split[0] == "" || split[1] == "" {
		return CurrencyPair{}, fmt.Errorf("%w: %q", ErrMalformedSymbol, s)
	}
	return NewCurrencyPair(split[0], split[1])
}

// Join renders the pair with a vendor-specific separator, e.g. Join("") for
// binance wire symbols or Join("-") for kucoin topics.
func (p CurrencyPair) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", p.Base, separator, p.Quote)
}

func (p CurrencyPair) String() string {
	return fmt.Sprintf("%s-%s", p.Base, p.Quote)
}
