package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

func TestNewCurrencyPair(t *testing.T) {
	tests := []struct {
		name        string
		base, quote string
		expectError error
	}{
		{"ValidPair", "BTC", "USDT", nil},
		{"LowercaseInput", "btc", "usdt", nil},
		{"EqualBaseQuote", "ETH", "ETH", domain.ErrMalformedSymbol},
		{"EmptyBase", "", "USDT", domain.ErrInvalidCurrencyCode},
		{"EmptyQuote", "BTC", "", domain.ErrInvalidCurrencyCode},
		{"NonAlphanumeric", "BT$", "USDT", domain.ErrInvalidCurrencyCode},
		{"TooLong", "ABCDEFGHIJK", "USDT", domain.ErrInvalidCurrencyCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewCurrencyPair(tt.base, tt.quote)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseCurrencyPair(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
	}{
		{"ValidString", "BTC-USDT", false},
		{"LowercaseString", "eth-btc", false},
		{"NoSeparator", "BTCUSD", true},
		{"TwoSeparators", "BTC-USD-T", true},
		{"EmptySegment", "BTC-", true},
		{"EmptyString", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.ParseCurrencyPair(tt.input)

			if tt.expectError {
				assert.ErrorIs(t, err, domain.ErrMalformedSymbol)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCurrencyPair_RoundTrip(t *testing.T) {
	for _, s := range []string{"BTC-USDT", "ETH-BTC", "XMR-EUR", "1INCH-USDT"} {
		pair, err := domain.ParseCurrencyPair(s)
		require.NoError(t, err)

		parsed, err := domain.ParseCurrencyPair(pair.String())
		require.NoError(t, err)
		assert.Equal(t, pair, parsed)
	}
}

func TestCurrencyPair_Join(t *testing.T) {
	pair, err := domain.NewCurrencyPair("btc", "usdt")
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", pair.Join(""))
	assert.Equal(t, "BTC-USDT", pair.Join("-"))
	assert.Equal(t, "BTC-USDT", pair.String())
}

func TestCurrencyPair_UsableAsMapKey(t *testing.T) {
	a, _ := domain.NewCurrencyPair("BTC", "USDT")
	b, _ := domain.ParseCurrencyPair("btc-usdt")

	seen := map[domain.CurrencyPair]int{a: 1}
	seen[b]++
	assert.Len(t, seen, 1)
	assert.Equal(t, 2, seen[a])
}
