package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

func mustPair(t *testing.T, s string) domain.CurrencyPair {
	t.Helper()
	pair, err := domain.ParseCurrencyPair(s)
	require.NoError(t, err)
	return pair
}

func TestNewLimitOrder(t *testing.T) {
	symbol := mustPair(t, "BTC-USDT")

	order, err := domain.NewLimitOrder(symbol, domain.Buy, decimal.NewFromInt(1), decimal.NewFromInt(30000), domain.GTC)
	require.NoError(t, err)
	assert.Equal(t, domain.Limit, order.Type)
	assert.True(t, order.Price.Valid)
	assert.Equal(t, domain.DefaultRecvWindowMillis, order.RecvWindowMillis)
}

func TestOrderRequest_Validate(t *testing.T) {
	symbol := mustPair(t, "BTC-USDT")
	one := decimal.NewFromInt(1)
	price := decimal.NewFromInt(30000)

	tests := []struct {
		name  string
		req   domain.OrderRequest
		field string
	}{
		{
			"LimitWithoutPrice",
			domain.OrderRequest{Symbol: symbol, Side: domain.Buy, Type: domain.Limit, Quantity: one, TimeInForce: domain.GTC},
			"price",
		},
		{
			"LimitWithoutTimeInForce",
			domain.OrderRequest{Symbol: symbol, Side: domain.Buy, Type: domain.Limit, Quantity: one, Price: decimal.NewNullDecimal(price)},
			"timeInForce",
		},
		{
			"MarketWithPrice",
			domain.OrderRequest{Symbol: symbol, Side: domain.Sell, Type: domain.Market, Quantity: one, Price: decimal.NewNullDecimal(price)},
			"price",
		},
		{
			"StopLossWithoutStopPrice",
			domain.OrderRequest{Symbol: symbol, Side: domain.Sell, Type: domain.StopLoss, Quantity: one},
			"stopPrice",
		},
		{
			"MarketWithStopPrice",
			domain.OrderRequest{Symbol: symbol, Side: domain.Sell, Type: domain.Market, Quantity: one, StopPrice: decimal.NewNullDecimal(price)},
			"stopPrice",
		},
		{
			"NonPositiveQuantity",
			domain.OrderRequest{Symbol: symbol, Side: domain.Buy, Type: domain.Market, Quantity: decimal.Zero},
			"quantity",
		},
		{
			"UnknownSide",
			domain.OrderRequest{Symbol: symbol, Side: "HOLD", Type: domain.Market, Quantity: one},
			"side",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()

			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "expected a client-side validation error")
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestNewStopLimitOrder(t *testing.T) {
	symbol := mustPair(t, "ETH-USDT")

	order, err := domain.NewStopLimitOrder(
		symbol, domain.Sell, domain.StopLossLimit,
		decimal.NewFromInt(2), decimal.NewFromInt(1900), decimal.NewFromInt(1890), domain.GTC,
	)
	require.NoError(t, err)
	assert.True(t, order.StopPrice.Valid)
	assert.True(t, order.Price.Valid)

	_, err = domain.NewStopLimitOrder(
		symbol, domain.Sell, domain.TakeProfit,
		decimal.NewFromInt(2), decimal.NewFromInt(1900), decimal.NewFromInt(1890), domain.GTC,
	)
	assert.Error(t, err, "TAKE_PROFIT has no limit leg, price must be rejected")
}

func TestCancelRequest_Validate(t *testing.T) {
	tests := []struct {
		name        string
		req         domain.CancelRequest
		expectError bool
	}{
		{"OrderIDOnly", domain.CancelRequest{OrderID: "123"}, false},
		{"ClientOrderIDOnly", domain.CancelRequest{ClientOrderID: "my-order"}, false},
		{"Neither", domain.CancelRequest{}, true},
		{"Both", domain.CancelRequest{OrderID: "123", ClientOrderID: "my-order"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()

			if tt.expectError {
				require.Error(t, err)
				assert.True(t, domain.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCredentials_Redaction(t *testing.T) {
	creds := domain.Credentials{AccessKey: "AKIA1234567890", SecretKey: "super-secret"}

	assert.NotContains(t, creds.String(), "super-secret")
	assert.NotContains(t, creds.GoString(), "super-secret")
}
