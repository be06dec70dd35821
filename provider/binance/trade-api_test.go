package binance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

type fakeDoer struct {
	fn    func(req *http.Request) (*http.Response, error)
	calls []*http.Request
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls = append(d.calls, req)
	return d.fn(req)
}

func jsonResponse(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testTradeAPI(doer *fakeDoer) *BinanceTradeAPI {
	creds := domain.Credentials{AccessKey: "access", SecretKey: "secret"}
	return NewBinanceTradeAPI(doer, fixedClock{now: time.UnixMilli(1700000000000)}, creds)
}

func limitOrder(t *testing.T) *domain.OrderRequest {
	t.Helper()
	pair, err := domain.ParseCurrencyPair("BTC-USDT")
	require.NoError(t, err)
	order, err := domain.NewLimitOrder(pair, domain.Buy, decimal.NewFromInt(1), decimal.NewFromInt(30000), domain.GTC)
	require.NoError(t, err)
	order.ClientOrderID = "my-order-1"
	return order
}

func TestPlaceOrder_SignedRequest(t *testing.T) {
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK,
			`{"symbol":"BTCUSDT","orderId":12345,"clientOrderId":"my-order-1","transactTime":1700000000123,"status":"NEW"}`,
			nil), nil
	}}
	api := testTradeAPI(doer)

	ack, err := api.PlaceOrder(context.Background(), limitOrder(t))
	require.NoError(t, err)
	assert.Equal(t, "12345", ack.OrderID)
	assert.Equal(t, "my-order-1", ack.ClientOrderID)
	assert.Equal(t, domain.OrderNew, ack.Status)

	require.Len(t, doer.calls, 1)
	req := doer.calls[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v3/order", req.URL.Path)
	assert.Equal(t, "access", req.Header.Get("X-MBX-APIKEY"))

	query := req.URL.Query()
	assert.Equal(t, "BTCUSDT", query.Get("symbol"))
	assert.Equal(t, "BUY", query.Get("side"))
	assert.Equal(t, "LIMIT", query.Get("type"))
	assert.Equal(t, "GTC", query.Get("timeInForce"))
	assert.Equal(t, "30000", query.Get("price"))
	assert.Equal(t, "1700000000000", query.Get("timestamp"))

	base, signature, found := strings.Cut(req.URL.RawQuery, "&signature=")
	require.True(t, found)
	assert.Equal(t, Sign("secret", base), signature)
}

func TestPlaceOrder_GeneratesClientOrderID(t *testing.T) {
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"orderId":1,"status":"NEW"}`, nil), nil
	}}
	api := testTradeAPI(doer)

	order := limitOrder(t)
	order.ClientOrderID = ""
	_, err := api.PlaceOrder(context.Background(), order)
	require.NoError(t, err)

	require.Len(t, doer.calls, 1)
	assert.NotEmpty(t, doer.calls[0].URL.Query().Get("newClientOrderId"),
		"a client order id must always be sent so retries stay idempotent on the vendor side")
}

func TestPlaceOrder_ValidationSendsNothing(t *testing.T) {
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		t.Fatal("no request may be sent for an invalid order")
		return nil, nil
	}}
	api := testTradeAPI(doer)

	order := limitOrder(t)
	order.Price = decimal.NullDecimal{}
	_, err := api.PlaceOrder(context.Background(), order)

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Empty(t, doer.calls)
}

func TestPlaceOrder_TransportErrorIsAmbiguous(t *testing.T) {
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: i/o timeout")
	}}
	api := testTradeAPI(doer)

	_, err := api.PlaceOrder(context.Background(), limitOrder(t))

	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindAmbiguousOutcome),
		"a send failure may still have placed the order, the caller must reconcile")
	assert.Len(t, doer.calls, 1, "ambiguous outcomes are never retried internally")
}

func TestPlaceOrder_InsufficientBalance(t *testing.T) {
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest,
			`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`, nil), nil
	}}
	api := testTradeAPI(doer)

	_, err := api.PlaceOrder(context.Background(), limitOrder(t))

	assert.True(t, domain.IsKind(err, domain.KindInsufficientBalance))
}

func TestPlaceOrder_RateLimitedCarriesRetryAfter(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "2")
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests."}`, header), nil
	}}
	api := testTradeAPI(doer)

	_, err := api.PlaceOrder(context.Background(), limitOrder(t))

	require.True(t, domain.IsKind(err, domain.KindRateLimited))
	var ce *domain.CanonicalError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2*time.Second, ce.RetryAfter)
}

func TestCancelOrder(t *testing.T) {
	pair, err := domain.ParseCurrencyPair("BTC-USDT")
	require.NoError(t, err)

	t.Run("ByOrderID", func(t *testing.T) {
		doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK,
				`{"symbol":"BTCUSDT","orderId":12345,"origClientOrderId":"my-order-1","status":"CANCELED"}`, nil), nil
		}}
		api := testTradeAPI(doer)

		ack, err := api.CancelOrder(context.Background(), pair, domain.CancelRequest{OrderID: "12345"})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCanceled, ack.Status)

		require.Len(t, doer.calls, 1)
		req := doer.calls[0]
		assert.Equal(t, http.MethodDelete, req.Method)
		assert.Equal(t, "12345", req.URL.Query().Get("orderId"))
		assert.Empty(t, req.URL.Query().Get("origClientOrderId"))
	})

	t.Run("AmbiguousSelectorSendsNothing", func(t *testing.T) {
		doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
			t.Fatal("no request may be sent for an invalid cancel")
			return nil, nil
		}}
		api := testTradeAPI(doer)

		_, err := api.CancelOrder(context.Background(), pair, domain.CancelRequest{OrderID: "1", ClientOrderID: "x"})
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Empty(t, doer.calls)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusBadRequest, `{"code":-2013,"msg":"Order does not exist."}`, nil), nil
		}}
		api := testTradeAPI(doer)

		_, err := api.CancelOrder(context.Background(), pair, domain.CancelRequest{OrderID: "404"})
		assert.True(t, domain.IsKind(err, domain.KindOrderNotFound))
	})
}
