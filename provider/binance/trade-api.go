package binance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
)

// BinanceTradeAPI issues signed order calls. Instances are stateless apart
// from the credential object and safe for concurrent use; calls are never
// retried here because a duplicated placement duplicates financial effect.
type BinanceTradeAPI struct {
	doer     i.HTTPDoer
	clock    i.Clock
	creds    domain.Credentials
	endpoint string
}

func NewBinanceTradeAPI(doer i.HTTPDoer, clock i.Clock, creds domain.Credentials) *BinanceTradeAPI {
	return &BinanceTradeAPI{
		doer:     doer,
		clock:    clock,
		creds:    creds,
		endpoint: defaultRESTEndpoint,
	}
}

func (t *BinanceTradeAPI) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", wireSymbol(req.Symbol))
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity.String())
	setNullDecimal(params, "price", req.Price)
	setNullDecimal(params, "stopPrice", req.StopPrice)
	setNullDecimal(params, "icebergQty", req.IcebergQty)
	if req.TimeInForce != "" {
		params.Set("timeInForce", string(req.TimeInForce))
	}
	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	params.Set("newClientOrderId", clientOrderID)

	body, err := t.signedCall(ctx, http.MethodPost, "/api/v3/order", req.RecvWindowMillis, params)
	if err != nil {
		return nil, err
	}
	return decodeOrderAck(req.Symbol, body)
}

func (t *BinanceTradeAPI) CancelOrder(ctx context.Context, symbol domain.CurrencyPair, req domain.CancelRequest) (*domain.CancelAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", wireSymbol(symbol))
	if req.OrderID != "" {
		params.Set("orderId", req.OrderID)
	}
	if req.ClientOrderID != "" {
		params.Set("origClientOrderId", req.ClientOrderID)
	}

	body, err := t.signedCall(ctx, http.MethodDelete, "/api/v3/order", domain.DefaultRecvWindowMillis, params)
	if err != nil {
		return nil, err
	}
	return decodeCancelAck(symbol, body)
}

// signedCall runs one mutating REST call. A transport failure after Do may
// mean the request reached the vendor anyway, so it surfaces as
// AmbiguousOutcome; anything the vendor answered goes through the error
// translation table.
func (t *BinanceTradeAPI) signedCall(ctx context.Context, method, path string, recvWindowMillis int64, params url.Values) ([]byte, error) {
	query := signedQuery(t.creds, t.clock, recvWindowMillis, params)

	httpReq, err := http.NewRequestWithContext(ctx, method, t.endpoint+path+"?"+query, nil)
	if err != nil {
		return nil, domain.NewCanonicalError(VendorName, domain.KindInvalidRequestParameter, err)
	}
	httpReq.Header.Set("X-MBX-APIKEY", t.creds.AccessKey)

	resp, err := t.doer.Do(httpReq)
	if err != nil {
		return nil, domain.AmbiguousOutcome(VendorName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.AmbiguousOutcome(VendorName, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return nil, domain.Translate(VendorName, errorTable, resp.StatusCode, resp.Header, body)
	}
	return body, nil
}

func setNullDecimal(params url.Values, name string, value decimal.NullDecimal) {
	if value.Valid {
		params.Set(name, value.Decimal.String())
	}
}
