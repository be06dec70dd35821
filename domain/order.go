package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TradeSide string

const (
	Buy  TradeSide = "BUY"
	Sell TradeSide = "SELL"
)

type OrderType string

const (
	Limit           OrderType = "LIMIT"
	Market          OrderType = "MARKET"
	StopLoss        OrderType = "STOP_LOSS"
	StopLossLimit   OrderType = "STOP_LOSS_LIMIT"
	TakeProfit      OrderType = "TAKE_PROFIT"
	TakeProfitLimit OrderType = "TAKE_PROFIT_LIMIT"
)

// HasLimitLeg reports whether the type requires price and timeInForce.
func (t OrderType) HasLimitLeg() bool {
	switch t {
	case Limit, StopLossLimit, TakeProfitLimit:
		return true
	}
	return false
}

// HasStopLeg reports whether the type requires a stop price.
func (t OrderType) HasStopLeg() bool {
	switch t {
	case StopLoss, StopLossLimit, TakeProfit, TakeProfitLimit:
		return true
	}
	return false
}

type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

type OrderStatus string

const (
	OrderNew             OrderStatus = "NEW"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCanceled        OrderStatus = "CANCELED"
	OrderRejected        OrderStatus = "REJECTED"
	OrderExpired         OrderStatus = "EXPIRED"
)

const DefaultRecvWindowMillis int64 = 5000

// OrderRequest is a fully validated trading command. Construct one through
// the typed constructors below; the required-field-by-order-type invariant is
// checked at construction time, before anything touches the network.
//
// The request carries no timestamp: the trade operator stamps it from its
// clock at send time so that a request built early does not drift outside the
// vendor's recvWindow.
type OrderRequest struct {
	Symbol           CurrencyPair
	Side             TradeSide
	Type             OrderType
	Quantity         decimal.Decimal
	Price            decimal.NullDecimal
	StopPrice        decimal.NullDecimal
	IcebergQty       decimal.NullDecimal
	TimeInForce      TimeInForce
	ClientOrderID    string
	RecvWindowMillis int64
}

func NewLimitOrder(symbol CurrencyPair, side TradeSide, quantity, price decimal.Decimal, tif TimeInForce) (*OrderRequest, error) {
	r := &OrderRequest{
		Symbol:           symbol,
		Side:             side,
		Type:             Limit,
		Quantity:         quantity,
		Price:            decimal.NewNullDecimal(price),
		TimeInForce:      tif,
		RecvWindowMillis: DefaultRecvWindowMillis,
	}
	return r, r.Validate()
}

func NewMarketOrder(symbol CurrencyPair, side TradeSide, quantity decimal.Decimal) (*OrderRequest, error) {
	r := &OrderRequest{
		Symbol:           symbol,
		Side:             side,
		Type:             Market,
		Quantity:         quantity,
		RecvWindowMillis: DefaultRecvWindowMillis,
	}
	return r, r.Validate()
}

func NewStopOrder(symbol CurrencyPair, side TradeSide, typ OrderType, quantity, stopPrice decimal.Decimal) (*OrderRequest, error) {
	r := &OrderRequest{
		Symbol:           symbol,
		Side:             side,
		Type:             typ,
		Quantity:         quantity,
		StopPrice:        decimal.NewNullDecimal(stopPrice),
		RecvWindowMillis: DefaultRecvWindowMillis,
	}
	return r, r.Validate()
}

func NewStopLimitOrder(symbol CurrencyPair, side TradeSide, typ OrderType, quantity, stopPrice, price decimal.Decimal, tif TimeInForce) (*OrderRequest, error) {
	r := &OrderRequest{
		Symbol:           symbol,
		Side:             side,
		Type:             typ,
		Quantity:         quantity,
		Price:            decimal.NewNullDecimal(price),
		StopPrice:        decimal.NewNullDecimal(stopPrice),
		TimeInForce:      tif,
		RecvWindowMillis: DefaultRecvWindowMillis,
	}
	return r, r.Validate()
}

func (r *OrderRequest) Validate() error {
	if r.Side != Buy && r.Side != Sell {
		return NewValidationError("side", fmt.Sprintf("unknown trade side %q", r.Side))
	}
	if !r.Quantity.IsPositive() {
		return NewValidationError("quantity", "must be positive")
	}
	if r.Type.HasLimitLeg() {
		if !r.Price.Valid {
			return NewValidationError("price", fmt.Sprintf("required for %s orders", r.Type))
		}
		if r.TimeInForce == "" {
			return NewValidationError("timeInForce", fmt.Sprintf("required for %s orders", r.Type))
		}
	} else if r.Type == Market {
		if r.Price.Valid {
			return NewValidationError("price", "meaningless for MARKET orders")
		}
		if r.TimeInForce != "" {
			return NewValidationError("timeInForce", "meaningless for MARKET orders")
		}
	}
	if r.Type.HasStopLeg() && !r.StopPrice.Valid {
		return NewValidationError("stopPrice", fmt.Sprintf("required for %s orders", r.Type))
	}
	if !r.Type.HasStopLeg() && r.StopPrice.Valid {
		return NewValidationError("stopPrice", fmt.Sprintf("meaningless for %s orders", r.Type))
	}
	if r.Price.Valid && !r.Price.Decimal.IsPositive() {
		return NewValidationError("price", "must be positive")
	}
	return nil
}

// CancelRequest identifies one order to cancel. Exactly one of OrderID and
// ClientOrderID must be set.
type CancelRequest struct {
	OrderID       string
	ClientOrderID string
}

func (r CancelRequest) Validate() error {
	if r.OrderID == "" && r.ClientOrderID == "" {
		return NewValidationError("orderId", "either orderId or clientOrderId is required")
	}
	if r.OrderID != "" && r.ClientOrderID != "" {
		return NewValidationError("orderId", "orderId and clientOrderId are mutually exclusive")
	}
	return nil
}

// OrderAck is the vendor's response to a successful place call.
type OrderAck struct {
	Symbol        CurrencyPair
	OrderID       string
	ClientOrderID string
	Status        OrderStatus
	TransactTime  time.Time
}

// CancelAck is the vendor's response to a successful cancel call.
type CancelAck struct {
	Symbol        CurrencyPair
	OrderID       string
	ClientOrderID string
	Status        OrderStatus
}
