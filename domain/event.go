package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventMessage wraps every streamed payload with the vendor's own timestamp
// and the local receive timestamp, so consumers can bound propagation latency.
type EventMessage[T any] struct {
	Payload      T
	ExchangeTime time.Time
	ReceivedTime time.Time
}

// Latency is the propagation delay observed for this event. Only meaningful
// when the vendor stamped ExchangeTime and clocks are roughly in sync.
func (m EventMessage[T]) Latency() time.Duration {
	return m.ReceivedTime.Sub(m.ExchangeTime)
}

type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

type Trade struct {
	Symbol   CurrencyPair
	TradeID  string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Side     TradeSide
}

// OrderBookDelta is one incremental depth update. Applying deltas to a
// snapshot is the caller's concern; this layer only moves them.
type OrderBookDelta struct {
	Symbol        CurrencyPair
	Bids          []PriceLevel
	Asks          []PriceLevel
	FirstUpdateID int64
	FinalUpdateID int64
}

// OrderEvent is the canonical authenticated account update, keyed by the
// exchange and client order ids.
type OrderEvent struct {
	Symbol        CurrencyPair
	OrderID       string
	ClientOrderID string
	Side          TradeSide
	Type          OrderType
	Status        OrderStatus
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
}
