package interfaces

import (
	"context"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

// PublicStreamClient streams unauthenticated market data. Streams never
// terminate on their own except on explicit unsubscribe or an unrecoverable
// session failure.
type PublicStreamClient interface {
	SubscribeTrades(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.Trade]], error)
	SubscribeOrderBook(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.OrderBookDelta]], error)
	Close() error
}

// PrivateStreamClient streams authenticated account updates for one
// credential pair.
type PrivateStreamClient interface {
	OrderEvents() (*domain.Subscription[domain.EventMessage[domain.OrderEvent]], error)
	Close() error
}

// TradeOperator issues order-affecting HTTP calls. Calls are stateless,
// independent, and safe to run in parallel; they are never retried
// internally because a duplicate placement duplicates financial effect.
type TradeOperator interface {
	PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderAck, error)
	CancelOrder(ctx context.Context, symbol domain.CurrencyPair, req domain.CancelRequest) (*domain.CancelAck, error)
}
