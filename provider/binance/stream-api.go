package binance

import (
	"time"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
)

// BinanceStreamAPI is the public market-data adapter. One instance owns one
// combined-stream session shared by every subscription.
type BinanceStreamAPI struct {
	session *domain.StreamSession
	clock   i.Clock
}

func NewBinanceStreamAPI(dial DialFunc, clock i.Clock, opts ...domain.SessionOption) *BinanceStreamAPI {
	hooks := newPublicHooks(dial, defaultStreamEndpoint)
	return &BinanceStreamAPI{
		session: domain.NewStreamSession(VendorName, hooks, opts...),
		clock:   clock,
	}
}

func (b *BinanceStreamAPI) SubscribeTrades(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.Trade]], error) {
	key := domain.SubscriptionKey{Vendor: VendorName, Channel: domain.ChannelTrades, Symbol: symbol}
	return decodeStream(b.session, key, b.clock, decodeTrade)
}

func (b *BinanceStreamAPI) SubscribeOrderBook(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.OrderBookDelta]], error) {
	key := domain.SubscriptionKey{Vendor: VendorName, Channel: domain.ChannelOrderBook, Symbol: symbol}
	return decodeStream(b.session, key, b.clock, decodeDepth)
}

func (b *BinanceStreamAPI) Close() error {
	return b.session.Close()
}

// decodeStream bridges the session's raw payload stream into typed canonical
// events, dropping frames the vendor codec cannot read.
func decodeStream[T any](
	session *domain.StreamSession,
	key domain.SubscriptionKey,
	clock i.Clock,
	decode func(domain.CurrencyPair, []byte, time.Time) (domain.EventMessage[T], error),
) (*domain.Subscription[domain.EventMessage[T]], error) {
	sub, err := session.Subscribe(key)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.EventMessage[T])
	go func() {
		defer close(out)
		for raw := range sub.Stream {
			event, err := decode(key.Symbol, raw, clock.Now())
			if err != nil {
				logger.WithError(err).WithField("topic", sub.Topic).Warn("dropping undecodable frame")
				continue
			}
			out <- event
		}
	}()

	return &domain.Subscription[domain.EventMessage[T]]{
		Stream:      out,
		Topic:       sub.Topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}
