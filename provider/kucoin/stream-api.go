package kucoin

import (
	"time"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
)

// KucoinStreamAPI is the public market-data adapter for kucoin. One instance
// owns one token-gated session shared by every subscription.
type KucoinStreamAPI struct {
	session *domain.StreamSession
	clock   i.Clock
}

func NewKucoinStreamAPI(syncAPI *KucoinSyncAPI, dial DialFunc, clock i.Clock, opts ...domain.SessionOption) *KucoinStreamAPI {
	hooks := newStreamHooks(syncAPI, dial)
	return &KucoinStreamAPI{
		session: domain.NewStreamSession(VendorName, hooks, opts...),
		clock:   clock,
	}
}

func (s *KucoinStreamAPI) SubscribeTrades(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.Trade]], error) {
	key := domain.SubscriptionKey{Vendor: VendorName, Channel: domain.ChannelTrades, Symbol: symbol}
	return decodeStream(s.session, key, s.clock, decodeMatch)
}

func (s *KucoinStreamAPI) SubscribeOrderBook(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.OrderBookDelta]], error) {
	key := domain.SubscriptionKey{Vendor: VendorName, Channel: domain.ChannelOrderBook, Symbol: symbol}
	return decodeStream(s.session, key, s.clock, decodeLevel2)
}

func (s *KucoinStreamAPI) Close() error {
	return s.session.Close()
}

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
