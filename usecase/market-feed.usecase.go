package usecase

import (
	"fmt"
	"sync"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
)

// MarketFeedUseCase merges the canonical trade feeds of several vendors into
// one stream. Because every adapter normalizes into the same model, the
// fan-in needs no vendor-specific handling at all.
type MarketFeedUseCase struct {
	resolver i.ClientResolver
}

func NewMarketFeedUseCase(resolver i.ClientResolver) *MarketFeedUseCase {
	return &MarketFeedUseCase{resolver: resolver}
}

// TradesFanIn subscribes to symbol's trades on every listed vendor and
// merges the streams. Unsubscribing the returned subscription unsubscribes
// all underlying ones; the merged stream closes once all inputs close.
func (uc *MarketFeedUseCase) TradesFanIn(vendors []string, symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.Trade]], error) {
	subs := make([]*domain.Subscription[domain.EventMessage[domain.Trade]], 0, len(vendors))
	unsubscribeAll := func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}

	for _, vendor := range vendors {
		client, err := uc.resolver.PublicStream(vendor)
		if err != nil {
			unsubscribeAll()
			return nil, err
		}
		sub, err := client.SubscribeTrades(symbol)
		if err != nil {
			unsubscribeAll()
			return nil, fmt.Errorf("failed to subscribe %s trades on %s: %w", symbol, vendor, err)
		}
		subs = append(subs, sub)
	}

	out := make(chan domain.EventMessage[domain.Trade])
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(in <-chan domain.EventMessage[domain.Trade]) {
			defer wg.Done()
			for event := range in {
				out <- event
			}
		}(sub.Stream)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return &domain.Subscription[domain.EventMessage[domain.Trade]]{
		Stream:      out,
		Topic:       fmt.Sprintf("fanin:%s:%s", domain.ChannelTrades, symbol),
		Unsubscribe: unsubscribeAll,
	}, nil
}
