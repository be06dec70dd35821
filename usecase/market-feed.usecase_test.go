package usecase

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
)

type fakePublicStream struct {
	vendor       string
	trades       chan domain.EventMessage[domain.Trade]
	unsubscribed bool
}

func (f *fakePublicStream) SubscribeTrades(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.Trade]], error) {
	return &domain.Subscription[domain.EventMessage[domain.Trade]]{
		Stream: f.trades,
		Topic:  f.vendor + ":trades:" + symbol.String(),
		Unsubscribe: func() {
			if !f.unsubscribed {
				f.unsubscribed = true
				close(f.trades)
			}
		},
	}, nil
}

func (f *fakePublicStream) SubscribeOrderBook(symbol domain.CurrencyPair) (*domain.Subscription[domain.EventMessage[domain.OrderBookDelta]], error) {
	panic("not used")
}

func (f *fakePublicStream) Close() error { return nil }

type fakeResolver struct {
	streams map[string]*fakePublicStream
}

func (r *fakeResolver) PublicStream(vendor string) (i.PublicStreamClient, error) {
	return r.streams[vendor], nil
}

func (r *fakeResolver) PrivateStream(vendor string, creds domain.Credentials) (i.PrivateStreamClient, error) {
	panic("not used")
}

func (r *fakeResolver) TradeOperator(vendor string) (i.TradeOperator, error) {
	panic("not used")
}

func tradeEvent(symbol domain.CurrencyPair, id string) domain.EventMessage[domain.Trade] {
	return domain.EventMessage[domain.Trade]{
		Payload: domain.Trade{
			Symbol:   symbol,
			TradeID:  id,
			Price:    decimal.NewFromInt(30000),
			Quantity: decimal.NewFromInt(1),
			Side:     domain.Buy,
		},
		ExchangeTime: time.Now(),
		ReceivedTime: time.Now(),
	}
}

func TestTradesFanIn(t *testing.T) {
	symbol, err := domain.ParseCurrencyPair("BTC-USDT")
	require.NoError(t, err)

	resolver := &fakeResolver{streams: map[string]*fakePublicStream{
		"binance": {vendor: "binance", trades: make(chan domain.EventMessage[domain.Trade], 4)},
		"kucoin":  {vendor: "kucoin", trades: make(chan domain.EventMessage[domain.Trade], 4)},
	}}
	uc := NewMarketFeedUseCase(resolver)

	merged, err := uc.TradesFanIn([]string{"binance", "kucoin"}, symbol)
	require.NoError(t, err)

	resolver.streams["binance"].trades <- tradeEvent(symbol, "b1")
	resolver.streams["kucoin"].trades <- tradeEvent(symbol, "k1")

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case event := <-merged.Stream:
			seen[event.Payload.TradeID] = true
		case <-time.After(time.Second):
			t.Fatalf("merged stream stalled, saw %v", seen)
		}
	}
	assert.True(t, seen["b1"] && seen["k1"])

	// unsubscribing tears down every input, which in turn closes the merge
	merged.Unsubscribe()
	_, open := <-merged.Stream
	assert.False(t, open)
	assert.True(t, resolver.streams["binance"].unsubscribed)
	assert.True(t, resolver.streams["kucoin"].unsubscribed)
}
