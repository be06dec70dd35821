package kucoin

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

// Pure mapping between kucoin wire shapes and the canonical model.

type matchData struct {
	TradeID string `json:"tradeId"`
	Price   string `json:"price"`
	Size    string `json:"size"`
	Side    string `json:"side"`
	Time    string `json:"time"` // nanoseconds since epoch
}

func decodeMatch(symbol domain.CurrencyPair, raw []byte, received time.Time) (domain.EventMessage[domain.Trade], error) {
	var data matchData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("failed to decode match: %w", err)
	}
	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("bad match price %q: %w", data.Price, err)
	}
	size, err := decimal.NewFromString(data.Size)
	if err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("bad match size %q: %w", data.Size, err)
	}
	side := domain.Buy
	if strings.EqualFold(data.Side, "sell") {
		side = domain.Sell
	}
	nanos, err := strconv.ParseInt(data.Time, 10, 64)
	if err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("bad match time %q: %w", data.Time, err)
	}
	return domain.EventMessage[domain.Trade]{
		Payload: domain.Trade{
			Symbol:   symbol,
			TradeID:  data.TradeID,
			Price:    price,
			Quantity: size,
			Side:     side,
		},
		ExchangeTime: time.Unix(0, nanos),
		ReceivedTime: received,
	}, nil
}

type level2Data struct {
	SequenceStart int64 `json:"sequenceStart"`
	SequenceEnd   int64 `json:"sequenceEnd"`
	Changes       struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
	} `json:"changes"`
	Time int64 `json:"time"` // milliseconds
}

func decodeLevel2(symbol domain.CurrencyPair, raw []byte, received time.Time) (domain.EventMessage[domain.OrderBookDelta], error) {
	var data level2Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.EventMessage[domain.OrderBookDelta]{}, fmt.Errorf("failed to decode level2 update: %w", err)
	}
	bids, err := decodeLevels(data.Changes.Bids)
	if err != nil {
		return domain.EventMessage[domain.OrderBookDelta]{}, err
	}
	asks, err := decodeLevels(data.Changes.Asks)
	if err != nil {
		return domain.EventMessage[domain.OrderBookDelta]{}, err
	}
	return domain.EventMessage[domain.OrderBookDelta]{
		Payload: domain.OrderBookDelta{
			Symbol:        symbol,
			Bids:          bids,
			Asks:          asks,
			FirstUpdateID: data.SequenceStart,
			FinalUpdateID: data.SequenceEnd,
		},
		ExchangeTime: time.UnixMilli(data.Time),
		ReceivedTime: received,
	}, nil
}

// level2 change rows are [price, size, sequence]; only the first two matter.
func decodeLevels(raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, level := range raw {
		if len(level) < 2 {
			return nil, fmt.Errorf("level2 change with %d fields", len(level))
		}
		price, err := decimal.NewFromString(level[0])
		if err != nil {
			return nil, fmt.Errorf("bad level2 price %q: %w", level[0], err)
		}
		size, err := decimal.NewFromString(level[1])
		if err != nil {
			return nil, fmt.Errorf("bad level2 size %q: %w", level[1], err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: size})
	}
	return levels, nil
}
