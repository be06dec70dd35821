package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spooky-finn/go-exchange-unify/domain"
	"github.com/spooky-finn/go-exchange-unify/helpers"
)

// Pure mapping between binance wire shapes and the canonical model. Nothing
// in this file touches the network.

type tradeData struct {
	Event        string `json:"e"`
	EventTime    int64  `json:"E"`
	TradeID      int64  `json:"t"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
}

func decodeTrade(symbol domain.CurrencyPair, raw []byte, received time.Time) (domain.EventMessage[domain.Trade], error) {
	var data tradeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("failed to decode trade: %w", err)
	}
	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("bad trade price %q: %w", data.Price, err)
	}
	qty, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return domain.EventMessage[domain.Trade]{}, fmt.Errorf("bad trade quantity %q: %w", data.Quantity, err)
	}
	side := domain.Buy
	if data.BuyerIsMaker {
		side = domain.Sell
	}
	return domain.EventMessage[domain.Trade]{
		Payload: domain.Trade{
			Symbol:   symbol,
			TradeID:  helpers.IntToString(data.TradeID),
			Price:    price,
			Quantity: qty,
			Side:     side,
		},
		ExchangeTime: time.UnixMilli(data.EventTime),
		ReceivedTime: received,
	}, nil
}

type depthData struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

func decodeDepth(symbol domain.CurrencyPair, raw []byte, received time.Time) (domain.EventMessage[domain.OrderBookDelta], error) {
	var data depthData
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.EventMessage[domain.OrderBookDelta]{}, fmt.Errorf("failed to decode depth update: %w", err)
	}
	bids, err := decodeLevels(data.Bids)
	if err != nil {
		return domain.EventMessage[domain.OrderBookDelta]{}, err
	}
	asks, err := decodeLevels(data.Asks)
	if err != nil {
		return domain.EventMessage[domain.OrderBookDelta]{}, err
	}
	return domain.EventMessage[domain.OrderBookDelta]{
		Payload: domain.OrderBookDelta{
			Symbol:        symbol,
			Bids:          bids,
			Asks:          asks,
			FirstUpdateID: data.FirstUpdateID,
			FinalUpdateID: data.FinalUpdateID,
		},
		ExchangeTime: time.UnixMilli(data.EventTime),
		ReceivedTime: received,
	}, nil
}

func decodeLevels(raw [][]string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, level := range raw {
		if len(level) < 2 {
			return nil, fmt.Errorf("depth level with %d fields", len(level))
		}
		price, err := decimal.NewFromString(level[0])
		if err != nil {
			return nil, fmt.Errorf("bad depth price %q: %w", level[0], err)
		}
		qty, err := decimal.NewFromString(level[1])
		if err != nil {
			return nil, fmt.Errorf("bad depth quantity %q: %w", level[1], err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}

type executionReport struct {
	Event         string `json:"e"`
	EventTime     int64  `json:"E"`
	Symbol        string `json:"s"`
	ClientOrderID string `json:"c"`
	Side          string `json:"S"`
	OrderType     string `json:"o"`
	Status        string `json:"X"`
	OrderID       int64  `json:"i"`
	Price         string `json:"p"`
	Quantity      string `json:"q"`
	FilledQty     string `json:"z"`
}

func decodeOrderEvent(raw []byte, received time.Time) (domain.EventMessage[domain.OrderEvent], error) {
	var data executionReport
	if err := json.Unmarshal(raw, &data); err != nil {
		return domain.EventMessage[domain.OrderEvent]{}, fmt.Errorf("failed to decode execution report: %w", err)
	}
	symbol, err := parseWireSymbol(data.Symbol)
	if err != nil {
		return domain.EventMessage[domain.OrderEvent]{}, err
	}
	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return domain.EventMessage[domain.OrderEvent]{}, fmt.Errorf("bad order price %q: %w", data.Price, err)
	}
	qty, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return domain.EventMessage[domain.OrderEvent]{}, fmt.Errorf("bad order quantity %q: %w", data.Quantity, err)
	}
	filled, err := decimal.NewFromString(data.FilledQty)
	if err != nil {
		return domain.EventMessage[domain.OrderEvent]{}, fmt.Errorf("bad filled quantity %q: %w", data.FilledQty, err)
	}
	return domain.EventMessage[domain.OrderEvent]{
		Payload: domain.OrderEvent{
			Symbol:        symbol,
			OrderID:       helpers.IntToString(data.OrderID),
			ClientOrderID: data.ClientOrderID,
			Side:          domain.TradeSide(data.Side),
			Type:          domain.OrderType(data.OrderType),
			Status:        domain.OrderStatus(data.Status),
			Price:         price,
			Quantity:      qty,
			FilledQty:     filled,
		},
		ExchangeTime: time.UnixMilli(data.EventTime),
		ReceivedTime: received,
	}, nil
}

// Binance concatenates base and quote without a separator, so splitting a
// wire symbol back into a pair needs the known quote codes, longest first.
var knownQuotes = []string{
	"USDT", "USDC", "FDUSD", "TUSD", "BUSD", "BTC", "ETH", "BNB", "EUR", "TRY", "GBP", "DAI",
}

func parseWireSymbol(s string) (domain.CurrencyPair, error) {
	s = strings.ToUpper(s)
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return domain.NewCurrencyPair(strings.TrimSuffix(s, quote), quote)
		}
	}
	return domain.CurrencyPair{}, fmt.Errorf("%w: unknown quote in %q", domain.ErrMalformedSymbol, s)
}

type placeOrderResponse struct {
	Symbol        string `json:"symbol"`
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	TransactTime  int64  `json:"transactTime"`
	Status        string `json:"status"`
}

func decodeOrderAck(symbol domain.CurrencyPair, body []byte) (*domain.OrderAck, error) {
	var resp placeOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode place order response: %w", err)
	}
	return &domain.OrderAck{
		Symbol:        symbol,
		OrderID:       helpers.IntToString(resp.OrderID),
		ClientOrderID: resp.ClientOrderID,
		Status:        domain.OrderStatus(resp.Status),
		TransactTime:  time.UnixMilli(resp.TransactTime),
	}, nil
}

type cancelOrderResponse struct {
	Symbol            string `json:"symbol"`
	OrderID           int64  `json:"orderId"`
	OrigClientOrderID string `json:"origClientOrderId"`
	Status            string `json:"status"`
}

func decodeCancelAck(symbol domain.CurrencyPair, body []byte) (*domain.CancelAck, error) {
	var resp cancelOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cancel order response: %w", err)
	}
	return &domain.CancelAck{
		Symbol:        symbol,
		OrderID:       helpers.IntToString(resp.OrderID),
		ClientOrderID: resp.OrigClientOrderID,
		Status:        domain.OrderStatus(resp.Status),
	}, nil
}
