package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

const VendorName = "binance"

const (
	defaultStreamEndpoint = "wss://stream.binance.com:9443/stream"
	defaultRESTEndpoint   = "https://api.binance.com"
)

var logger = logrus.WithField("component", "binance")

// DialFunc opens one duplex stream. Injected so that tests and alternative
// transports can stand in for the gorilla dialer.
type DialFunc func(ctx context.Context, endpoint string, header http.Header) (domain.StreamConn, error)

type wsRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ReqID  int64    `json:"id"`
}

type wsEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	ID     *int64          `json:"id"`
}

// publicHooks speaks the combined-stream protocol: SUBSCRIBE/UNSUBSCRIBE
// frames with numeric request ids, id-matched acks, and data wrapped in a
// {stream, data} envelope. All methods run on the owning session goroutine.
type publicHooks struct {
	dial     DialFunc
	endpoint string
	acks     map[int64]string // request id -> topic
}

func newPublicHooks(dial DialFunc, endpoint string) *publicHooks {
	if endpoint == "" {
		endpoint = defaultStreamEndpoint
	}
	return &publicHooks{
		dial:     dial,
		endpoint: endpoint,
		acks:     make(map[int64]string),
	}
}

func (h *publicHooks) Dial(ctx context.Context) (domain.StreamConn, error) {
	return h.dial(ctx, h.endpoint, nil)
}

func (h *publicHooks) Topic(key domain.SubscriptionKey) string {
	symbol := strings.ToLower(key.Symbol.Join(""))
	switch key.Channel {
	case domain.ChannelTrades:
		return symbol + "@trade"
	case domain.ChannelOrderBook:
		return symbol + "@depth"
	}
	return string(key.Channel)
}

func (h *publicHooks) SubscribeFrame(topic string) ([]byte, error) {
	return h.requestFrame("SUBSCRIBE", topic)
}

func (h *publicHooks) UnsubscribeFrame(topic string) ([]byte, error) {
	return h.requestFrame("UNSUBSCRIBE", topic)
}

func (h *publicHooks) requestFrame(method, topic string) ([]byte, error) {
	reqID := nextReqID()
	h.acks[reqID] = topic
	frame, err := json.Marshal(wsRequest{Method: method, Params: []string{topic}, ReqID: reqID})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s frame for topic=%s: %w", method, topic, err)
	}
	return frame, nil
}

func (h *publicHooks) Classify(raw []byte) domain.Frame {
	var env wsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.WithError(err).Warn("unreadable frame")
		return domain.Frame{Kind: domain.FrameIgnore}
	}
	if env.ID != nil {
		topic, ok := h.acks[*env.ID]
		if !ok {
			return domain.Frame{Kind: domain.FrameIgnore}
		}
		delete(h.acks, *env.ID)
		return domain.Frame{Kind: domain.FrameAck, Topic: topic}
	}
	if env.Stream != "" {
		return domain.Frame{Kind: domain.FrameData, Topic: env.Stream, Payload: env.Data}
	}
	return domain.Frame{Kind: domain.FrameIgnore}
}

func (h *publicHooks) AwaitAck() bool { return true }

// The server pings at protocol level and gorilla answers with pongs, so no
// application-level keepalive frame is needed.
func (h *publicHooks) PingFrame() ([]byte, time.Duration) { return nil, 0 }

func nextReqID() int64 {
	return int64(10000 + rand.Intn(9989999))
}

// wireSymbol renders a pair the way binance spells it on the wire.
func wireSymbol(symbol domain.CurrencyPair) string {
	return strings.ToUpper(symbol.Join(""))
}
