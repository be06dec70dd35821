package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

// DialFunc opens one duplex stream against an endpoint decided at dial time.
type DialFunc func(ctx context.Context, endpoint string, header http.Header) (domain.StreamConn, error)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Subject string          `json:"subject,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type wsSubscribeRequest struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

// streamHooks speaks the kucoin protocol: a token-gated endpoint from the
// REST side channel, string-id-matched acks and an application-level ping.
// All methods run on the owning session goroutine.
type streamHooks struct {
	syncAPI *KucoinSyncAPI
	dial    DialFunc

	acks         map[string]string // request id -> topic
	pingInterval time.Duration
}

func newStreamHooks(syncAPI *KucoinSyncAPI, dial DialFunc) *streamHooks {
	return &streamHooks{
		syncAPI:      syncAPI,
		dial:         dial,
		acks:         make(map[string]string),
		pingInterval: 30 * time.Second,
	}
}

func (h *streamHooks) Dial(ctx context.Context) (domain.StreamConn, error) {
	opts, err := h.syncAPI.WsConnOpts()
	if err != nil {
		return nil, err
	}
	server := opts.InstanceServers[0]
	if server.PingInterval > 0 {
		h.pingInterval = time.Duration(server.PingInterval) * time.Millisecond
	}

	endpoint := fmt.Sprintf("%s?token=%s&connectId=%s", server.Endpoint, opts.Token, uuid.NewString())
	return h.dial(ctx, endpoint, nil)
}

func (h *streamHooks) Topic(key domain.SubscriptionKey) string {
	switch key.Channel {
	case domain.ChannelTrades:
		return "/market/match:" + key.Symbol.String()
	case domain.ChannelOrderBook:
		return "/market/level2:" + key.Symbol.String()
	}
	return string(key.Channel)
}

func (h *streamHooks) SubscribeFrame(topic string) ([]byte, error) {
	return h.requestFrame("subscribe", topic)
}

func (h *streamHooks) UnsubscribeFrame(topic string) ([]byte, error) {
	return h.requestFrame("unsubscribe", topic)
}

func (h *streamHooks) requestFrame(typ, topic string) ([]byte, error) {
	id := uuid.NewString()
	h.acks[id] = topic
	frame, err := json.Marshal(wsSubscribeRequest{
		ID:       id,
		Type:     typ,
		Topic:    topic,
		Response: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s frame for topic=%s: %w", typ, topic, err)
	}
	return frame, nil
}

func (h *streamHooks) Classify(raw []byte) domain.Frame {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.WithError(err).Warn("unreadable frame")
		return domain.Frame{Kind: domain.FrameIgnore}
	}
	switch msg.Type {
	case "message":
		return domain.Frame{Kind: domain.FrameData, Topic: msg.Topic, Payload: msg.Data}
	case "ack":
		topic, ok := h.acks[msg.ID]
		if !ok {
			return domain.Frame{Kind: domain.FrameIgnore}
		}
		delete(h.acks, msg.ID)
		return domain.Frame{Kind: domain.FrameAck, Topic: topic}
	case "pong", "welcome":
		return domain.Frame{Kind: domain.FrameKeepAlive}
	case "error":
		logger.WithField("frame", string(raw)).Warn("vendor error frame")
		return domain.Frame{Kind: domain.FrameIgnore}
	}
	return domain.Frame{Kind: domain.FrameIgnore}
}

func (h *streamHooks) AwaitAck() bool { return true }

func (h *streamHooks) PingFrame() ([]byte, time.Duration) {
	frame, _ := json.Marshal(wsMessage{ID: uuid.NewString(), Type: "ping"})
	return frame, h.pingInterval
}
