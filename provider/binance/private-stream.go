package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
)

const listenKeyKeepAliveInterval = 30 * time.Minute

// BinancePrivateStream streams authenticated order events for one credential
// pair. The stream rides on a listen key obtained through a REST side
// channel; the key is renewed periodically and re-acquired from scratch on
// every reconnect, so a lapsed key only ever costs one reconnect.
type BinancePrivateStream struct {
	creds   domain.Credentials
	doer    i.HTTPDoer
	clock   i.Clock
	session *domain.StreamSession

	restEndpoint string
	wsEndpoint   string

	mu        sync.Mutex
	listenKey string
}

func NewBinancePrivateStream(creds domain.Credentials, doer i.HTTPDoer, dial DialFunc, clock i.Clock, opts ...domain.SessionOption) *BinancePrivateStream {
	p := &BinancePrivateStream{
		creds:        creds,
		doer:         doer,
		clock:        clock,
		restEndpoint: defaultRESTEndpoint,
		wsEndpoint:   "wss://stream.binance.com:9443/ws/",
	}
	opts = append(opts, domain.WithSessionRefresh(p.keepAliveListenKey, listenKeyKeepAliveInterval))
	p.session = domain.NewStreamSession(VendorName, &privateHooks{owner: p, dial: dial}, opts...)
	return p
}

func (p *BinancePrivateStream) OrderEvents() (*domain.Subscription[domain.EventMessage[domain.OrderEvent]], error) {
	key := domain.SubscriptionKey{Vendor: VendorName, Channel: domain.ChannelOrders}
	sub, err := p.session.Subscribe(key)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.EventMessage[domain.OrderEvent])
	go func() {
		defer close(out)
		for raw := range sub.Stream {
			event, err := decodeOrderEvent(raw, p.clock.Now())
			if err != nil {
				logger.WithError(err).Warn("dropping undecodable order event")
				continue
			}
			out <- event
		}
	}()

	return &domain.Subscription[domain.EventMessage[domain.OrderEvent]]{
		Stream:      out,
		Topic:       sub.Topic,
		Unsubscribe: sub.Unsubscribe,
	}, nil
}

func (p *BinancePrivateStream) Close() error {
	return p.session.Close()
}

func (p *BinancePrivateStream) createListenKey(ctx context.Context) (string, error) {
	body, err := p.listenKeyCall(ctx, http.MethodPost, nil)
	if err != nil {
		return "", err
	}
	var resp struct {
		ListenKey string `json:"listenKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode listen key response: %w", err)
	}
	if resp.ListenKey == "" {
		return "", fmt.Errorf("vendor returned an empty listen key")
	}

	p.mu.Lock()
	p.listenKey = resp.ListenKey
	p.mu.Unlock()
	return resp.ListenKey, nil
}

func (p *BinancePrivateStream) keepAliveListenKey(ctx context.Context) error {
	p.mu.Lock()
	key := p.listenKey
	p.mu.Unlock()
	if key == "" {
		return fmt.Errorf("no listen key to keep alive")
	}
	params := url.Values{}
	params.Set("listenKey", key)
	_, err := p.listenKeyCall(ctx, http.MethodPut, params)
	return err
}

func (p *BinancePrivateStream) listenKeyCall(ctx context.Context, method string, params url.Values) ([]byte, error) {
	target := p.restEndpoint + "/api/v3/userDataStream"
	if params != nil {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", p.creds.AccessKey)

	resp, err := p.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, domain.Translate(VendorName, errorTable, resp.StatusCode, resp.Header, body)
	}
	return body, nil
}

// privateHooks drives the listen-key stream. The stream carries events
// implicitly, so there are no subscribe frames and no acks.
type privateHooks struct {
	owner *BinancePrivateStream
	dial  DialFunc
}

func (h *privateHooks) Dial(ctx context.Context) (domain.StreamConn, error) {
	listenKey, err := h.owner.createListenKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create listen key: %w", err)
	}
	return h.dial(ctx, h.owner.wsEndpoint+listenKey, nil)
}

func (h *privateHooks) Topic(key domain.SubscriptionKey) string {
	return string(key.Channel)
}

func (h *privateHooks) SubscribeFrame(topic string) ([]byte, error)   { return nil, nil }
func (h *privateHooks) UnsubscribeFrame(topic string) ([]byte, error) { return nil, nil }
func (h *privateHooks) AwaitAck() bool                                { return false }
func (h *privateHooks) PingFrame() ([]byte, time.Duration)            { return nil, 0 }

func (h *privateHooks) Classify(raw []byte) domain.Frame {
	var env struct {
		Event     string `json:"e"`
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.WithError(err).Warn("unreadable private frame")
		return domain.Frame{Kind: domain.FrameIgnore}
	}
	switch env.Event {
	case "executionReport":
		return domain.Frame{Kind: domain.FrameData, Topic: string(domain.ChannelOrders), Payload: raw}
	case "listenKeyExpired":
		return domain.Frame{Kind: domain.FrameSessionExpiry}
	}
	return domain.Frame{Kind: domain.FrameIgnore}
}
