package binance

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

type memConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once
}

func newMemConn() *memConn {
	return &memConn{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *memConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *memConn) WriteMessage(data []byte) error { return nil }

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type recordingDialer struct {
	mu        sync.Mutex
	endpoints []string
	conns     []*memConn
}

func (d *recordingDialer) dial(ctx context.Context, endpoint string, header http.Header) (domain.StreamConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := newMemConn()
	d.endpoints = append(d.endpoints, endpoint)
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *recordingDialer) conn(t *testing.T, n int) *memConn {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.conns) >= n
	}, time.Second, time.Millisecond, "connection %d was never dialed", n)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[n-1]
}

func (d *recordingDialer) endpoint(n int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.endpoints[n-1]
}

func TestPrivateStream_ListenKeyLifecycle(t *testing.T) {
	var keyCounter int
	var keyMu sync.Mutex
	doer := &fakeDoer{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/api/v3/userDataStream", req.URL.Path)
		assert.Equal(t, "access", req.Header.Get("X-MBX-APIKEY"))
		keyMu.Lock()
		keyCounter++
		key := "lk-" + string(rune('0'+keyCounter))
		keyMu.Unlock()
		return jsonResponse(http.StatusOK, `{"listenKey":"`+key+`"}`, nil), nil
	}}
	dialer := &recordingDialer{}
	creds := domain.Credentials{AccessKey: "access", SecretKey: "secret"}

	stream := NewBinancePrivateStream(creds, doer, dialer.dial, fixedClock{now: time.UnixMilli(1700000000150)},
		domain.WithBackoff(time.Millisecond, 5*time.Millisecond))
	defer stream.Close()

	sub, err := stream.OrderEvents()
	require.NoError(t, err)

	conn1 := dialer.conn(t, 1)
	assert.True(t, strings.HasSuffix(dialer.endpoint(1), "lk-1"), "stream endpoint carries the listen key")

	conn1.in <- []byte(`{"e":"executionReport","E":1700000000100,"s":"BTCUSDT","c":"my-order-1",` +
		`"S":"BUY","o":"LIMIT","X":"FILLED","i":42,"p":"30000","q":"1","z":"1"}`)

	select {
	case event := <-sub.Stream:
		assert.Equal(t, "42", event.Payload.OrderID)
		assert.Equal(t, domain.OrderFilled, event.Payload.Status)
		assert.Equal(t, time.UnixMilli(1700000000100), event.ExchangeTime)
	case <-time.After(time.Second):
		t.Fatal("no order event delivered")
	}

	// an expired listen key costs one reconnect with a fresh key
	conn1.in <- []byte(`{"e":"listenKeyExpired"}`)
	dialer.conn(t, 2)
	assert.True(t, strings.HasSuffix(dialer.endpoint(2), "lk-2"))
}

func TestPrivateHooks_Classify(t *testing.T) {
	hooks := &privateHooks{}

	report := hooks.Classify([]byte(`{"e":"executionReport","i":1}`))
	assert.Equal(t, domain.FrameData, report.Kind)
	assert.Equal(t, "orders", report.Topic)

	assert.Equal(t, domain.FrameSessionExpiry, hooks.Classify([]byte(`{"e":"listenKeyExpired"}`)).Kind)
	assert.Equal(t, domain.FrameIgnore, hooks.Classify([]byte(`{"e":"outboundAccountPosition"}`)).Kind)
	assert.Equal(t, domain.FrameIgnore, hooks.Classify([]byte("not json")).Kind)
}
