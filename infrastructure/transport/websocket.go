package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

const defaultHandshakeTimeout = 5 * time.Second

// WSDialer opens gorilla websocket connections against a fixed endpoint.
// It satisfies the dial side of a stream session's transport needs.
type WSDialer struct {
	Endpoint string
	Header   http.Header
}

func NewWSDialer(endpoint string) *WSDialer {
	return &WSDialer{Endpoint: endpoint}
}

func (d *WSDialer) Dial(ctx context.Context) (domain.StreamConn, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultHandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, d.Endpoint, d.Header)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// DialEndpoint is WSDialer.Dial for a URL decided at dial time, for vendors
// whose endpoint comes out of a side-channel token call.
func DialEndpoint(ctx context.Context, endpoint string, header http.Header) (domain.StreamConn, error) {
	return (&WSDialer{Endpoint: endpoint, Header: header}).Dial(ctx)
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
