package transport

import (
	"net/http"
	"time"
)

// NewHTTPClient builds the client injected into trade operators. The hard
// timeout guarantees no trading call can hang indefinitely.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
