package interfaces

import (
	"net/http"
	"time"
)

// HTTPDoer is the request/response capability injected into trade operators.
// *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Clock supplies request timestamps. All calls of one adapter must share a
// single Clock so recvWindow checks see one coherent time source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
