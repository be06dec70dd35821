package binance

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spooky-finn/go-exchange-unify/domain"
)

// vector from the official binance REST API documentation
func TestSign_DocumentationVector(t *testing.T) {
	secret := "NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j"
	payload := "symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"

	signature := Sign(secret, payload)

	assert.Equal(t, "c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71", signature)
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestSignedQuery(t *testing.T) {
	creds := domain.Credentials{AccessKey: "access", SecretKey: "secret"}
	clock := fixedClock{now: time.UnixMilli(1700000000000)}

	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	query := signedQuery(creds, clock, 5000, params)

	base, signature, found := strings.Cut(query, "&signature=")
	require.True(t, found, "signature must be the last parameter")
	assert.Equal(t, Sign("secret", base), signature)

	parsed, err := url.ParseQuery(base)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", parsed.Get("symbol"))
	assert.Equal(t, "5000", parsed.Get("recvWindow"))
	assert.Equal(t, "1700000000000", parsed.Get("timestamp"))
}
