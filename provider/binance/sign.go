package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
	"github.com/spooky-finn/go-exchange-unify/helpers"
)

// Sign is the whole of the binance request-signing scheme: HMAC-SHA256 over
// the encoded query string, hex encoded. Kept pure so tests can pin vectors
// and swap the clock without touching the trade operator.
func Sign(secretKey, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedQuery stamps the request from the shared clock, attaches the
// tolerance window and appends the signature as the last parameter, the way
// the vendor requires.
func signedQuery(creds domain.Credentials, clock i.Clock, recvWindowMillis int64, params url.Values) string {
	params.Set("recvWindow", helpers.IntToString(recvWindowMillis))
	params.Set("timestamp", helpers.IntToString(clock.Now().UnixMilli()))
	query := params.Encode()
	return query + "&signature=" + Sign(creds.SecretKey, query)
}
