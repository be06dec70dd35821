package interfaces

import "github.com/spooky-finn/go-exchange-unify/domain"

// ClientResolver hands out the per-vendor adapter implementing a requested
// capability. Vendors implement capabilities independently; asking for one a
// vendor lacks is an error, not a panic.
type ClientResolver interface {
	PublicStream(vendor string) (PublicStreamClient, error)
	PrivateStream(vendor string, creds domain.Credentials) (PrivateStreamClient, error)
	TradeOperator(vendor string) (TradeOperator, error)
}
