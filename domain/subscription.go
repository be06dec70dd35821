package domain

import "fmt"

// Subscription is one live stream of decoded events. Unsubscribe is
// idempotent; after it returns no further values are delivered and Stream is
// closed.
type Subscription[T any] struct {
	Stream      <-chan T
	Topic       string
	Unsubscribe func()
}

type Channel string

const (
	ChannelTrades    Channel = "trades"
	ChannelOrderBook Channel = "depth"
	ChannelOrders    Channel = "orders"
)

// SubscriptionKey identifies one logical subscription. The stream session
// deduplicates on it and replays the full key set after every reconnect.
type SubscriptionKey struct {
	Vendor  string
	Channel Channel
	Symbol  CurrencyPair
}

func (k SubscriptionKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Vendor, k.Channel, k.Symbol)
}

// Credentials signs private calls. The secret never leaves this struct
// through logging or serialization.
type Credentials struct {
	AccessKey string
	SecretKey string
}

// String redacts the secret; only an access-key prefix is ever printed.
func (c Credentials) String() string {
	prefix := c.AccessKey
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return fmt.Sprintf("Credentials{%s…}", prefix)
}

func (c Credentials) GoString() string { return c.String() }
