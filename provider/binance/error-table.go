package binance

import "github.com/spooky-finn/go-exchange-unify/domain"

// errorTable maps binance error codes onto the canonical taxonomy. Codes not
// listed here fall through to the HTTP-status rules and finally to
// UnknownVendorError, so a new vendor code can never crash the pipeline.
var errorTable = domain.ErrorTable{
	Codes: map[string]domain.ErrorKind{
		"-1003": domain.KindRateLimited,             // TOO_MANY_REQUESTS
		"-1015": domain.KindRateLimited,             // TOO_MANY_ORDERS
		"-1021": domain.KindInvalidRequestParameter, // timestamp outside recvWindow
		"-1022": domain.KindAuthenticationFailed,    // invalid signature
		"-1100": domain.KindInvalidRequestParameter, // illegal characters
		"-1102": domain.KindInvalidRequestParameter, // mandatory param missing
		"-1104": domain.KindInvalidRequestParameter, // unread parameters
		"-1106": domain.KindInvalidRequestParameter, // parameter not required
		"-1121": domain.KindInvalidRequestParameter, // invalid symbol
		"-2010": domain.KindInsufficientBalance,     // new order rejected
		"-2011": domain.KindOrderNotFound,           // cancel rejected
		"-2013": domain.KindOrderNotFound,           // order does not exist
		"-2014": domain.KindAuthenticationFailed,    // bad api key format
		"-2015": domain.KindAuthenticationFailed,    // rejected key/ip/permissions
	},
}
