package provider

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-unify/domain"
	i "github.com/spooky-finn/go-exchange-unify/domain/interfaces"
	"github.com/spooky-finn/go-exchange-unify/infrastructure/conf"
	"github.com/spooky-finn/go-exchange-unify/infrastructure/transport"
	"github.com/spooky-finn/go-exchange-unify/provider/binance"
	"github.com/spooky-finn/go-exchange-unify/provider/kucoin"
)

var logger = logrus.WithField("component", "conn-manager")

var ErrUnsupportedVendor = errors.New("unsupported vendor")

const tradeCallTimeout = 10 * time.Second

// ConnectionManager resolves a vendor name to its adapter. Public stream
// clients and trade operators are lazy singletons per vendor, because stream
// connections are expensive and shared across callers. Private stream
// clients are one per distinct credential pair and never shared across
// credentials.
type ConnectionManager struct {
	conf    *conf.Config
	clock   i.Clock
	metrics domain.SessionMetrics

	mu       sync.Mutex
	publics  map[string]i.PublicStreamClient
	trades   map[string]i.TradeOperator
	privates map[string]i.PrivateStreamClient
	closed   bool
}

func NewConnectionManager(cfg *conf.Config, metrics domain.SessionMetrics) *ConnectionManager {
	return &ConnectionManager{
		conf:     cfg,
		clock:    i.SystemClock{},
		metrics:  metrics,
		publics:  make(map[string]i.PublicStreamClient),
		trades:   make(map[string]i.TradeOperator),
		privates: make(map[string]i.PrivateStreamClient),
	}
}

func (cm *ConnectionManager) PublicStream(vendor string) (i.PublicStreamClient, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return nil, fmt.Errorf("connection manager is closed")
	}
	if client, ok := cm.publics[vendor]; ok {
		return client, nil
	}

	var client i.PublicStreamClient
	switch vendor {
	case binance.VendorName:
		client = binance.NewBinanceStreamAPI(transport.DialEndpoint, cm.clock, cm.sessionOptions()...)
	case kucoin.VendorName:
		syncAPI := kucoin.NewKucoinSyncAPI(cm.conf.KucoinAPIKey, cm.conf.KucoinSecretKey, cm.conf.KucoinPassphrase)
		client = kucoin.NewKucoinStreamAPI(syncAPI, transport.DialEndpoint, cm.clock, cm.sessionOptions()...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVendor, vendor)
	}

	logger.WithField("vendor", vendor).Info("created public stream client")
	cm.publics[vendor] = client
	return client, nil
}

func (cm *ConnectionManager) PrivateStream(vendor string, creds domain.Credentials) (i.PrivateStreamClient, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return nil, fmt.Errorf("connection manager is closed")
	}
	key := vendor + ":" + creds.AccessKey
	if client, ok := cm.privates[key]; ok {
		return client, nil
	}

	var client i.PrivateStreamClient
	switch vendor {
	case binance.VendorName:
		doer := transport.NewHTTPClient(tradeCallTimeout)
		client = binance.NewBinancePrivateStream(creds, doer, transport.DialEndpoint, cm.clock, cm.sessionOptions()...)
	default:
		return nil, fmt.Errorf("%w: %s has no private stream adapter", ErrUnsupportedVendor, vendor)
	}

	logger.WithFields(logrus.Fields{"vendor": vendor, "creds": creds}).Info("created private stream client")
	cm.privates[key] = client
	return client, nil
}

func (cm *ConnectionManager) TradeOperator(vendor string) (i.TradeOperator, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return nil, fmt.Errorf("connection manager is closed")
	}
	if op, ok := cm.trades[vendor]; ok {
		return op, nil
	}

	var op i.TradeOperator
	switch vendor {
	case binance.VendorName:
		creds := domain.Credentials{AccessKey: cm.conf.BinanceAPIKey, SecretKey: cm.conf.BinanceSecretKey}
		op = binance.NewBinanceTradeAPI(transport.NewHTTPClient(tradeCallTimeout), cm.clock, creds)
	default:
		return nil, fmt.Errorf("%w: %s has no trade operator", ErrUnsupportedVendor, vendor)
	}

	cm.trades[vendor] = op
	return op, nil
}

// Close tears down every stream client. In-flight trade calls are not
// interrupted; their outcome stays observable to the caller.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.closed = true
	for vendor, client := range cm.publics {
		if err := client.Close(); err != nil {
			logger.WithError(err).WithField("vendor", vendor).Warn("failed to close public stream")
		}
		delete(cm.publics, vendor)
	}
	for key, client := range cm.privates {
		if err := client.Close(); err != nil {
			logger.WithError(err).WithField("client", key).Warn("failed to close private stream")
		}
		delete(cm.privates, key)
	}
}

func (cm *ConnectionManager) sessionOptions() []domain.SessionOption {
	opts := []domain.SessionOption{}
	if cm.metrics != nil {
		opts = append(opts, domain.WithMetrics(cm.metrics))
	}
	return opts
}
