package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/spooky-finn/go-exchange-unify/domain"
	"github.com/spooky-finn/go-exchange-unify/infrastructure/conf"
	promclient "github.com/spooky-finn/go-exchange-unify/infrastructure/prometheus"
	"github.com/spooky-finn/go-exchange-unify/provider"
	"github.com/spooky-finn/go-exchange-unify/usecase"
)

func main() {
	cfg := conf.Load()
	go promclient.StartPromClientServer(cfg.MetricsAddr)

	cm := provider.NewConnectionManager(cfg, promclient.SessionMetrics{})
	defer cm.Close()

	symbol, err := domain.ParseCurrencyPair("BTC-USDT")
	if err != nil {
		logrus.Fatalf("failed to parse symbol: %s", err)
	}

	feed := usecase.NewMarketFeedUseCase(cm)
	sub, err := feed.TradesFanIn([]string{"binance", "kucoin"}, symbol)
	if err != nil {
		logrus.Fatalf("failed to subscribe: %s", err)
	}
	defer sub.Unsubscribe()

	go func() {
		for event := range sub.Stream {
			logrus.WithFields(logrus.Fields{
				"symbol":  event.Payload.Symbol,
				"side":    event.Payload.Side,
				"price":   event.Payload.Price,
				"qty":     event.Payload.Quantity,
				"latency": event.Latency(),
			}).Info("trade")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}
