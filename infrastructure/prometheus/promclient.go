package promclient

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "promclient")

var liveSubscriptionsGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "stream_live_subscriptions",
		Help: "live subscription keys per vendor stream session",
	},
	[]string{"vendor"},
)

var reconnectsCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stream_reconnects_total",
		Help: "reconnect attempts per vendor stream session",
	},
	[]string{"vendor"},
)

// SessionMetrics plugs the prometheus registry into stream sessions.
type SessionMetrics struct{}

func (SessionMetrics) Reconnected(vendor string) {
	reconnectsCounter.WithLabelValues(vendor).Inc()
}

func (SessionMetrics) LiveSubscriptions(vendor string, n int) {
	liveSubscriptionsGauge.WithLabelValues(vendor).Set(float64(n))
}

// StartPromClientServer serves /metrics. Blocks; run it in a goroutine.
func StartPromClientServer(addr string) {
	reg := prometheus.NewRegistry()

	reg.MustRegister(liveSubscriptionsGauge)
	reg.MustRegister(reconnectsCounter)
	reg.MustRegister(collectors.NewGoCollector())

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Infof("prometheus server listening at %s", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatalf("failed to serve: %v", err)
	}
}
