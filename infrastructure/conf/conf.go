package conf

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "conf")

// Config carries process-level settings and vendor credentials. Secrets stay
// inside domain.Credentials values and are never logged.
type Config struct {
	BinanceAPIKey    string
	BinanceSecretKey string

	KucoinAPIKey     string
	KucoinSecretKey  string
	KucoinPassphrase string

	MetricsAddr string
}

// Load reads .env when present and falls back to the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file, using process environment")
	}
	return &Config{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		KucoinAPIKey:     os.Getenv("KUCOIN_API_KEY"),
		KucoinSecretKey:  os.Getenv("KUCOIN_SECRET_KEY"),
		KucoinPassphrase: os.Getenv("KUCOIN_PASSPHRASE"),
		MetricsAddr:      getenv("METRICS_ADDR", ":8080"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
