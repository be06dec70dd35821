package kucoin

import (
	"encoding/json"
	"fmt"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/sirupsen/logrus"
)

const VendorName = "kucoin"

var logger = logrus.WithField("component", "kucoin")

// KucoinSyncAPI wraps the vendor SDK for the side-channel calls the stream
// needs: kucoin hands out its websocket endpoint and a short-lived token over
// REST before any stream can be opened.
type KucoinSyncAPI struct {
	apiService *kucoin.ApiService
}

func NewKucoinSyncAPI(apiKey, apiSecret, passphrase string) *KucoinSyncAPI {
	return &KucoinSyncAPI{
		apiService: kucoin.NewApiService(
			kucoin.ApiKeyOption(apiKey),
			kucoin.ApiSecretOption(apiSecret),
			kucoin.ApiPassPhraseOption(passphrase),
		),
	}
}

type WSConnOpts struct {
	Token           string `json:"token"`
	InstanceServers []struct {
		Endpoint     string `json:"endpoint"`
		Protocol     string `json:"protocol"`
		PingInterval int    `json:"pingInterval"`
		PingTimeout  int    `json:"pingTimeout"`
	} `json:"instanceServers"`
}

func (api *KucoinSyncAPI) WsConnOpts() (*WSConnOpts, error) {
	resp, err := api.apiService.WebSocketPublicToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get ws connection options: %w", err)
	}

	data := &WSConnOpts{}
	if err = json.Unmarshal(resp.RawData, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, resp.Message)
	}
	if len(data.InstanceServers) == 0 {
		return nil, fmt.Errorf("vendor returned no websocket instance servers")
	}

	return data, nil
}
