package cex

import (
	"github.com/purr/LiveCryptoPrice/pkg/feed/sources"
)

func init() {
	// Register all CEX sources
	sources.Register("binance", NewBinanceSource)
	sources.Register("kraken", NewKrakenSource)
	sources.Register("gateio", NewGateioSource)
	sources.Register("cryptocompare", NewCryptoCompareSource)
	sources.Register("huobi", NewHuobiSource)
	sources.Register("okx", NewOKXSource)
	sources.Register("kucoin", NewKuCoinSource)
	sources.Register("bybit", NewBybitSource)
	sources.Register("coingecko", NewCoinGeckoSource)
}
