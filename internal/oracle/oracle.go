package oracle

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/rs/zerolog"
)

const (
	defaultPragmaBase    = "https://api.pragma.build/node/v1/data"
	defaultCoinGeckoBase = "https://api.coingecko.com/api/v3"
	defaultTTL           = 30 * time.Second
)

// coingeckoIDs maps asset symbols to CoinGecko ids for the fallback lookup.
var coingeckoIDs = map[string]string{
	"ETH":    "ethereum",
	"WBTC":   "wrapped-bitcoin",
	"BTC":    "bitcoin",
	"STRK":   "starknet",
	"USDC":   "usd-coin",
	"USDT":   "tether",
	"DAI":    "dai",
	"wstETH": "wrapped-steth",
	"LORDS":  "lords",
	"EKUBO":  "ekubo-protocol",
}

var stablecoins = map[string]bool{
	"USDC": true,
	"USDT": true,
	"DAI":  true,
}

type cachedPrice struct {
	price    float64
	fetchedAt time.Time
}

// Oracle resolves asset symbols to USD prices. Lookups fall through Pragma
// then CoinGecko, caching the first success per symbol for a short TTL.
// Failed lookups are never cached. Safe for concurrent use by parallel
// adapter fetches within a scan cycle.
type Oracle struct {
	http          *httpx.Client
	pragmaBase    string
	coingeckoBase string
	ttl           time.Duration
	log           zerolog.Logger
	now           func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedPrice
}

func New(httpClient *httpx.Client, log zerolog.Logger) *Oracle {
	return &Oracle{
		http:          httpClient,
		pragmaBase:    defaultPragmaBase,
		coingeckoBase: defaultCoinGeckoBase,
		ttl:           defaultTTL,
		log:           log,
		now:           time.Now,
		cache:         make(map[string]cachedPrice),
	}
}

// Price returns the USD price of asset. It fails with a price-unavailable
// error only after every fallback provider has failed.
func (o *Oracle) Price(ctx context.Context, asset string) (float64, error) {
	if price, ok := o.cached(asset); ok {
		return price, nil
	}

	if stablecoins[asset] {
		o.store(asset, 1.0)
		return 1.0, nil
	}

	if price, err := o.fromPragma(ctx, asset); err == nil {
		o.store(asset, price)
		return price, nil
	} else {
		o.log.Debug().Str("asset", asset).Err(err).Msg("pragma price lookup failed")
	}

	if price, err := o.fromCoinGecko(ctx, asset); err == nil {
		o.store(asset, price)
		return price, nil
	} else {
		o.log.Debug().Str("asset", asset).Err(err).Msg("coingecko price lookup failed")
	}

	return 0, gerr.New(gerr.CodePriceUnavailable, fmt.Sprintf("could not fetch price for %s", asset))
}

func (o *Oracle) cached(asset string) (float64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.cache[asset]
	if !ok || o.now().Sub(entry.fetchedAt) >= o.ttl {
		return 0, false
	}
	return entry.price, true
}

func (o *Oracle) store(asset string, price float64) {
	o.mu.Lock()
	o.cache[asset] = cachedPrice{price: price, fetchedAt: o.now()}
	o.mu.Unlock()
}

type pragmaResponse struct {
	Price    string `json:"price"`
	Decimals int    `json:"decimals"`
}

func (o *Oracle) fromPragma(ctx context.Context, asset string) (float64, error) {
	url := fmt.Sprintf("%s/spot/latest?pair=%s/USD", o.pragmaBase, asset)
	var resp pragmaResponse
	if err := o.http.GetJSON(ctx, url, &resp); err != nil {
		return 0, err
	}
	raw, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, gerr.Wrap(gerr.CodeUnavailable, "parse pragma price", err)
	}
	price := raw / math.Pow10(resp.Decimals)
	if price <= 0 {
		return 0, gerr.New(gerr.CodeUnavailable, "pragma returned non-positive price")
	}
	return price, nil
}

func (o *Oracle) fromCoinGecko(ctx context.Context, asset string) (float64, error) {
	cgID, ok := coingeckoIDs[asset]
	if !ok {
		return 0, gerr.New(gerr.CodeUnsupported, fmt.Sprintf("no coingecko id for %s", asset))
	}
	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", o.coingeckoBase, cgID)
	var resp map[string]map[string]float64
	if err := o.http.GetJSON(ctx, url, &resp); err != nil {
		return 0, err
	}
	price := resp[cgID]["usd"]
	if price <= 0 {
		return 0, gerr.New(gerr.CodeUnavailable, "coingecko returned no usd price")
	}
	return price, nil
}
