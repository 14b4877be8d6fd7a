// Package registry wires protocol names to their adapters.
package registry

import (
	"sort"

	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/ethereumdegen/stark-guardian/internal/protocols/ekubo"
	"github.com/ethereumdegen/stark-guardian/internal/protocols/nostra"
	"github.com/ethereumdegen/stark-guardian/internal/protocols/staking"
	"github.com/ethereumdegen/stark-guardian/internal/protocols/zklend"
	"github.com/rs/zerolog"
)

// Endpoints overrides the default API base URL per protocol. Empty values
// fall back to each adapter's mainnet default.
type Endpoints struct {
	Nostra  string
	ZkLend  string
	Ekubo   string
	Staking string
}

// Build constructs every supported adapter keyed by protocol name.
func Build(httpClient *httpx.Client, prices protocols.PriceSource, eps Endpoints, log zerolog.Logger) map[string]protocols.Adapter {
	adapters := []protocols.Adapter{
		nostra.New(httpClient, prices, eps.Nostra, log),
		zklend.New(httpClient, prices, eps.ZkLend, log),
		ekubo.New(httpClient, prices, eps.Ekubo, log),
		staking.New(httpClient, prices, eps.Staking, log),
	}
	out := make(map[string]protocols.Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Name()] = a
	}
	return out
}

// SupportedNames lists the protocol identifiers Build knows about, sorted.
func SupportedNames() []string {
	names := []string{"nostra", "zklend", "ekubo", "strk-staking"}
	sort.Strings(names)
	return names
}
