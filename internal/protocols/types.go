package protocols

import (
	"context"

	"github.com/ethereumdegen/stark-guardian/internal/model"
)

// Adapter fetches the open positions one protocol holds for a wallet.
// Implementations must be safe for concurrent use; the scanner fans out
// one goroutine per adapter.
type Adapter interface {
	// Name is the stable protocol identifier used in config and reports.
	Name() string

	// Fetch returns every open position for wallet, already priced in USD.
	// Positions with zero collateral and zero debt are omitted. A position
	// whose price cannot be resolved is skipped, not fatal.
	Fetch(ctx context.Context, wallet string) ([]model.Position, error)
}

// PriceSource is the slice of the price oracle adapters need.
type PriceSource interface {
	Price(ctx context.Context, asset string) (float64, error)
}
