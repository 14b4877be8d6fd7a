// Package wallet reads idle token balances for action planning. Balances
// are fetched with starknet_call balanceOf against each configured ERC-20
// contract and priced in USD.
package wallet

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/rs/zerolog"
)

// Default mainnet token contracts for the assets the planner can spend.
var defaultTokens = map[string]string{
	"ETH":  "0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7",
	"STRK": "0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d",
	"USDC": "0x053c91253bc9682c04929ca02ed00b3e423f6710d2ee7e0d5ebb06f3ecf368a8",
	"USDT": "0x068f5c6a61780768455de69077e07e89787839bf8166decfbf92b645209c0fb8",
	"DAI":  "0x00da114221cb83fa859dbdb4c44beeaa0bb37c7537ad5ae66fe5e0efd20e6eb3",
}

// tokenDecimals for converting raw uint256 balances to native units.
var tokenDecimals = map[string]int{
	"ETH":  18,
	"STRK": 18,
	"USDC": 6,
	"USDT": 6,
	"DAI":  18,
}

// ChainCaller is the read-only chain client slice used for balance calls.
type ChainCaller interface {
	Call(ctx context.Context, contract, entryPoint string, calldata []string) ([]string, error)
}

type Fetcher struct {
	chain  ChainCaller
	prices protocols.PriceSource
	tokens map[string]string
	log    zerolog.Logger
}

func NewFetcher(chainClient ChainCaller, prices protocols.PriceSource, tokens map[string]string, log zerolog.Logger) *Fetcher {
	if len(tokens) == 0 {
		tokens = defaultTokens
	}
	return &Fetcher{chain: chainClient, prices: prices, tokens: tokens, log: log}
}

// BalancesUSD returns the wallet's idle balance per asset symbol valued in
// USD. Individual token failures are logged and skipped so one bad token
// contract cannot block action planning.
func (f *Fetcher) BalancesUSD(ctx context.Context, wallet string) map[string]float64 {
	out := make(map[string]float64, len(f.tokens))
	for symbol, contract := range f.tokens {
		felts, err := f.chain.Call(ctx, contract, "balanceOf", []string{wallet})
		if err != nil {
			f.log.Warn().Str("token", symbol).Err(err).Msg("balance call failed")
			continue
		}
		amount, ok := feltsToAmount(felts, decimalsFor(symbol))
		if !ok || amount == 0 {
			continue
		}
		price, err := f.prices.Price(ctx, symbol)
		if err != nil {
			f.log.Warn().Str("token", symbol).Err(err).Msg("skipping balance, price unavailable")
			continue
		}
		out[symbol] = amount * price
	}
	return out
}

func decimalsFor(symbol string) int {
	if d, ok := tokenDecimals[symbol]; ok {
		return d
	}
	return 18
}

// feltsToAmount decodes a uint256 balance returned as [low, high] felts.
// Nodes may pad felts with leading zeros, so decoding is lenient.
func feltsToAmount(felts []string, decimals int) (float64, bool) {
	if len(felts) == 0 {
		return 0, false
	}
	low, ok := decodeFelt(felts[0])
	if !ok {
		return 0, false
	}
	total := new(big.Int).Set(low)
	if len(felts) > 1 {
		high, ok := decodeFelt(felts[1])
		if !ok {
			return 0, false
		}
		total.Add(total, new(big.Int).Lsh(high, 128))
	}

	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	amount, _ := new(big.Float).Quo(new(big.Float).SetInt(total), scale).Float64()
	return amount, true
}

func decodeFelt(felt string) (*big.Int, bool) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(felt, "0x"), 16)
	return v, ok
}
