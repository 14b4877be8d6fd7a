// Package scanner fans position discovery out across protocol adapters and
// merges the results into one portfolio snapshot.
package scanner

import (
	"context"
	"sync"

	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/rs/zerolog"
)

// dustThresholdUSD filters out positions too small to matter.
const dustThresholdUSD = 1.0

type Scanner struct {
	adapters map[string]protocols.Adapter
	log      zerolog.Logger
}

func New(adapters map[string]protocols.Adapter, log zerolog.Logger) *Scanner {
	return &Scanner{adapters: adapters, log: log}
}

// ScanAll fetches wallet's positions from the named protocols concurrently.
// An empty protocol list means all registered adapters. One adapter failing
// never discards another adapter's results; failures are logged and the
// remaining positions returned.
func (s *Scanner) ScanAll(ctx context.Context, wallet string, protocolNames []string) []model.Position {
	targets := protocolNames
	if len(targets) == 0 {
		targets = make([]string, 0, len(s.adapters))
		for name := range s.adapters {
			targets = append(targets, name)
		}
	}

	var wg sync.WaitGroup
	results := make([][]model.Position, len(targets))

	for i, name := range targets {
		adapter, ok := s.adapters[name]
		if !ok {
			s.log.Warn().Str("protocol", name).Msg("unknown protocol, skipping")
			continue
		}
		wg.Add(1)
		go func(i int, adapter protocols.Adapter) {
			defer wg.Done()
			// A panicking adapter counts as a failed scan, nothing more.
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Str("protocol", adapter.Name()).Interface("panic", r).Msg("protocol scan panicked")
				}
			}()
			positions, err := adapter.Fetch(ctx, wallet)
			if err != nil {
				s.log.Error().Str("protocol", adapter.Name()).Err(err).Msg("protocol scan failed")
				return
			}
			results[i] = positions
		}(i, adapter)
	}
	wg.Wait()

	merged := make([]model.Position, 0)
	for _, batch := range results {
		for _, p := range batch {
			if p.CollateralUSD < dustThresholdUSD {
				continue
			}
			merged = append(merged, p)
		}
	}
	return merged
}
