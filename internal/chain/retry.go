package chain

import (
	"context"
	"time"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/errs"
	"github.com/lendwatch/monitor/internal/obs/metrics"
)

const (
	maxAttempts  = 3
	initialDelay = time.Second
)

// withRetry calls fn up to maxAttempts times in total, retrying only on
// transient errors and doubling the delay from initialDelay each time.
// Permanent and decode errors surface immediately.
func withRetry(ctx context.Context, chain config.ChainID, fn func(context.Context) error) error {
	delay := initialDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errs.Transient(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		metrics.RPCRetries.WithLabelValues(chainLabel(chain)).Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}

func chainLabel(chain config.ChainID) string {
	return chainNames[chain]
}

var chainNames = map[config.ChainID]string{
	config.ChainEthereum: "ethereum",
	config.ChainArbitrum: "arbitrum",
	config.ChainOptimism: "optimism",
	config.ChainSonic:    "sonic",
	config.ChainPlasma:   "plasma",
	config.ChainMonad:    "monad",
}
