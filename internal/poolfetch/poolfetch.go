// Package poolfetch implements the per-chain pool discovery strategy table
// (§4.2): SDK-backed chains enumerate markets through a Fetcher
// implementation, direct-call chains iterate a hard-coded pool list and
// read metadata straight off the chain-access layer. Grounded on
// crypto-alert's hard-coded Aave pool-address table for the direct-call
// path.
package poolfetch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/chain"
	"github.com/lendwatch/monitor/internal/config"
)

// symbolCacheBytes bounds the underlying-symbol cache; entries are tiny
// (an address key, a short string value) so this comfortably covers every
// pool this process will ever discover across all chains.
const symbolCacheBytes = 1 << 20

// Pool is the normalized output of a fetch, one row per discovered market.
type Pool struct {
	Address           common.Address
	Chain             config.ChainID
	Name              string
	Symbol            string
	UnderlyingSymbol  string
	UnderlyingAddress common.Address
	Decimals          uint8
	TVL               *big.Int
	APY               float64
	Borrowed          *big.Int
	Utilization       float64
	Collaterals       []string
}

// DirectPoolConfig describes one hard-coded pool for a direct-call chain.
type DirectPoolConfig struct {
	Address     common.Address
	DisplayName string
	TokenSymbol string
	Decimals    uint8
}

// Fetcher is the SDK-backed strategy's integration point: a real protocol
// SDK implementation can be substituted per chain without touching the
// scheduler.
type Fetcher interface {
	FetchPools(ctx context.Context, chain config.ChainID) ([]Pool, error)
}

// strategy is per-chain: either an SDK Fetcher, or a hard-coded pool list
// read directly. Exactly one of the two is set per entry.
type strategy struct {
	sdk    Fetcher
	direct []DirectPoolConfig
}

// Table is the static per-chain strategy table. Adding a chain requires
// only a chain definition, a default endpoint, and an entry here.
type Table struct {
	clients    *chain.Clients
	log        *zap.Logger
	strategies map[config.ChainID]strategy

	// symbolCache avoids re-reading an unchanging ERC-20 symbol() every
	// discovery tick, grounded on the teacher's direct VictoriaMetrics/
	// fastcache dependency (used elsewhere in the teacher repo for
	// small, hot, process-lifetime lookups of this shape).
	symbolCache *fastcache.Cache
}

// NewTable builds an empty strategy table; register chains with
// RegisterSDK / RegisterDirect before calling FetchChain.
func NewTable(clients *chain.Clients, log *zap.Logger) *Table {
	return &Table{
		clients:     clients,
		log:         log,
		strategies:  make(map[config.ChainID]strategy),
		symbolCache: fastcache.New(symbolCacheBytes),
	}
}

// RegisterSDK wires an SDK-backed chain into the strategy table.
func (t *Table) RegisterSDK(c config.ChainID, f Fetcher) {
	t.strategies[c] = strategy{sdk: f}
}

// RegisterDirect wires a direct-call chain with its hard-coded pool list.
func (t *Table) RegisterDirect(c config.ChainID, pools []DirectPoolConfig) {
	t.strategies[c] = strategy{direct: pools}
}

// FetchChain runs the registered strategy for one chain. A pool that
// throws on any required read is dropped from the batch and logged, not
// fatal to the rest of the batch (§4.2 edge case).
func (t *Table) FetchChain(ctx context.Context, c config.ChainID) ([]Pool, error) {
	strat, ok := t.strategies[c]
	if !ok {
		return nil, fmt.Errorf("no fetch strategy registered for chain %d", c)
	}

	if strat.sdk != nil {
		return strat.sdk.FetchPools(ctx, c)
	}

	pools := make([]Pool, 0, len(strat.direct))
	for _, dpc := range strat.direct {
		pool, err := t.fetchDirect(ctx, c, dpc)
		if err != nil {
			t.log.Warn("dropping pool from batch",
				zap.Uint64("chain", uint64(c)),
				zap.String("pool", dpc.Address.Hex()),
				zap.Error(err),
			)
			continue
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func (t *Table) fetchDirect(ctx context.Context, c config.ChainID, dpc DirectPoolConfig) (Pool, error) {
	meta, err := t.clients.ReadPoolMetadata(ctx, c, dpc.Address)
	if err != nil {
		return Pool{}, fmt.Errorf("read pool metadata: %w", err)
	}

	underlyingSymbol := dpc.TokenSymbol
	if underlyingSymbol == "" {
		underlyingSymbol = t.resolveUnderlyingSymbol(ctx, c, meta.Underlying)
	}

	return Pool{
		Address:           dpc.Address,
		Chain:             c,
		Name:              dpc.DisplayName,
		Symbol:            dpc.TokenSymbol,
		UnderlyingSymbol:  underlyingSymbol,
		UnderlyingAddress: meta.Underlying,
		Decimals:          meta.Decimals,
		TVL:               meta.TotalAssets,
		APY:               meta.SupplyAPY,
		Borrowed:          big.NewInt(0),
		Utilization:       0,
	}, nil
}

// resolveUnderlyingSymbol implements the §4.2 edge case: use on-chain
// symbol() of the asset contract, falling back to a truncated hex
// address, with a process-lifetime cache keyed by (chain, address).
func (t *Table) resolveUnderlyingSymbol(ctx context.Context, c config.ChainID, underlying common.Address) string {
	cacheKey := append([]byte{byte(c), byte(c >> 8)}, underlying.Bytes()...)
	if cached := t.symbolCache.Get(nil, cacheKey); len(cached) > 0 {
		return string(cached)
	}

	sym, err := t.clients.ReadERC20Symbol(ctx, c, underlying)
	if err != nil || sym == "" {
		sym = truncatedHex(underlying)
	}
	t.symbolCache.Set(cacheKey, []byte(sym))
	return sym
}

func truncatedHex(addr common.Address) string {
	h := addr.Hex()
	if len(h) <= 10 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}
