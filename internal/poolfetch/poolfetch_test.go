package poolfetch

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/config"
)

func TestTruncatedHex(t *testing.T) {
	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	got := truncatedHex(addr)
	require.Equal(t, "0x1234…7890", got)
}

func TestResolveUnderlyingSymbolCacheHit(t *testing.T) {
	table := NewTable(nil, zap.NewNop())

	underlying := common.HexToAddress("0xabcdefabcdefabcdefabcdefabcdefabcdefabcd")
	cacheKey := append([]byte{byte(config.ChainEthereum), byte(config.ChainEthereum >> 8)}, underlying.Bytes()...)
	table.symbolCache.Set(cacheKey, []byte("USDC"))

	// With the symbol already cached, resolveUnderlyingSymbol must never
	// dereference the (nil, in this test) chain client.
	got := table.resolveUnderlyingSymbol(context.Background(), config.ChainEthereum, underlying)
	require.Equal(t, "USDC", got)
}

func TestDefaultDirectPoolsCoversMainnetChains(t *testing.T) {
	defaults := DefaultDirectPools()

	require.NotEmpty(t, defaults[config.ChainEthereum])
	require.NotEmpty(t, defaults[config.ChainArbitrum])
	require.NotEmpty(t, defaults[config.ChainOptimism])

	// Sonic, Plasma, and Monad have no established deployment to
	// hard-code; operators wire these in via RegisterDirect once known.
	require.Empty(t, defaults[config.ChainSonic])
	require.Empty(t, defaults[config.ChainPlasma])
	require.Empty(t, defaults[config.ChainMonad])
}

func TestFetchChainUnregisteredChainErrors(t *testing.T) {
	table := NewTable(nil, zap.NewNop())
	_, err := table.FetchChain(context.Background(), config.ChainMonad)
	require.Error(t, err)
}
