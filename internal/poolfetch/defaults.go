package poolfetch

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/lendwatch/monitor/internal/config"
)

// DefaultDirectPools returns the hard-coded direct-call pool list for
// chains where the pool addresses are well-established, grounded on the
// pack's crypto-alert Aave v3 Pool proxy address table
// (https://docs.aave.com/developers/deployed-contracts/v3-mainnet).
//
// Sonic, Plasma, and Monad have no long-established Aave v3-style
// deployment to hard-code here; operators wire pool addresses for those
// chains through Table.RegisterDirect at startup once known.
func DefaultDirectPools() map[config.ChainID][]DirectPoolConfig {
	return map[config.ChainID][]DirectPoolConfig{
		config.ChainEthereum: {
			{
				Address:     common.HexToAddress("0x87870Bca3F3fD6335C3F4ce8392D69350B4fA4E2"),
				DisplayName: "Aave v3 Ethereum Pool",
			},
		},
		config.ChainArbitrum: {
			{
				Address:     common.HexToAddress("0x794a61358D6845594F94dc1DB02A252b5b4814aD"),
				DisplayName: "Aave v3 Arbitrum Pool",
			},
		},
		config.ChainOptimism: {
			{
				Address:     common.HexToAddress("0x794a61358D6845594F94dc1DB02A252b5b4814aD"),
				DisplayName: "Aave v3 Optimism Pool",
			},
		},
	}
}
