// Package chain implements the uniform, per-chain EVM read layer (§4.1):
// share balances, asset conversion, pool metadata, and a block-number
// health probe, with retry/backoff and a lazily-constructed per-chain
// client cache. Grounded on the pack's crypto-alert Aave v3 client, which
// uses the same ethclient + accounts/abi + CallContract pattern.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/config"
	"github.com/lendwatch/monitor/internal/errs"
)

// ray is the Aave/Compound-style fixed-point base (1e27) that supply_rate
// is denominated in.
var ray = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

// PoolMetadata is the normalized result of read_pool_metadata.
type PoolMetadata struct {
	Underlying  common.Address
	Decimals    uint8
	TotalAssets *big.Int
	SupplyAPY   float64 // percent, rounded to 2 decimals
}

// Clients is the lazily-populated, process-lifetime per-chain ethclient
// cache. Each chain's client is dialled at most once under its own
// sync.Once; a mutex guards the shared client and error maps.
type Clients struct {
	endpoints map[config.ChainID]string
	log       *zap.Logger

	mu      sync.Mutex
	once    map[config.ChainID]*sync.Once
	clients map[config.ChainID]*ethclient.Client
	errs    map[config.ChainID]error

	poolABI  abi.ABI
	erc20ABI abi.ABI
}

// New builds a chain-access layer over the resolved RPC endpoints.
func New(endpoints map[config.ChainID]config.RPCEndpoint, log *zap.Logger) (*Clients, error) {
	poolABI, err := abi.JSON(strings.NewReader(erc4626ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}

	urls := make(map[config.ChainID]string, len(endpoints))
	onces := make(map[config.ChainID]*sync.Once, len(endpoints))
	for chain, ep := range endpoints {
		urls[chain] = ep.URL
		onces[chain] = &sync.Once{}
	}

	return &Clients{
		endpoints: urls,
		log:       log,
		once:      onces,
		clients:   make(map[config.ChainID]*ethclient.Client),
		errs:      make(map[config.ChainID]error),
		poolABI:   poolABI,
		erc20ABI:  erc20ABI,
	}, nil
}

func (c *Clients) clientFor(chain config.ChainID) (*ethclient.Client, error) {
	c.mu.Lock()
	once, ok := c.once[chain]
	c.mu.Unlock()
	if !ok {
		return nil, errs.New(errs.KindConfigInvalid, uint64(chain), fmt.Errorf("no endpoint configured for chain %d", chain))
	}

	once.Do(func() {
		url := c.endpoints[chain]
		cl, err := ethclient.Dial(url)
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.errs[chain] = errs.New(errs.KindRpcPermanent, uint64(chain), fmt.Errorf("dial %s: %w", url, err))
			return
		}
		c.clients[chain] = cl
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.errs[chain]; err != nil {
		return nil, err
	}
	return c.clients[chain], nil
}

// Close releases every constructed client.
func (c *Clients) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cl := range c.clients {
		cl.Close()
	}
}

// BlockNumber is the health probe operation.
func (c *Clients) BlockNumber(ctx context.Context, chain config.ChainID) (uint64, error) {
	var out uint64
	err := withRetry(ctx, chain, func(ctx context.Context) error {
		cl, err := c.clientFor(chain)
		if err != nil {
			return err
		}
		n, err := cl.BlockNumber(ctx)
		if err != nil {
			return errs.New(errs.KindRpcTransient, uint64(chain), err)
		}
		out = n
		return nil
	})
	return out, err
}

// ReadShareBalance reads an ERC-4626-like vault's share balance for holder.
func (c *Clients) ReadShareBalance(ctx context.Context, chain config.ChainID, pool, holder common.Address) (*big.Int, error) {
	var out *big.Int
	err := withRetry(ctx, chain, func(ctx context.Context) error {
		result, err := c.call(ctx, chain, pool, c.poolABI, "balanceOf", holder)
		if err != nil {
			return err
		}
		v, ok := result[0].(*big.Int)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("balanceOf: unexpected type %T", result[0]))
		}
		out = v
		return nil
	})
	return out, err
}

// ConvertToAssets converts a share amount into underlying units via the
// vault's convertToAssets view.
func (c *Clients) ConvertToAssets(ctx context.Context, chain config.ChainID, pool common.Address, shares *big.Int) (*big.Int, error) {
	safe, err := ShareAmountToUint256(shares)
	if err != nil {
		return nil, errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("convertToAssets: %w", err))
	}

	var out *big.Int
	err = withRetry(ctx, chain, func(ctx context.Context) error {
		result, err := c.call(ctx, chain, pool, c.poolABI, "convertToAssets", safe.ToBig())
		if err != nil {
			return err
		}
		v, ok := result[0].(*big.Int)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("convertToAssets: unexpected type %T", result[0]))
		}
		out = v
		return nil
	})
	return out, err
}

// ReadPoolMetadata reads the vault's underlying asset, decimals, total
// assets, and supply rate, converting the ray-denominated rate to a
// percentage APY exactly once at this boundary.
func (c *Clients) ReadPoolMetadata(ctx context.Context, chain config.ChainID, pool common.Address) (PoolMetadata, error) {
	var out PoolMetadata
	err := withRetry(ctx, chain, func(ctx context.Context) error {
		underlyingResult, err := c.call(ctx, chain, pool, c.poolABI, "asset")
		if err != nil {
			return err
		}
		underlying, ok := underlyingResult[0].(common.Address)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("asset: unexpected type %T", underlyingResult[0]))
		}

		decimalsResult, err := c.call(ctx, chain, underlying, c.erc20ABI, "decimals")
		if err != nil {
			return err
		}
		decimals, ok := decimalsResult[0].(uint8)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("decimals: unexpected type %T", decimalsResult[0]))
		}

		totalAssetsResult, err := c.call(ctx, chain, pool, c.poolABI, "totalAssets")
		if err != nil {
			return err
		}
		totalAssets, ok := totalAssetsResult[0].(*big.Int)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("totalAssets: unexpected type %T", totalAssetsResult[0]))
		}

		supplyRateResult, err := c.call(ctx, chain, pool, c.poolABI, "supplyRate")
		if err != nil {
			return err
		}
		supplyRate, ok := supplyRateResult[0].(*big.Int)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("supplyRate: unexpected type %T", supplyRateResult[0]))
		}

		out = PoolMetadata{
			Underlying:  underlying,
			Decimals:    decimals,
			TotalAssets: totalAssets,
			SupplyAPY:   rayToPercent(supplyRate),
		}
		return nil
	})
	return out, err
}

// rayToPercent converts a ray (1e27) fixed-point rate to a percentage
// rounded to 2 decimals, per spec: supply_rate * 10^4 / 10^27 / 100.
func rayToPercent(rate *big.Int) float64 {
	if rate.Sign() == 0 {
		return 0
	}
	scaled := new(big.Int).Mul(rate, big.NewInt(10000))
	quotient := new(big.Rat).SetFrac(scaled, ray)
	percent, _ := quotient.Float64()
	percent /= 100
	return roundTo2(percent)
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// ReadERC20Symbol reads an ERC-20 token's symbol(), used by the pool
// fetcher's underlying-symbol fallback (§4.2 edge cases).
func (c *Clients) ReadERC20Symbol(ctx context.Context, chain config.ChainID, token common.Address) (string, error) {
	var out string
	err := withRetry(ctx, chain, func(ctx context.Context) error {
		result, err := c.call(ctx, chain, token, c.erc20ABI, "symbol")
		if err != nil {
			return err
		}
		v, ok := result[0].(string)
		if !ok {
			return errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("symbol: unexpected type %T", result[0]))
		}
		out = v
		return nil
	})
	return out, err
}

// ShareAmountToUint256 validates that v fits the EVM's native 256-bit
// word before it is packed as convertToAssets calldata; a share amount
// that overflows uint256 can only be corrupt upstream state.
func ShareAmountToUint256(v *big.Int) (*uint256.Int, error) {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("value overflows uint256: %s", v.String())
	}
	return u, nil
}

func (c *Clients) call(ctx context.Context, chain config.ChainID, target common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	cl, err := c.clientFor(chain)
	if err != nil {
		return nil, err
	}

	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("method %q not found in abi", method))
	}

	packed, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("pack %s: %w", method, err))
	}
	input := append(append([]byte{}, m.ID...), packed...)

	msg := ethereum.CallMsg{To: &target, Data: input}
	raw, err := cl.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, errs.New(errs.KindRpcTransient, uint64(chain), fmt.Errorf("call %s: %w", method, err))
	}

	unpacked, err := m.Outputs.UnpackValues(raw)
	if err != nil {
		return nil, errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("unpack %s: %w", method, err))
	}
	if len(unpacked) == 0 {
		return nil, errs.New(errs.KindContractDecode, uint64(chain), fmt.Errorf("%s returned no values", method))
	}
	return unpacked, nil
}
