// Package config loads the monitor's configuration from the environment
// (with a small set of CLI overrides), following the teacher's use of
// spf13/viper + spf13/pflag for config plumbing.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lendwatch/monitor/internal/errs"
)

// ChainID is an EVM chain identifier.
type ChainID uint64

const (
	ChainEthereum ChainID = 1
	ChainArbitrum ChainID = 42161
	ChainOptimism ChainID = 10
	ChainSonic    ChainID = 146
	ChainPlasma   ChainID = 9745
	ChainMonad    ChainID = 143
)

// SupportedChains is the fixed set of chains the monitor watches, in the
// order the discovery scheduler fans out requests.
var SupportedChains = []ChainID{
	ChainEthereum, ChainArbitrum, ChainOptimism, ChainSonic, ChainPlasma, ChainMonad,
}

// defaultPublicRPC holds a documented public fallback endpoint per chain,
// used when RPC_URL_<CHAIN> is not set.
var defaultPublicRPC = map[ChainID]string{
	ChainEthereum: "https://ethereum-rpc.publicnode.com",
	ChainArbitrum: "https://arbitrum-one-rpc.publicnode.com",
	ChainOptimism: "https://optimism-rpc.publicnode.com",
	ChainSonic:    "https://rpc.soniclabs.com",
	ChainPlasma:   "https://rpc.plasma.to",
	ChainMonad:    "https://rpc.monad.xyz",
}

func chainEnvName(c ChainID) string {
	names := map[ChainID]string{
		ChainEthereum: "ETH",
		ChainArbitrum: "ARBITRUM",
		ChainOptimism: "OPTIMISM",
		ChainSonic:    "SONIC",
		ChainPlasma:   "PLASMA",
		ChainMonad:    "MONAD",
	}
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("CHAIN_%d", c)
}

// RPCEndpoint describes the resolved endpoint for one chain, and whether it
// came from an explicit environment override or the public fallback.
type RPCEndpoint struct {
	Chain    ChainID
	URL      string
	Explicit bool
}

// Config is the engine's fully resolved, typed configuration.
type Config struct {
	ChatCredential string
	StoreDSN       string

	DiscoveryInterval time.Duration
	PositionInterval  time.Duration
	RetentionCron     string
	RetentionAfter    time.Duration

	MinorAPYThreshold float64
	MajorAPYThreshold float64
	DustThreshold     float64 // raw on-chain share amounts below this are treated as zero
	AlertDefaultTTL   time.Duration

	AlertMatchCooldown   time.Duration
	APYChangeCooldown    time.Duration
	LaunchCooldown        time.Duration // effectively permanent; retained for documentation
	MetricsAddr           string
	LogLevel               string

	RPCEndpoints map[ChainID]RPCEndpoint
}

// RegisterFlags registers pflag overrides for a subset of settings; CLI
// flags take precedence over environment variables via viper's binding
// order.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("metrics-addr", ":9464", "address to serve /metrics on")
	fs.Duration("discovery-interval", 15*time.Minute, "pool discovery scan interval")
	fs.Duration("position-interval", 15*time.Minute, "position scan interval")
}

// Load builds a Config from the environment, honoring any flags already
// parsed into fs. Returns a *errs.Error{Kind: ConfigInvalid} on failure.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, errs.New(errs.KindConfigInvalid, 0, fmt.Errorf("bind flags: %w", err))
		}
	}

	v.SetDefault("log-level", "info")
	v.SetDefault("metrics-addr", ":9464")
	v.SetDefault("discovery-interval", 15*time.Minute)
	v.SetDefault("position-interval", 15*time.Minute)
	v.SetDefault("retention-cron", "0 3 * * *")
	v.SetDefault("retention-after", 30*24*time.Hour)
	v.SetDefault("minor-apy-threshold", 0.5)
	v.SetDefault("major-apy-threshold", 2.0)
	v.SetDefault("dust-threshold", 1.0)
	v.SetDefault("alert-default-ttl", 30*24*time.Hour)
	v.SetDefault("alert-match-cooldown", 24*time.Hour)
	v.SetDefault("apy-change-cooldown", 6*time.Hour)

	chatCred := v.GetString("chat_credential")
	if chatCred == "" {
		return nil, errs.New(errs.KindConfigInvalid, 0, fmt.Errorf("CHAT_CREDENTIAL is required"))
	}

	storeDSN := v.GetString("store_dsn")
	if storeDSN == "" {
		return nil, errs.New(errs.KindConfigInvalid, 0, fmt.Errorf("STORE_DSN is required"))
	}

	endpoints := make(map[ChainID]RPCEndpoint, len(SupportedChains))
	for _, c := range SupportedChains {
		envKey := "rpc_url_" + chainEnvName(c)
		if url := v.GetString(envKey); url != "" {
			endpoints[c] = RPCEndpoint{Chain: c, URL: url, Explicit: true}
			continue
		}
		fallback, ok := defaultPublicRPC[c]
		if !ok {
			return nil, errs.New(errs.KindConfigInvalid, uint64(c), fmt.Errorf("no public fallback endpoint known for chain %d, set RPC_URL_%s", c, chainEnvName(c)))
		}
		endpoints[c] = RPCEndpoint{Chain: c, URL: fallback, Explicit: false}
	}

	return &Config{
		ChatCredential:      chatCred,
		StoreDSN:            storeDSN,
		DiscoveryInterval:   v.GetDuration("discovery-interval"),
		PositionInterval:    v.GetDuration("position-interval"),
		RetentionCron:       v.GetString("retention-cron"),
		RetentionAfter:      v.GetDuration("retention-after"),
		MinorAPYThreshold:   v.GetFloat64("minor-apy-threshold"),
		MajorAPYThreshold:   v.GetFloat64("major-apy-threshold"),
		DustThreshold:       v.GetFloat64("dust-threshold"),
		AlertDefaultTTL:     v.GetDuration("alert-default-ttl"),
		AlertMatchCooldown:  v.GetDuration("alert-match-cooldown"),
		APYChangeCooldown:   v.GetDuration("apy-change-cooldown"),
		MetricsAddr:         v.GetString("metrics-addr"),
		LogLevel:            v.GetString("log-level"),
		RPCEndpoints:        endpoints,
	}, nil
}

// Dump renders the startup configuration report required by the external
// interfaces contract: which env vars are set, which chains have explicit
// endpoints.
func (c *Config) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chat credential: set\n")
	fmt.Fprintf(&b, "store dsn: set\n")
	fmt.Fprintf(&b, "discovery interval: %s\n", c.DiscoveryInterval)
	fmt.Fprintf(&b, "position interval: %s\n", c.PositionInterval)
	for _, chain := range SupportedChains {
		ep := c.RPCEndpoints[chain]
		source := "public fallback"
		if ep.Explicit {
			source = "explicit RPC_URL_" + chainEnvName(chain)
		}
		fmt.Fprintf(&b, "chain %d: %s (%s)\n", chain, ep.URL, source)
	}
	return b.String()
}
