package notify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/lendwatch/monitor/internal/store"
)

// formatAmount converts a big.Int underlying-unit amount into a human
// K/M-suffixed string, grounded on the pack's defi-yield-aggregator
// models' use of shopspring/decimal for money-safe presentation
// arithmetic. This never touches the stored integer wire type.
func formatAmount(raw string, decimals uint8, symbol string) string {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return raw + " " + symbol
	}
	scale := decimal.New(1, int32(decimals))
	value := amount.Div(scale)

	million := decimal.NewFromInt(1_000_000)
	thousand := decimal.NewFromInt(1_000)

	switch {
	case value.GreaterThanOrEqual(million):
		return fmt.Sprintf("%sM %s", value.Div(million).Round(2).String(), symbol)
	case value.GreaterThanOrEqual(thousand):
		return fmt.Sprintf("%sK %s", value.Div(thousand).Round(2).String(), symbol)
	default:
		return fmt.Sprintf("%s %s", value.Round(2).String(), symbol)
	}
}

// utilizationHealth classifies a utilization percentage into a qualifier
// word used in message formatting, per §4.6's fixed bands: <80% healthy,
// 80-95% active, >=95% constrained.
func utilizationHealth(utilization float64) string {
	switch {
	case utilization >= 95:
		return "constrained"
	case utilization >= 80:
		return "active"
	default:
		return "healthy"
	}
}

// formatAlertMatch renders a PoolAnnouncement → alert_match message.
func formatAlertMatch(pool store.PoolCacheEntry) (string, []Action) {
	msg := fmt.Sprintf(
		"Alert match: %s on chain %d now offers %.2f%% APY (TVL %s, %s utilization).",
		pool.Name, pool.Key.Chain, pool.APY,
		formatAmount(pool.TVL, pool.Decimals, pool.UnderlyingSymbol),
		utilizationHealth(pool.Utilization),
	)
	return msg, []Action{{Label: "view_pool", Target: fmt.Sprintf("pool:%s:%d", pool.Key.Address, pool.Key.Chain)}}
}

// formatProtocolLaunch renders a ProtocolLaunchOnChain → pool_announcement
// broadcast message.
func formatProtocolLaunch(chainID uint64) string {
	return fmt.Sprintf("New lending activity detected on chain %d for the first time.", chainID)
}

// formatAPYChange renders an APYChange → apy_change message, identifying
// the position's pool by name and chain per the §4.6 message contract.
func formatAPYChange(poolName string, chain uint64, oldAPY, newAPY float64, major bool) string {
	severity := "APY moved"
	if major {
		severity = "APY moved significantly"
	}
	return fmt.Sprintf(
		"%s on your position (pool %s, chain %d): %.2f%% → %.2f%%.",
		severity, poolName, chain, oldAPY, newAPY,
	)
}

// formatPositionClosed renders a PositionClosed → position_closed message.
func formatPositionClosed(pos store.Position) string {
	return fmt.Sprintf(
		"Your position on pool %s (chain %d) is now closed.",
		pos.Key.Address, pos.Key.Chain,
	)
}
