// Package events defines the event types the discovery and position
// schedulers emit into the notification router (§4.4–§4.6).
package events

import (
	"fmt"

	"github.com/lendwatch/monitor/internal/store"
)

// PoolAnnouncement fires when a pool row is newly created or reactivated.
type PoolAnnouncement struct {
	Pool store.PoolCacheEntry
}

// ProtocolLaunchOnChain fires the first time ever an active pool on a
// given chain is observed. Constructors refuse to build without a chain
// id, per the Design Notes' "every pool event carries its true chain id"
// rule.
type ProtocolLaunchOnChain struct {
	Chain uint64
}

// NewProtocolLaunchOnChain validates chain before constructing the event.
func NewProtocolLaunchOnChain(chain uint64) (ProtocolLaunchOnChain, error) {
	if chain == 0 {
		return ProtocolLaunchOnChain{}, fmt.Errorf("protocol launch event requires a non-zero chain id")
	}
	return ProtocolLaunchOnChain{Chain: chain}, nil
}

// DepositObserved fires alongside every freshly-created position; the
// router delivers it only for signed alerts of the position's owner that
// match the pool (§4.7, supplemented feature).
type DepositObserved struct {
	Position store.Position
	Pool     store.PoolCacheEntry
}

// APYChange fires when a position's current_supply_apy has moved by at
// least the minor threshold since the value last recorded on the row.
type APYChange struct {
	Position store.Position
	Old      float64
	New      float64
	Major    bool
}

// PositionClosed fires once when a previously active position is no
// longer observed with a non-dust balance.
type PositionClosed struct {
	Position store.Position
}
