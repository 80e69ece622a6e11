package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mem is an in-memory Store used by scheduler and router unit tests; it is
// never wired into the production engine.
type Mem struct {
	mu sync.Mutex

	nextUserID  int64
	nextAlertID int64
	nextPoolID  int64
	nextPosID   int64

	usersByChannel map[string]*User
	alerts         map[int64]*Alert
	pools          map[PoolKey]*PoolCacheEntry
	samples        []APYSample
	positions      map[int64]*Position
	ledger         []NotificationRecord
}

// NewMem constructs an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		usersByChannel: make(map[string]*User),
		alerts:         make(map[int64]*Alert),
		pools:          make(map[PoolKey]*PoolCacheEntry),
		positions:      make(map[int64]*Position),
	}
}

func (m *Mem) Close() {}

func (m *Mem) UpsertUser(_ context.Context, channelID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.usersByChannel[channelID]; ok {
		return *u, nil
	}
	m.nextUserID++
	u := &User{ID: m.nextUserID, ChannelID: channelID, CreatedAt: time.Now()}
	m.usersByChannel[channelID] = u
	return *u, nil
}

func (m *Mem) SetWallet(_ context.Context, channelID, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByChannel[channelID]
	if !ok {
		return fmt.Errorf("user %q not found", channelID)
	}
	u.Wallet = address
	return nil
}

func (m *Mem) GetUser(_ context.Context, channelID string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByChannel[channelID]
	if !ok {
		return User{}, fmt.Errorf("user %q not found", channelID)
	}
	return *u, nil
}

func (m *Mem) GetUserByID(_ context.Context, userID int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usersByChannel {
		if u.ID == userID {
			return *u, nil
		}
	}
	return User{}, fmt.Errorf("user %d not found", userID)
}

func (m *Mem) UsersWithWallet(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for _, u := range m.usersByChannel {
		if u.Wallet != "" {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *Mem) GetAllUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.usersByChannel))
	for _, u := range m.usersByChannel {
		out = append(out, *u)
	}
	return out, nil
}

func (m *Mem) CreateAlert(_ context.Context, a Alert) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAlertID++
	a.ID = m.nextAlertID
	a.Active = true
	a.CreatedAt = time.Now()
	m.alerts[a.ID] = &a
	return a, nil
}

func (m *Mem) SignAlert(_ context.Context, alertID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %d not found", alertID)
	}
	a.Signed = true
	return nil
}

func (m *Mem) PauseAlert(_ context.Context, alertID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %d not found", alertID)
	}
	a.Active = false
	return nil
}

func (m *Mem) DeleteAlert(_ context.Context, alertID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.alerts, alertID)
	return nil
}

func (m *Mem) GetActiveAlerts(_ context.Context) ([]AlertWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []AlertWithUser
	for _, a := range m.alerts {
		if !a.Qualifies(now) {
			continue
		}
		var user User
		for _, u := range m.usersByChannel {
			if u.ID == a.UserID {
				user = *u
				break
			}
		}
		out = append(out, AlertWithUser{Alert: *a, User: user})
	}
	return out, nil
}

func (m *Mem) UpsertPool(_ context.Context, pool PoolCacheEntry) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, had := m.pools[pool.Key]
	now := time.Now()
	pool.LastSeenAt = now
	pool.LastUpdatedAt = now

	if !had {
		m.nextPoolID++
		pool.ID = m.nextPoolID
		pool.FirstSeenAt = now
		pool.Active = true
		stored := pool
		m.pools[pool.Key] = &stored
		return UpsertResult{Outcome: OutcomeNew}, nil
	}

	prevCopy := *existing
	wasInactive := !existing.Active

	pool.ID = existing.ID
	pool.FirstSeenAt = existing.FirstSeenAt
	pool.Active = true
	stored := pool
	m.pools[pool.Key] = &stored

	if wasInactive {
		return UpsertResult{Outcome: OutcomeReactivated, Previous: &prevCopy}, nil
	}
	if prevCopy.APY != pool.APY {
		return UpsertResult{Outcome: OutcomeAPYChanged, Previous: &prevCopy}, nil
	}
	return UpsertResult{Outcome: OutcomeUnchanged, Previous: &prevCopy}, nil
}

func (m *Mem) MarkPoolsInactive(_ context.Context, observed map[PoolKey]struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, entry := range m.pools {
		if _, ok := observed[key]; !ok {
			entry.Active = false
		}
	}
	return nil
}

func (m *Mem) GetActivePools(_ context.Context) ([]PoolCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PoolCacheEntry
	for _, p := range m.pools {
		if p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Mem) GetPool(_ context.Context, key PoolKey) (PoolCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[key]
	if !ok {
		return PoolCacheEntry{}, fmt.Errorf("pool %s/%d not found", key.Address, key.Chain)
	}
	return *p, nil
}

func (m *Mem) InsertAPYSample(_ context.Context, s APYSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
	return nil
}

func (m *Mem) PruneAPYSamples(_ context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.samples[:0]
	var pruned int64
	for _, s := range m.samples {
		if s.RecordedAt.Before(olderThan) {
			pruned++
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return pruned, nil
}

func (m *Mem) UpsertPosition(_ context.Context, pos Position) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.positions {
		if existing.UserID != pos.UserID || existing.Key != pos.Key {
			continue
		}
		pos.ID = existing.ID
		pos.CreatedAt = existing.CreatedAt
		pos.InitialSupplyAPY = existing.InitialSupplyAPY
		pos.Active = true
		pos.LastUpdatedAt = time.Now()
		pos.LastAPYCheck = pos.LastUpdatedAt
		stored := pos
		m.positions[pos.ID] = &stored
		return UpsertResult{Outcome: OutcomeAPYChanged, ID: pos.ID}, nil
	}

	m.nextPosID++
	pos.ID = m.nextPosID
	pos.CreatedAt = time.Now()
	pos.LastUpdatedAt = pos.CreatedAt
	pos.LastAPYCheck = pos.CreatedAt
	pos.Active = true
	stored := pos
	m.positions[pos.ID] = &stored
	return UpsertResult{Outcome: OutcomeNew, ID: pos.ID}, nil
}

func (m *Mem) GetActivePositionsForUser(_ context.Context, channelID string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByChannel[channelID]
	if !ok {
		return nil, nil
	}
	var out []Position
	for _, p := range m.positions {
		if p.UserID == u.ID && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Mem) GetActivePositionsForPool(_ context.Context, key PoolKey) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Position
	for _, p := range m.positions {
		if p.Key == key && p.Active {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *Mem) DeactivatePosition(_ context.Context, positionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[positionID]
	if !ok {
		return fmt.Errorf("position %d not found", positionID)
	}
	p.Active = false
	return nil
}

func (m *Mem) WasNotifiedAbout(_ context.Context, userID int64, kind NotificationKind, subject string, within time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-within)
	for _, rec := range m.ledger {
		if rec.UserID == userID && rec.Kind == kind && rec.Subject == subject &&
			rec.Delivered && rec.OccurredAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mem) RecordNotification(_ context.Context, rec NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}
	m.ledger = append(m.ledger, rec)
	return nil
}

func (m *Mem) HasAnyPoolAnnouncementForChain(_ context.Context, chainID uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subject := fmt.Sprintf("chain:%d", chainID)
	for _, rec := range m.ledger {
		if rec.Kind == KindPoolAnnouncement && rec.Subject == subject {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mem) MarkChannelUnreachable(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByChannel[channelID]
	if !ok {
		return fmt.Errorf("user %q not found", channelID)
	}
	u.Unreachable = true
	return nil
}

func (m *Mem) IsChannelUnreachable(_ context.Context, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.usersByChannel[channelID]
	if !ok {
		return false, nil
	}
	return u.Unreachable, nil
}

var _ Store = (*Mem)(nil)
