package store

import (
	"context"
	"time"
)

// Store is the persistence contract every scheduler and the notification
// router use; no component reaches into storage directly (§5 shared-resource
// policy).
type Store interface {
	UpsertUser(ctx context.Context, channelID string) (User, error)
	SetWallet(ctx context.Context, channelID, address string) error
	GetUser(ctx context.Context, channelID string) (User, error)
	GetUserByID(ctx context.Context, userID int64) (User, error)
	UsersWithWallet(ctx context.Context) ([]User, error)
	GetAllUsers(ctx context.Context) ([]User, error)

	CreateAlert(ctx context.Context, alert Alert) (Alert, error)
	SignAlert(ctx context.Context, alertID int64) error
	PauseAlert(ctx context.Context, alertID int64) error
	DeleteAlert(ctx context.Context, alertID int64) error
	GetActiveAlerts(ctx context.Context) ([]AlertWithUser, error)

	UpsertPool(ctx context.Context, pool PoolCacheEntry) (UpsertResult, error)
	MarkPoolsInactive(ctx context.Context, observed map[PoolKey]struct{}) error
	GetActivePools(ctx context.Context) ([]PoolCacheEntry, error)
	GetPool(ctx context.Context, key PoolKey) (PoolCacheEntry, error)
	InsertAPYSample(ctx context.Context, sample APYSample) error
	PruneAPYSamples(ctx context.Context, olderThan time.Time) (int64, error)

	UpsertPosition(ctx context.Context, pos Position) (UpsertResult, error)
	GetActivePositionsForUser(ctx context.Context, channelID string) ([]Position, error)
	GetActivePositionsForPool(ctx context.Context, key PoolKey) ([]Position, error)
	DeactivatePosition(ctx context.Context, positionID int64) error

	WasNotifiedAbout(ctx context.Context, userID int64, kind NotificationKind, subject string, within time.Duration) (bool, error)
	RecordNotification(ctx context.Context, record NotificationRecord) error
	HasAnyPoolAnnouncementForChain(ctx context.Context, chainID uint64) (bool, error)

	MarkChannelUnreachable(ctx context.Context, channelID string) error
	IsChannelUnreachable(ctx context.Context, channelID string) (bool, error)

	Close()
}
