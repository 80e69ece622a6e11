package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lendwatch/monitor/internal/errs"
)

// Postgres implements Store on top of a pgx connection pool, grounded on
// the pack's defi-yield-aggregator internal/repository/postgres package
// (connection-pool setup, query tracer, ON CONFLICT upserts).
type Postgres struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Open creates the pool, verifies connectivity, and applies the schema.
func Open(ctx context.Context, dsn string, log *zap.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.New(errs.KindStoreFatal, 0, fmt.Errorf("parse dsn: %w", err))
	}
	poolConfig.ConnConfig.Tracer = &queryTracer{log: log}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errs.New(errs.KindStoreFatal, 0, fmt.Errorf("create pool: %w", err))
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, errs.New(errs.KindStoreFatal, 0, fmt.Errorf("ping: %w", err))
	}

	p := &Postgres{pool: pool, log: log}
	if err := p.migrate(ctx); err != nil {
		return nil, errs.New(errs.KindStoreFatal, 0, fmt.Errorf("migrate: %w", err))
	}
	return p, nil
}

func (p *Postgres) Close() { p.pool.Close() }

type queryTracer struct{ log *zap.Logger }

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	t.log.Debug("executing query", zap.String("sql", data.SQL))
	return ctx
}

func (t *queryTracer) TraceQueryEnd(_ context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err != nil {
		t.log.Warn("query failed", zap.Error(data.Err))
	}
}

// isUniqueViolation classifies a pgx error as a StoreConflict (§7: "unique
// index race ... treated as row-already-exists and is not an error").
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// ---------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	channel_id TEXT NOT NULL UNIQUE,
	wallet TEXT NOT NULL DEFAULT '',
	unreachable BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS alerts (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	asset TEXT NOT NULL,
	min_apy DOUBLE PRECISION NOT NULL,
	risk TEXT NOT NULL DEFAULT 'Medium',
	max_notional DOUBLE PRECISION NOT NULL DEFAULT 0,
	signed BOOLEAN NOT NULL DEFAULT FALSE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_cache (
	id BIGSERIAL PRIMARY KEY,
	address TEXT NOT NULL,
	chain BIGINT NOT NULL,
	name TEXT NOT NULL,
	symbol TEXT NOT NULL,
	underlying_symbol TEXT NOT NULL,
	underlying_address TEXT NOT NULL,
	decimals SMALLINT NOT NULL,
	tvl NUMERIC NOT NULL DEFAULT 0,
	apy DOUBLE PRECISION NOT NULL DEFAULT 0,
	borrowed NUMERIC NOT NULL DEFAULT 0,
	utilization DOUBLE PRECISION NOT NULL DEFAULT 0,
	collaterals TEXT[] NOT NULL DEFAULT '{}',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	first_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (address, chain)
);

CREATE TABLE IF NOT EXISTS apy_samples (
	address TEXT NOT NULL,
	chain BIGINT NOT NULL,
	supply_apy DOUBLE PRECISION NOT NULL,
	borrow_apy DOUBLE PRECISION NOT NULL,
	tvl NUMERIC NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_apy_samples_pool_time ON apy_samples (address, chain, recorded_at);

CREATE TABLE IF NOT EXISTS positions (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	address TEXT NOT NULL,
	chain BIGINT NOT NULL,
	shares NUMERIC NOT NULL,
	underlying_value NUMERIC NOT NULL,
	initial_supply_apy DOUBLE PRECISION NOT NULL,
	current_supply_apy DOUBLE PRECISION NOT NULL,
	net_apy DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_apy_check TIMESTAMPTZ NOT NULL DEFAULT now(),
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, address, chain)
);

CREATE TABLE IF NOT EXISTS notification_ledger (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	subject TEXT NOT NULL,
	payload TEXT NOT NULL DEFAULT '',
	delivered BOOLEAN NOT NULL DEFAULT FALSE,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_ledger_cooldown ON notification_ledger (user_id, kind, subject, occurred_at);
`

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	return err
}

// ---------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------

func (p *Postgres) UpsertUser(ctx context.Context, channelID string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (channel_id) VALUES ($1)
		ON CONFLICT (channel_id) DO UPDATE SET channel_id = EXCLUDED.channel_id
		RETURNING id, channel_id, wallet, unreachable, created_at
	`, channelID).Scan(&u.ID, &u.ChannelID, &u.Wallet, &u.Unreachable, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (p *Postgres) SetWallet(ctx context.Context, channelID, address string) error {
	_, err := p.pool.Exec(ctx, `UPDATE users SET wallet = $1 WHERE channel_id = $2`, address, channelID)
	if err != nil {
		return fmt.Errorf("set wallet: %w", err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, channelID string) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx, `
		SELECT id, channel_id, wallet, unreachable, created_at FROM users WHERE channel_id = $1
	`, channelID).Scan(&u.ID, &u.ChannelID, &u.Wallet, &u.Unreachable, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (p *Postgres) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var u User
	err := p.pool.QueryRow(ctx, `
		SELECT id, channel_id, wallet, unreachable, created_at FROM users WHERE id = $1
	`, userID).Scan(&u.ID, &u.ChannelID, &u.Wallet, &u.Unreachable, &u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

func (p *Postgres) UsersWithWallet(ctx context.Context) ([]User, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, channel_id, wallet, unreachable, created_at FROM users WHERE wallet <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("users with wallet: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ChannelID, &u.Wallet, &u.Unreachable, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (p *Postgres) GetAllUsers(ctx context.Context) ([]User, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, channel_id, wallet, unreachable, created_at FROM users
	`)
	if err != nil {
		return nil, fmt.Errorf("get all users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ChannelID, &u.Wallet, &u.Unreachable, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------
// Alerts
// ---------------------------------------------------------------------

func (p *Postgres) CreateAlert(ctx context.Context, a Alert) (Alert, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO alerts (user_id, asset, min_apy, risk, max_notional, signed, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		RETURNING id, active, created_at
	`, a.UserID, a.Asset, a.MinAPY, a.Risk, a.MaxNotional, a.Signed, a.ExpiresAt).
		Scan(&a.ID, &a.Active, &a.CreatedAt)
	if err != nil {
		return Alert{}, fmt.Errorf("create alert: %w", err)
	}
	return a, nil
}

func (p *Postgres) SignAlert(ctx context.Context, alertID int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE alerts SET signed = TRUE WHERE id = $1`, alertID)
	return err
}

func (p *Postgres) PauseAlert(ctx context.Context, alertID int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE alerts SET active = FALSE WHERE id = $1`, alertID)
	return err
}

func (p *Postgres) DeleteAlert(ctx context.Context, alertID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM alerts WHERE id = $1`, alertID)
	return err
}

func (p *Postgres) GetActiveAlerts(ctx context.Context) ([]AlertWithUser, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT a.id, a.user_id, a.asset, a.min_apy, a.risk, a.max_notional, a.signed, a.active,
		       a.created_at, a.expires_at,
		       u.id, u.channel_id, u.wallet, u.unreachable, u.created_at
		FROM alerts a
		JOIN users u ON u.id = a.user_id
		WHERE a.signed = TRUE AND a.active = TRUE AND a.expires_at > now()
	`)
	if err != nil {
		return nil, fmt.Errorf("get active alerts: %w", err)
	}
	defer rows.Close()

	var out []AlertWithUser
	for rows.Next() {
		var aw AlertWithUser
		if err := rows.Scan(
			&aw.ID, &aw.UserID, &aw.Asset, &aw.MinAPY, &aw.Risk, &aw.MaxNotional, &aw.Signed, &aw.Active,
			&aw.CreatedAt, &aw.ExpiresAt,
			&aw.User.ID, &aw.User.ChannelID, &aw.User.Wallet, &aw.User.Unreachable, &aw.User.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, aw)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------
// Pool cache
// ---------------------------------------------------------------------

func (p *Postgres) UpsertPool(ctx context.Context, pool PoolCacheEntry) (UpsertResult, error) {
	var prev PoolCacheEntry
	var hadPrev bool
	err := p.pool.QueryRow(ctx, `
		SELECT apy, active FROM pool_cache WHERE address = $1 AND chain = $2
	`, pool.Key.Address, pool.Key.Chain).Scan(&prev.APY, &prev.Active)
	switch {
	case err == nil:
		hadPrev = true
	case errors.Is(err, pgx.ErrNoRows):
		hadPrev = false
	default:
		return UpsertResult{}, fmt.Errorf("lookup prior pool: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO pool_cache (
			address, chain, name, symbol, underlying_symbol, underlying_address, decimals,
			tvl, apy, borrowed, utilization, collaterals, active, last_seen_at, last_updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,TRUE,now(),now())
		ON CONFLICT (address, chain) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			underlying_symbol = EXCLUDED.underlying_symbol,
			underlying_address = EXCLUDED.underlying_address,
			decimals = EXCLUDED.decimals,
			tvl = EXCLUDED.tvl,
			apy = EXCLUDED.apy,
			borrowed = EXCLUDED.borrowed,
			utilization = EXCLUDED.utilization,
			collaterals = EXCLUDED.collaterals,
			active = TRUE,
			last_seen_at = now(),
			last_updated_at = now()
	`, pool.Key.Address, pool.Key.Chain, pool.Name, pool.Symbol, pool.UnderlyingSymbol,
		pool.UnderlyingAddress, pool.Decimals, pool.TVL, pool.APY, pool.Borrowed,
		pool.Utilization, pool.Collaterals)
	if err != nil {
		if isUniqueViolation(err) {
			return UpsertResult{Outcome: OutcomeUnchanged}, nil
		}
		return UpsertResult{}, fmt.Errorf("upsert pool: %w", err)
	}

	if !hadPrev {
		return UpsertResult{Outcome: OutcomeNew}, nil
	}
	if !prev.Active {
		return UpsertResult{Outcome: OutcomeReactivated, Previous: &prev}, nil
	}
	if prev.APY != pool.APY {
		return UpsertResult{Outcome: OutcomeAPYChanged, Previous: &prev}, nil
	}
	return UpsertResult{Outcome: OutcomeUnchanged, Previous: &prev}, nil
}

func (p *Postgres) MarkPoolsInactive(ctx context.Context, observed map[PoolKey]struct{}) error {
	if len(observed) == 0 {
		return nil
	}
	addrs := make([]string, 0, len(observed))
	chains := make([]int64, 0, len(observed))
	for k := range observed {
		addrs = append(addrs, k.Address)
		chains = append(chains, int64(k.Chain))
	}
	_, err := p.pool.Exec(ctx, `
		UPDATE pool_cache pc SET active = FALSE
		WHERE pc.active = TRUE
		  AND NOT EXISTS (
		      SELECT 1 FROM unnest($1::text[], $2::bigint[]) AS o(address, chain)
		      WHERE o.address = pc.address AND o.chain = pc.chain
		  )
	`, addrs, chains)
	if err != nil {
		return fmt.Errorf("mark pools inactive: %w", err)
	}
	return nil
}

func (p *Postgres) GetActivePools(ctx context.Context) ([]PoolCacheEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, address, chain, name, symbol, underlying_symbol, underlying_address, decimals,
		       tvl, apy, borrowed, utilization, collaterals, active, first_seen_at, last_seen_at, last_updated_at
		FROM pool_cache WHERE active = TRUE
	`)
	if err != nil {
		return nil, fmt.Errorf("get active pools: %w", err)
	}
	defer rows.Close()

	var out []PoolCacheEntry
	for rows.Next() {
		var e PoolCacheEntry
		if err := rows.Scan(&e.ID, &e.Key.Address, &e.Key.Chain, &e.Name, &e.Symbol, &e.UnderlyingSymbol,
			&e.UnderlyingAddress, &e.Decimals, &e.TVL, &e.APY, &e.Borrowed, &e.Utilization,
			&e.Collaterals, &e.Active, &e.FirstSeenAt, &e.LastSeenAt, &e.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) GetPool(ctx context.Context, key PoolKey) (PoolCacheEntry, error) {
	var e PoolCacheEntry
	err := p.pool.QueryRow(ctx, `
		SELECT id, address, chain, name, symbol, underlying_symbol, underlying_address, decimals,
		       tvl, apy, borrowed, utilization, collaterals, active, first_seen_at, last_seen_at, last_updated_at
		FROM pool_cache WHERE address = $1 AND chain = $2
	`, key.Address, key.Chain).Scan(&e.ID, &e.Key.Address, &e.Key.Chain, &e.Name, &e.Symbol, &e.UnderlyingSymbol,
		&e.UnderlyingAddress, &e.Decimals, &e.TVL, &e.APY, &e.Borrowed, &e.Utilization,
		&e.Collaterals, &e.Active, &e.FirstSeenAt, &e.LastSeenAt, &e.LastUpdatedAt)
	if err != nil {
		return PoolCacheEntry{}, fmt.Errorf("get pool: %w", err)
	}
	return e, nil
}

func (p *Postgres) InsertAPYSample(ctx context.Context, s APYSample) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO apy_samples (address, chain, supply_apy, borrow_apy, tvl, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, s.Key.Address, s.Key.Chain, s.SupplyAPY, s.BorrowAPY, s.TVL, s.RecordedAt)
	if err != nil {
		return fmt.Errorf("insert apy sample: %w", err)
	}
	return nil
}

func (p *Postgres) PruneAPYSamples(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM apy_samples WHERE recorded_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune apy samples: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------

func (p *Postgres) UpsertPosition(ctx context.Context, pos Position) (UpsertResult, error) {
	var existed bool
	err := p.pool.QueryRow(ctx, `
		SELECT TRUE FROM positions WHERE user_id = $1 AND address = $2 AND chain = $3
	`, pos.UserID, pos.Key.Address, pos.Key.Chain).Scan(&existed)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return UpsertResult{}, fmt.Errorf("lookup prior position: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
		INSERT INTO positions (
			user_id, address, chain, shares, underlying_value, initial_supply_apy,
			current_supply_apy, net_apy, last_apy_check, active, last_updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$6,$7,now(),TRUE,now())
		ON CONFLICT (user_id, address, chain) DO UPDATE SET
			shares = EXCLUDED.shares,
			underlying_value = EXCLUDED.underlying_value,
			current_supply_apy = EXCLUDED.current_supply_apy,
			net_apy = EXCLUDED.net_apy,
			last_apy_check = now(),
			active = TRUE,
			last_updated_at = now()
		RETURNING id
	`, pos.UserID, pos.Key.Address, pos.Key.Chain, pos.Shares, pos.UnderlyingValue,
		pos.CurrentSupplyAPY, pos.NetAPY).Scan(&id)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert position: %w", err)
	}

	if !existed {
		return UpsertResult{Outcome: OutcomeNew, ID: id}, nil
	}
	return UpsertResult{Outcome: OutcomeAPYChanged, ID: id}, nil
}

func (p *Postgres) GetActivePositionsForUser(ctx context.Context, channelID string) ([]Position, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT p.id, p.user_id, p.address, p.chain, p.shares, p.underlying_value,
		       p.initial_supply_apy, p.current_supply_apy, p.net_apy, p.last_apy_check,
		       p.active, p.created_at, p.last_updated_at
		FROM positions p
		JOIN users u ON u.id = p.user_id
		WHERE u.channel_id = $1 AND p.active = TRUE
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("get active positions for user: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func (p *Postgres) GetActivePositionsForPool(ctx context.Context, key PoolKey) ([]Position, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, address, chain, shares, underlying_value,
		       initial_supply_apy, current_supply_apy, net_apy, last_apy_check,
		       active, created_at, last_updated_at
		FROM positions WHERE address = $1 AND chain = $2 AND active = TRUE
	`, key.Address, key.Chain)
	if err != nil {
		return nil, fmt.Errorf("get active positions for pool: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]Position, error) {
	var out []Position
	for rows.Next() {
		var pos Position
		if err := rows.Scan(&pos.ID, &pos.UserID, &pos.Key.Address, &pos.Key.Chain, &pos.Shares,
			&pos.UnderlyingValue, &pos.InitialSupplyAPY, &pos.CurrentSupplyAPY, &pos.NetAPY,
			&pos.LastAPYCheck, &pos.Active, &pos.CreatedAt, &pos.LastUpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

func (p *Postgres) DeactivatePosition(ctx context.Context, positionID int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE positions SET active = FALSE, last_updated_at = now() WHERE id = $1`, positionID)
	return err
}

// ---------------------------------------------------------------------
// Notification ledger
// ---------------------------------------------------------------------

func (p *Postgres) WasNotifiedAbout(ctx context.Context, userID int64, kind NotificationKind, subject string, within time.Duration) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_ledger
			WHERE user_id = $1 AND kind = $2 AND subject = $3 AND delivered = TRUE
			  AND occurred_at > now() - make_interval(secs => $4)
		)
	`, userID, kind, subject, within.Seconds()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("was notified about: %w", err)
	}
	return exists, nil
}

func (p *Postgres) RecordNotification(ctx context.Context, rec NotificationRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO notification_ledger (user_id, kind, subject, payload, delivered, occurred_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, rec.UserID, rec.Kind, rec.Subject, rec.Payload, rec.Delivered)
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

func (p *Postgres) HasAnyPoolAnnouncementForChain(ctx context.Context, chainID uint64) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notification_ledger
			WHERE kind = $1 AND subject = $2
		)
	`, KindPoolAnnouncement, fmt.Sprintf("chain:%d", chainID)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has any pool announcement for chain: %w", err)
	}
	return exists, nil
}

func (p *Postgres) MarkChannelUnreachable(ctx context.Context, channelID string) error {
	_, err := p.pool.Exec(ctx, `UPDATE users SET unreachable = TRUE WHERE channel_id = $1`, channelID)
	return err
}

func (p *Postgres) IsChannelUnreachable(ctx context.Context, channelID string) (bool, error) {
	var unreachable bool
	err := p.pool.QueryRow(ctx, `SELECT unreachable FROM users WHERE channel_id = $1`, channelID).Scan(&unreachable)
	if err != nil {
		return false, fmt.Errorf("is channel unreachable: %w", err)
	}
	return unreachable, nil
}

var _ Store = (*Postgres)(nil)
