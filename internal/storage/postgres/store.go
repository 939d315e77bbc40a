package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sushiBar/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS vault_state (
	name             TEXT PRIMARY KEY,
	vault            TEXT NOT NULL,
	token            TEXT NOT NULL,
	share_token      TEXT NOT NULL,
	reward_pool      TEXT NOT NULL,
	total_shares     NUMERIC(78,0) NOT NULL,
	total_underlying NUMERIC(78,0) NOT NULL,
	clock_offset     BIGINT NOT NULL DEFAULT 0,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS vault_positions (
	name          TEXT NOT NULL REFERENCES vault_state(name) ON DELETE CASCADE,
	owner         TEXT NOT NULL,
	shares        NUMERIC(78,0) NOT NULL,
	last_stake_ts BIGINT NOT NULL,
	PRIMARY KEY (name, owner)
);
CREATE TABLE IF NOT EXISTS token_balances (
	name    TEXT NOT NULL REFERENCES vault_state(name) ON DELETE CASCADE,
	kind    TEXT NOT NULL,
	account TEXT NOT NULL,
	amount  NUMERIC(78,0) NOT NULL,
	PRIMARY KEY (name, kind, account)
);
CREATE TABLE IF NOT EXISTS token_allowances (
	name    TEXT NOT NULL REFERENCES vault_state(name) ON DELETE CASCADE,
	owner   TEXT NOT NULL,
	spender TEXT NOT NULL,
	amount  NUMERIC(78,0) NOT NULL,
	PRIMARY KEY (name, owner, spender)
);
`

const (
	kindUnderlying = "underlying"
	kindShare      = "share"
)

// Store provides Postgres persistence for vault snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the snapshot tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the snapshot stored under name in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, name string, snap model.Snapshot) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	pool := snap.Vault.Pool
	_, err = tx.Exec(ctx, `
		INSERT INTO vault_state (
			name, vault, token, share_token, reward_pool, total_shares, total_underlying, clock_offset, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8, now())
		ON CONFLICT (name) DO UPDATE SET
			vault = EXCLUDED.vault,
			token = EXCLUDED.token,
			share_token = EXCLUDED.share_token,
			reward_pool = EXCLUDED.reward_pool,
			total_shares = EXCLUDED.total_shares,
			total_underlying = EXCLUDED.total_underlying,
			clock_offset = EXCLUDED.clock_offset,
			updated_at = now()
	`,
		name,
		pool.Vault,
		pool.Token,
		snap.Token.ShareToken,
		pool.RewardPool,
		pool.TotalShares,
		pool.TotalUnderlying,
		int64(snap.ClockOffset),
	)
	if err != nil {
		return fmt.Errorf("upsert vault state: %w", err)
	}

	for _, table := range []string{"vault_positions", "token_balances", "token_allowances"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE name=$1`, name); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	batch := &pgx.Batch{}
	for _, p := range snap.Vault.Positions {
		batch.Queue(`
			INSERT INTO vault_positions (name, owner, shares, last_stake_ts)
			VALUES ($1, $2, $3::text::numeric, $4)
		`, name, p.Owner, p.Shares, int64(p.LastStakeTS))
	}
	queueBalances(batch, name, kindUnderlying, snap.Token.Balances)
	queueBalances(batch, name, kindShare, snap.Token.ShareBalances)
	for _, a := range snap.Token.Allowances {
		batch.Queue(`
			INSERT INTO token_allowances (name, owner, spender, amount)
			VALUES ($1, $2, $3, $4::text::numeric)
		`, name, a.Owner, a.Spender, a.Amount)
	}

	if batch.Len() > 0 {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert snapshot rows: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func queueBalances(batch *pgx.Batch, name, kind string, balances []model.Balance) {
	for _, b := range balances {
		batch.Queue(`
			INSERT INTO token_balances (name, kind, account, amount)
			VALUES ($1, $2, $3, $4::text::numeric)
		`, name, kind, b.Account, b.Amount)
	}
}

// LoadSnapshot returns the snapshot stored under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (model.Snapshot, bool, error) {
	if name == "" {
		return model.Snapshot{}, false, fmt.Errorf("state name required")
	}

	var (
		snap      model.Snapshot
		offset    int64
		updatedAt time.Time
	)
	row := s.pool.QueryRow(ctx, `
		SELECT vault, token, share_token, reward_pool, total_shares::text, total_underlying::text, clock_offset, updated_at
		FROM vault_state WHERE name=$1
	`, name)
	err := row.Scan(
		&snap.Vault.Pool.Vault,
		&snap.Vault.Pool.Token,
		&snap.Token.ShareToken,
		&snap.Vault.Pool.RewardPool,
		&snap.Vault.Pool.TotalShares,
		&snap.Vault.Pool.TotalUnderlying,
		&offset,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("load vault state: %w", err)
	}
	snap.Token.Token = snap.Vault.Pool.Token
	snap.ClockOffset = uint64(offset)
	snap.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)

	rows, _ := s.pool.Query(ctx, `
		SELECT owner, shares::text, last_stake_ts FROM vault_positions WHERE name=$1 ORDER BY owner
	`, name)
	snap.Vault.Positions, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Position, error) {
		var (
			p  model.Position
			ts int64
		)
		err := row.Scan(&p.Owner, &p.Shares, &ts)
		p.LastStakeTS = uint64(ts)
		return p, err
	})
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load positions: %w", err)
	}

	if snap.Token.Balances, err = s.loadBalances(ctx, name, kindUnderlying); err != nil {
		return model.Snapshot{}, false, err
	}
	if snap.Token.ShareBalances, err = s.loadBalances(ctx, name, kindShare); err != nil {
		return model.Snapshot{}, false, err
	}

	rows, _ = s.pool.Query(ctx, `
		SELECT owner, spender, amount::text FROM token_allowances WHERE name=$1 ORDER BY owner, spender
	`, name)
	snap.Token.Allowances, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Allowance, error) {
		var a model.Allowance
		err := row.Scan(&a.Owner, &a.Spender, &a.Amount)
		return a, err
	})
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("load allowances: %w", err)
	}
	return snap, true, nil
}

func (s *Store) loadBalances(ctx context.Context, name, kind string) ([]model.Balance, error) {
	rows, _ := s.pool.Query(ctx, `
		SELECT account, amount::text FROM token_balances WHERE name=$1 AND kind=$2 ORDER BY account
	`, name, kind)
	balances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Balance, error) {
		var b model.Balance
		err := row.Scan(&b.Account, &b.Amount)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("load %s balances: %w", kind, err)
	}
	return balances, nil
}

// SnapshotStore adapts Store to a named snapshot slot.
type SnapshotStore struct {
	Store *Store
	Name  string
}

func (s *SnapshotStore) Load(ctx context.Context) (model.Snapshot, bool, error) {
	if s == nil || s.Store == nil {
		return model.Snapshot{}, false, nil
	}
	return s.Store.LoadSnapshot(ctx, s.Name)
}

func (s *SnapshotStore) Save(ctx context.Context, snap model.Snapshot) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveSnapshot(ctx, s.Name, snap)
}

func (s *SnapshotStore) Close() error {
	if s != nil && s.Store != nil {
		s.Store.Close()
	}
	return nil
}
