package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-vault-ledger/internal/domain"
	"solana-vault-ledger/internal/observability"
	"solana-vault-ledger/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
// uint64 counters live in NUMERIC(20, 0) columns and cross the wire as text.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

const vaultColumns = `
	key, idx::text, underlying_mint, underlying_decimals, shares_mint, token_account, accountant,
	total_idle::text, total_debt::text, total_shares::text,
	deposit_limit::text, min_user_deposit::text, minimum_total_idle::text,
	is_shutdown, kyc_verified_only, whitelisted_only, direct_deposit_enabled,
	next_strategy_index::text, created_at, updated_at`

const strategyColumns = `
	key, vault, idx::text, config, token_account,
	current_debt::text, max_debt::text, last_update, is_active`

const positionColumns = `vault, owner, deposited::text, whitelisted, updated_at`

// GetVault retrieves a vault by key. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetVault(ctx context.Context, vaultKey string) (_ *domain.Vault, err error) {
	defer observe("get_vault", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE key = $1`, vaultKey)
	v, err := scanVault(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get vault: %w", err)
	}
	return v, nil
}

// ListVaults retrieves all vaults ordered by key.
func (s *LedgerStore) ListVaults(ctx context.Context) (_ []*domain.Vault, err error) {
	defer observe("list_vaults", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT `+vaultColumns+` FROM vaults ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", err)
	}
	defer rows.Close()

	var out []*domain.Vault
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// GetStrategies retrieves the strategy records of a vault ordered by index.
func (s *LedgerStore) GetStrategies(ctx context.Context, vaultKey string) (_ []*domain.StrategyDebtRecord, err error) {
	defer observe("get_strategies", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT `+strategyColumns+`
		FROM strategies
		WHERE vault = $1
		ORDER BY idx ASC, key ASC
	`, vaultKey)
	if err != nil {
		return nil, fmt.Errorf("query strategies: %w", err)
	}
	defer rows.Close()

	var out []*domain.StrategyDebtRecord
	for rows.Next() {
		r, err := scanStrategy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan strategy: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetPosition retrieves a user position. Returns ErrNotFound if not exists.
func (s *LedgerStore) GetPosition(ctx context.Context, vaultKey, owner string) (_ *domain.UserPosition, err error) {
	defer observe("get_position", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `
		SELECT `+positionColumns+` FROM positions WHERE vault = $1 AND owner = $2
	`, vaultKey, owner)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// ListPositions retrieves every position of a vault ordered by owner.
func (s *LedgerStore) ListPositions(ctx context.Context, vaultKey string) (_ []*domain.UserPosition, err error) {
	defer observe("list_positions", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT `+positionColumns+` FROM positions WHERE vault = $1 ORDER BY owner ASC
	`, vaultKey)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserPosition
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Commit applies a changeset in one transaction.
func (s *LedgerStore) Commit(ctx context.Context, cs *storage.Changeset) (err error) {
	if err := cs.Validate(); err != nil {
		return err
	}
	defer observe("commit", time.Now(), &err)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	v := cs.Vault
	switch cs.Kind {
	case storage.ChangeCreate:
		if err := insertVault(ctx, tx, v); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert vault: %w", err)
		}
	case storage.ChangeUpdate:
		if err := updateVault(ctx, tx, v); err != nil {
			return err
		}
	case storage.ChangeDelete:
		tag, err := tx.Exec(ctx, `DELETE FROM vaults WHERE key = $1`, v.Key)
		if err != nil {
			return fmt.Errorf("delete vault: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrNotFound
		}
		return commit(ctx, tx)
	default:
		return storage.ErrInvalidInput
	}

	for _, key := range cs.RemovedStrategies {
		if _, err := tx.Exec(ctx, `DELETE FROM strategies WHERE vault = $1 AND key = $2`, v.Key, key); err != nil {
			return fmt.Errorf("delete strategy: %w", err)
		}
	}
	for _, r := range cs.Strategies {
		if err := upsertStrategy(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, p := range cs.Positions {
		if err := upsertPosition(ctx, tx, p); err != nil {
			return err
		}
	}

	return commit(ctx, tx)
}

func commit(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertVault(ctx context.Context, tx pgx.Tx, v *domain.Vault) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO vaults (
			key, idx, underlying_mint, underlying_decimals, shares_mint, token_account, accountant,
			total_idle, total_debt, total_shares,
			deposit_limit, min_user_deposit, minimum_total_idle,
			is_shutdown, kyc_verified_only, whitelisted_only, direct_deposit_enabled,
			next_strategy_index, created_at, updated_at
		) VALUES (
			$1, $2::numeric, $3, $4, $5, $6, $7,
			$8::numeric, $9::numeric, $10::numeric,
			$11::numeric, $12::numeric, $13::numeric,
			$14, $15, $16, $17,
			$18::numeric, $19, $20
		)
	`,
		v.Key, u64(v.Index), v.UnderlyingMint, int16(v.UnderlyingDecimals), v.SharesMint, v.TokenAccount, v.Accountant,
		u64(v.TotalIdle), u64(v.TotalDebt), u64(v.TotalShares),
		u64(v.DepositLimit), u64(v.MinUserDeposit), u64(v.MinimumTotalIdle),
		v.IsShutdown, v.KYCVerifiedOnly, v.WhitelistedOnly, v.DirectDepositEnabled,
		u64(v.NextStrategyIndex), v.CreatedAt, v.UpdatedAt,
	)
	return err
}

func updateVault(ctx context.Context, tx pgx.Tx, v *domain.Vault) error {
	tag, err := tx.Exec(ctx, `
		UPDATE vaults SET
			accountant = $2,
			total_idle = $3::numeric, total_debt = $4::numeric, total_shares = $5::numeric,
			deposit_limit = $6::numeric, min_user_deposit = $7::numeric, minimum_total_idle = $8::numeric,
			is_shutdown = $9, kyc_verified_only = $10, whitelisted_only = $11, direct_deposit_enabled = $12,
			next_strategy_index = $13::numeric, updated_at = $14
		WHERE key = $1
	`,
		v.Key, v.Accountant,
		u64(v.TotalIdle), u64(v.TotalDebt), u64(v.TotalShares),
		u64(v.DepositLimit), u64(v.MinUserDeposit), u64(v.MinimumTotalIdle),
		v.IsShutdown, v.KYCVerifiedOnly, v.WhitelistedOnly, v.DirectDepositEnabled,
		u64(v.NextStrategyIndex), v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func upsertStrategy(ctx context.Context, tx pgx.Tx, r *domain.StrategyDebtRecord) error {
	cfg, err := json.Marshal(r.Config)
	if err != nil {
		return fmt.Errorf("marshal strategy config: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO strategies (
			key, vault, idx, config, token_account, current_debt, max_debt, last_update, is_active
		) VALUES ($1, $2, $3::numeric, $4, $5, $6::numeric, $7::numeric, $8, $9)
		ON CONFLICT (key) DO UPDATE SET
			config = EXCLUDED.config,
			current_debt = EXCLUDED.current_debt,
			max_debt = EXCLUDED.max_debt,
			last_update = EXCLUDED.last_update,
			is_active = EXCLUDED.is_active
	`,
		r.Key, r.Vault, u64(r.Index), cfg, r.TokenAccount,
		u64(r.CurrentDebt), u64(r.MaxDebt), r.LastUpdate, r.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert strategy: %w", err)
	}
	return nil
}

func upsertPosition(ctx context.Context, tx pgx.Tx, p *domain.UserPosition) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO positions (vault, owner, deposited, whitelisted, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
		ON CONFLICT (vault, owner) DO UPDATE SET
			deposited = EXCLUDED.deposited,
			whitelisted = EXCLUDED.whitelisted,
			updated_at = EXCLUDED.updated_at
	`, p.Vault, p.Owner, u64(p.Deposited), p.Whitelisted, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func scanVault(row pgx.Row) (*domain.Vault, error) {
	var (
		v                                      domain.Vault
		decimals                               int16
		idx, idle, debt, shares                string
		depositLimit, minDeposit, minIdle, nxt string
	)
	err := row.Scan(
		&v.Key, &idx, &v.UnderlyingMint, &decimals, &v.SharesMint, &v.TokenAccount, &v.Accountant,
		&idle, &debt, &shares,
		&depositLimit, &minDeposit, &minIdle,
		&v.IsShutdown, &v.KYCVerifiedOnly, &v.WhitelistedOnly, &v.DirectDepositEnabled,
		&nxt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.UnderlyingDecimals = uint8(decimals)
	err = parseAll(
		field{idx, &v.Index}, field{idle, &v.TotalIdle}, field{debt, &v.TotalDebt}, field{shares, &v.TotalShares},
		field{depositLimit, &v.DepositLimit}, field{minDeposit, &v.MinUserDeposit}, field{minIdle, &v.MinimumTotalIdle},
		field{nxt, &v.NextStrategyIndex},
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanStrategy(row pgx.Row) (*domain.StrategyDebtRecord, error) {
	var (
		r                  domain.StrategyDebtRecord
		cfg                []byte
		idx, debt, maxDebt string
	)
	err := row.Scan(&r.Key, &r.Vault, &idx, &cfg, &r.TokenAccount, &debt, &maxDebt, &r.LastUpdate, &r.IsActive)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &r.Config); err != nil {
		return nil, fmt.Errorf("unmarshal strategy config: %w", err)
	}
	if err := parseAll(field{idx, &r.Index}, field{debt, &r.CurrentDebt}, field{maxDebt, &r.MaxDebt}); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanPosition(row pgx.Row) (*domain.UserPosition, error) {
	var (
		p         domain.UserPosition
		deposited string
	)
	if err := row.Scan(&p.Vault, &p.Owner, &deposited, &p.Whitelisted, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := parseAll(field{deposited, &p.Deposited}); err != nil {
		return nil, err
	}
	return &p, nil
}

type field struct {
	text string
	dst  *uint64
}

func parseAll(fields ...field) error {
	var errs []error
	for _, f := range fields {
		n, err := strconv.ParseUint(f.text, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse numeric %q: %w", f.text, err))
			continue
		}
		*f.dst = n
	}
	return errors.Join(errs...)
}

func u64(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func observe(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}
