package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aristath/poolvault/internal/database"
	"github.com/aristath/poolvault/internal/domain"
)

// Repository persists depositor accounts and vault snapshots. The in-memory
// vault stays authoritative; rows here are the audit and query copy.
type Repository struct {
	db *database.DB
}

// NewRepository creates a ledger repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// SaveAccount upserts the depositor row.
func (r *Repository) SaveAccount(ctx context.Context, acct Account) error {
	query := `
		INSERT INTO depositor_accounts (address, claims, cumulative_deposited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			claims = excluded.claims,
			cumulative_deposited = excluded.cumulative_deposited,
			updated_at = excluded.updated_at`

	_, err := r.db.Conn().ExecContext(ctx, query,
		acct.Address,
		acct.Claims.String(),
		acct.CumulativeDeposited.String(),
		acct.CreatedAt.UTC().Format(time.RFC3339Nano),
		acct.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// GetAccount loads one depositor row.
func (r *Repository) GetAccount(ctx context.Context, address string) (*Account, error) {
	query := `
		SELECT address, claims, cumulative_deposited, created_at, updated_at
		FROM depositor_accounts
		WHERE address = ?`

	row := r.db.Conn().QueryRowContext(ctx, query, address)
	acct, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: depositor %s", domain.ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return acct, nil
}

// ListAccounts loads all depositor rows, empty ones included.
func (r *Repository) ListAccounts(ctx context.Context) ([]Account, error) {
	query := `
		SELECT address, claims, cumulative_deposited, created_at, updated_at
		FROM depositor_accounts
		ORDER BY created_at`

	rows, err := r.db.Conn().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acct)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var (
		acct                        Account
		claims, deposited           string
		createdAtRaw, updatedAtRaw  string
	)
	if err := row.Scan(&acct.Address, &claims, &deposited, &createdAtRaw, &updatedAtRaw); err != nil {
		return nil, err
	}

	var err error
	if acct.Claims, err = decimal.NewFromString(claims); err != nil {
		return nil, fmt.Errorf("invalid claims value %q: %w", claims, err)
	}
	if acct.CumulativeDeposited, err = decimal.NewFromString(deposited); err != nil {
		return nil, fmt.Errorf("invalid deposited value %q: %w", deposited, err)
	}
	if acct.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtRaw); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAtRaw, err)
	}
	if acct.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtRaw); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAtRaw, err)
	}
	return &acct, nil
}

// SaveSnapshot appends a vault snapshot row.
func (r *Repository) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	query := `
		INSERT INTO vault_snapshots (total_value, total_claims, share_price, allocation, created_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.Conn().ExecContext(ctx, query,
		snap.TotalValue.String(),
		snap.TotalClaims.String(),
		snap.SharePrice.String(),
		snap.Allocation.String(),
		snap.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot loads the most recent snapshot row.
func (r *Repository) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT total_value, total_claims, share_price, allocation, created_at
		FROM vault_snapshots
		ORDER BY id DESC
		LIMIT 1`

	var (
		snap                             Snapshot
		totalValue, totalClaims          string
		price, allocation, createdAtRaw  string
	)
	err := r.db.Conn().QueryRowContext(ctx, query).
		Scan(&totalValue, &totalClaims, &price, &allocation, &createdAtRaw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no snapshots yet", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	if snap.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return nil, fmt.Errorf("invalid total_value %q: %w", totalValue, err)
	}
	if snap.TotalClaims, err = decimal.NewFromString(totalClaims); err != nil {
		return nil, fmt.Errorf("invalid total_claims %q: %w", totalClaims, err)
	}
	if snap.SharePrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("invalid share_price %q: %w", price, err)
	}
	if snap.Allocation, err = domain.ParseAllocation(allocation); err != nil {
		return nil, err
	}
	if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtRaw); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAtRaw, err)
	}
	return &snap, nil
}
