package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/poolvault/internal/database"
	"github.com/aristath/poolvault/internal/domain"
)

// Repository persists allocation history entries. Append-only: there is no
// update or delete path.
type Repository struct {
	db *database.DB
}

// NewRepository creates a history repository.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// Append writes a new history entry and returns it.
func (r *Repository) Append(ctx context.Context, previous, next domain.Allocation, at time.Time) (*Entry, error) {
	entry := &Entry{
		ID:                 uuid.NewString(),
		PreviousAllocation: previous,
		NewAllocation:      next,
		Timestamp:          at,
	}

	query := `
		INSERT INTO allocation_history (id, previous_allocation, new_allocation, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.Conn().ExecContext(ctx, query,
		entry.ID,
		entry.PreviousAllocation.String(),
		entry.NewAllocation.String(),
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append history entry: %w", err)
	}
	return entry, nil
}

// List returns entries newest first, up to limit.
func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, previous_allocation, new_allocation, created_at
		FROM allocation_history
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := r.db.Conn().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			prevRaw, nextRaw, at string
		)
		if err := rows.Scan(&e.ID, &prevRaw, &nextRaw, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if e.PreviousAllocation, err = domain.ParseAllocation(prevRaw); err != nil {
			return nil, err
		}
		if e.NewAllocation, err = domain.ParseAllocation(nextRaw); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", at, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of history entries.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM allocation_history`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}
