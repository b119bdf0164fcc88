package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/poolvault/internal/database"
	"github.com/aristath/poolvault/internal/domain"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first, err := repo.Append(ctx, domain.EvenAllocation(), domain.Allocation{4000, 3500, 2500}, base)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := repo.Append(ctx, domain.Allocation{4000, 3500, 2500}, domain.Allocation{3000, 4000, 3000}, base.Add(time.Hour))
	require.NoError(t, err)

	entries, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, domain.Allocation{3000, 4000, 3000}, entries[0].NewAllocation)
	assert.Equal(t, first.ID, entries[1].ID)
	assert.Equal(t, domain.EvenAllocation(), entries[1].PreviousAllocation)
}

func TestListRespectsLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := domain.EvenAllocation()
	next := domain.Allocation{4000, 3500, 2500}
	for i := 0; i < 5; i++ {
		_, err := repo.Append(ctx, prev, next, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		prev, next = next, prev
	}

	entries, err := repo.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestCountEmpty(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
