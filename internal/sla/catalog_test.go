package sla

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/ticket-engine/internal/domain"
)

type fakeStatusRepo struct {
	rows []domain.StatusRow
	gets int
}

func (f *fakeStatusRepo) Get(ctx context.Context, value string) (*domain.StatusRow, error) {
	f.gets++
	for i := range f.rows {
		if f.rows[i].Value == value {
			row := f.rows[i]
			return &row, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeStatusRepo) ListOrdered(ctx context.Context) ([]domain.StatusRow, error) {
	return f.rows, nil
}

type mapCache struct {
	entries map[string]string
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]string{}} }

func (m *mapCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *mapCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	m.entries[key] = value
}

func catalogRows() []domain.StatusRow {
	return []domain.StatusRow{
		{Value: "OPEN", Label: "Open", DisplayOrder: 1},
		{Value: "IN_PROGRESS", Label: "In Progress", ProgressPercent: 25, DisplayOrder: 2},
		{Value: "RESOLVED", Label: "Resolved", ProgressPercent: 100, IsFinal: true, DisplayOrder: 3},
		{Value: "CLOSED", Label: "Closed", ProgressPercent: 100, IsFinal: true, DisplayOrder: 4},
	}
}

func TestCatalogGetCachesRows(t *testing.T) {
	repo := &fakeStatusRepo{rows: catalogRows()}
	catalog := NewCatalog(repo, newMapCache(), time.Minute, nil)

	row, err := catalog.Get(context.Background(), "OPEN")
	require.NoError(t, err)
	require.Equal(t, "OPEN", row.Value)
	require.Equal(t, 1, repo.gets)

	// Second read is served from cache.
	row, err = catalog.Get(context.Background(), "OPEN")
	require.NoError(t, err)
	require.Equal(t, "OPEN", row.Value)
	require.Equal(t, 1, repo.gets)
}

func TestCatalogGetUnknownStatus(t *testing.T) {
	catalog := NewCatalog(&fakeStatusRepo{rows: catalogRows()}, nil, time.Minute, nil)
	_, err := catalog.Get(context.Background(), "BOGUS")
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestCatalogIsFinal(t *testing.T) {
	catalog := NewCatalog(&fakeStatusRepo{rows: catalogRows()}, nil, time.Minute, nil)

	final, err := catalog.IsFinal(context.Background(), "RESOLVED")
	require.NoError(t, err)
	require.True(t, final)

	final, err = catalog.IsFinal(context.Background(), "OPEN")
	require.NoError(t, err)
	require.False(t, final)
}

func TestCatalogDerivedStatuses(t *testing.T) {
	catalog := NewCatalog(&fakeStatusRepo{rows: catalogRows()}, nil, time.Minute, nil)
	ctx := context.Background()

	initial, err := catalog.InitialStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, "OPEN", initial)

	active, err := catalog.DefaultActiveTarget(ctx)
	require.NoError(t, err)
	require.Equal(t, "IN_PROGRESS", active)

	closeTarget, err := catalog.DefaultCloseTarget(ctx)
	require.NoError(t, err)
	require.Equal(t, "RESOLVED", closeTarget)
}

func TestCatalogDerivedStatusesDegenerate(t *testing.T) {
	// A catalog with a single non-final row falls back to it as the
	// active target, and has no close target.
	repo := &fakeStatusRepo{rows: []domain.StatusRow{{Value: "OPEN", DisplayOrder: 1}}}
	catalog := NewCatalog(repo, nil, time.Minute, nil)
	ctx := context.Background()

	active, err := catalog.DefaultActiveTarget(ctx)
	require.NoError(t, err)
	require.Equal(t, "OPEN", active)

	_, err = catalog.DefaultCloseTarget(ctx)
	require.Error(t, err)
}
