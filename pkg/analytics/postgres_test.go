package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recordCols = []string{"post_id", "impressions", "views", "clicks", "click_through_rate", "updated_at"}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	store := NewPostgresStore(db)
	store.now = func() time.Time { return now }
	return store, mock, now
}

func TestClickThroughRate(t *testing.T) {
	tests := []struct {
		name        string
		impressions int64
		clicks      int64
		want        float64
	}{
		{"no impressions", 0, 0, 0},
		{"clicks without impressions", 0, 3, 0},
		{"one of one", 1, 1, 100},
		{"quarter", 4, 1, 25},
		{"no clicks", 10, 0, 0},
		{"clicks ahead of impressions", 2, 5, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ClickThroughRate(tt.impressions, tt.clicks), 1e-9)
		})
	}
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM post_analytics WHERE post_id").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 4, 2, 1, 25.0, now))

	rec, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.PostID)
	assert.Equal(t, int64(4), rec.Impressions)
	assert.InDelta(t, 25.0, rec.ClickThroughRate, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	store, mock, _ := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM post_analytics WHERE post_id").
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(recordCols))

	_, err := store.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestPostgresStore_AddImpressions(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO post_analytics (.+) ON CONFLICT \\(post_id\\) DO UPDATE SET impressions = post_analytics.impressions \\+ EXCLUDED.impressions").
		WithArgs(id.String(), int64(12), now).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 12, 0, 3, 25.0, now))

	rec, err := store.AddImpressions(context.Background(), id, 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rec.Impressions)
	assert.InDelta(t, 25.0, rec.ClickThroughRate, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddImpressionsNegative(t *testing.T) {
	store, mock, _ := newMockStore(t)

	_, err := store.AddImpressions(context.Background(), uuid.New(), -1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementClicks(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO post_analytics (.+) clicks = post_analytics.clicks \\+ 1").
		WithArgs(id.String(), now).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 0, 0, 1, 0.0, now))

	rec, err := store.IncrementClicks(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Clicks)
	assert.Zero(t, rec.ClickThroughRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementClicksError(t *testing.T) {
	store, mock, _ := newMockStore(t)

	mock.ExpectQuery("INSERT INTO post_analytics").WillReturnError(errors.New("deadlock detected"))

	_, err := store.IncrementClicks(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "deadlock detected")
}

func TestPostgresStore_GetOrCreate(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("INSERT INTO post_analytics (.+) views = post_analytics.views \\+ EXCLUDED.views").
		WithArgs(id.String(), int64(0), now).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 0, 0, 0, 0.0, now))

	rec, err := store.GetOrCreate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.PostID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordView_FirstView(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO post_views").
		WithArgs(id.String(), "203.0.113.7", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO post_analytics").
		WithArgs(id.String(), int64(1), now).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 0, 1, 0, 0.0, now))
	mock.ExpectCommit()

	counted, rec, err := store.RecordView(context.Background(), id, "203.0.113.7", 0)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(1), rec.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordView_DuplicateForever(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO post_views").
		WithArgs(id.String(), "203.0.113.7", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// no marker refresh with an unbounded window
	mock.ExpectQuery("INSERT INTO post_analytics").
		WithArgs(id.String(), int64(0), now).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 0, 1, 0, 0.0, now))
	mock.ExpectCommit()

	counted, rec, err := store.RecordView(context.Background(), id, "203.0.113.7", 0)
	require.NoError(t, err)
	assert.False(t, counted)
	assert.Equal(t, int64(1), rec.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordView_WindowExpired(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()
	window := 24 * time.Hour

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO post_views").
		WithArgs(id.String(), "198.51.100.1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE post_views SET viewed_at").
		WithArgs(id.String(), "198.51.100.1", now, now.Add(-window)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO post_analytics").
		WithArgs(id.String(), int64(1), now).
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow(id.String(), 0, 2, 0, 0.0, now))
	mock.ExpectCommit()

	counted, rec, err := store.RecordView(context.Background(), id, "198.51.100.1", window)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(2), rec.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordView_RollsBackOnError(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO post_views").
		WithArgs(id.String(), "203.0.113.7", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO post_analytics").
		WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	_, _, err := store.RecordView(context.Background(), id, "203.0.113.7", 0)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Reset(t *testing.T) {
	store, mock, now := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE post_analytics SET impressions = 0").
		WithArgs(id.String(), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM post_views").
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, store.Reset(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}
