package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const recordColumns = `post_id, impressions, views, clicks, click_through_rate, updated_at`

// ctrExpr recomputes the click-through rate from the row's post-update values.
// Postgres evaluates every SET expression against the old row, so the caller
// supplies the new impressions and clicks expressions.
func ctrExpr(impressions, clicks string) string {
	return fmt.Sprintf(`CASE WHEN (%[1]s) > 0 AND (%[2]s) > 0
			THEN LEAST(100.0, (%[2]s)::double precision * 100.0 / (%[1]s))
			ELSE 0 END`, impressions, clicks)
}

var (
	addImpressionsQuery = `
		INSERT INTO post_analytics (post_id, impressions, views, clicks, click_through_rate, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3)
		ON CONFLICT (post_id) DO UPDATE SET
			impressions = post_analytics.impressions + EXCLUDED.impressions,
			click_through_rate = ` + ctrExpr("post_analytics.impressions + EXCLUDED.impressions", "post_analytics.clicks") + `,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + recordColumns

	incrementClicksQuery = `
		INSERT INTO post_analytics (post_id, impressions, views, clicks, click_through_rate, updated_at)
		VALUES ($1, 0, 0, 1, 0, $2)
		ON CONFLICT (post_id) DO UPDATE SET
			clicks = post_analytics.clicks + 1,
			click_through_rate = ` + ctrExpr("post_analytics.impressions", "post_analytics.clicks + 1") + `,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + recordColumns

	// a zero delta doubles as get-or-create and leaves updated_at alone
	addViewsQuery = `
		INSERT INTO post_analytics (post_id, impressions, views, clicks, click_through_rate, updated_at)
		VALUES ($1, 0, $2, 0, 0, $3)
		ON CONFLICT (post_id) DO UPDATE SET
			views = post_analytics.views + EXCLUDED.views,
			updated_at = CASE WHEN EXCLUDED.views > 0 THEN EXCLUDED.updated_at ELSE post_analytics.updated_at END
		RETURNING ` + recordColumns
)

const (
	getRecordQuery = `SELECT ` + recordColumns + ` FROM post_analytics WHERE post_id = $1`

	insertViewMarkerQuery = `
		INSERT INTO post_views (post_id, ip_address, viewed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, ip_address) DO NOTHING`

	refreshViewMarkerQuery = `
		UPDATE post_views SET viewed_at = $3
		WHERE post_id = $1 AND ip_address = $2 AND viewed_at <= $4`

	resetRecordQuery = `
		UPDATE post_analytics
		SET impressions = 0, views = 0, clicks = 0, click_through_rate = 0, updated_at = $2
		WHERE post_id = $1`

	deleteViewMarkersQuery = `DELETE FROM post_views WHERE post_id = $1`
)

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a PostgreSQL-backed analytics store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func scanRecord(row *sql.Row) (*PostAnalytics, error) {
	var rec PostAnalytics
	if err := row.Scan(&rec.PostID, &rec.Impressions, &rec.Views, &rec.Clicks,
		&rec.ClickThroughRate, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get returns the analytics record of a post, or ErrNoRecord
func (s *PostgresStore) Get(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, getRecordQuery, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics for %s: %w", postID, err)
	}
	return rec, nil
}

// GetOrCreate returns the record of a post, creating a zeroed one if absent
func (s *PostgresStore) GetOrCreate(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error) {
	return s.addViews(ctx, s.db, postID, 0)
}

// AddImpressions atomically adds delta impressions
func (s *PostgresStore) AddImpressions(ctx context.Context, postID uuid.UUID, delta int64) (*PostAnalytics, error) {
	if delta < 0 {
		return nil, fmt.Errorf("negative impression delta %d for %s", delta, postID)
	}
	rec, err := scanRecord(s.db.QueryRowContext(ctx, addImpressionsQuery, postID, delta, s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to add impressions for %s: %w", postID, err)
	}
	return rec, nil
}

// IncrementClicks atomically adds one click
func (s *PostgresStore) IncrementClicks(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, incrementClicksQuery, postID, s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to increment clicks for %s: %w", postID, err)
	}
	return rec, nil
}

// RecordView claims the (post, ip) marker and counts the view only if the
// claim succeeded. Marker and counter change in one transaction.
func (s *PostgresStore) RecordView(ctx context.Context, postID uuid.UUID, ip string, window time.Duration) (bool, *PostAnalytics, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin view transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx, insertViewMarkerQuery, postID, ip, now)
	if err != nil {
		return false, nil, fmt.Errorf("failed to insert view marker for %s: %w", postID, err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return false, nil, err
	}

	if claimed == 0 && window > 0 {
		res, err = tx.ExecContext(ctx, refreshViewMarkerQuery, postID, ip, now, now.Add(-window))
		if err != nil {
			return false, nil, fmt.Errorf("failed to refresh view marker for %s: %w", postID, err)
		}
		if claimed, err = res.RowsAffected(); err != nil {
			return false, nil, err
		}
	}

	var delta int64
	if claimed > 0 {
		delta = 1
	}
	rec, err := s.addViews(ctx, tx, postID, delta)
	if err != nil {
		return false, nil, err
	}
	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("failed to commit view for %s: %w", postID, err)
	}
	return delta > 0, rec, nil
}

func (s *PostgresStore) addViews(ctx context.Context, q queryer, postID uuid.UUID, delta int64) (*PostAnalytics, error) {
	rec, err := scanRecord(q.QueryRowContext(ctx, addViewsQuery, postID, delta, s.now().UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert analytics for %s: %w", postID, err)
	}
	return rec, nil
}

// Reset zeroes the record of a post and removes its view markers
func (s *PostgresStore) Reset(ctx context.Context, postID uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, resetRecordQuery, postID, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to reset analytics for %s: %w", postID, err)
	}
	if _, err := tx.ExecContext(ctx, deleteViewMarkersQuery, postID); err != nil {
		return fmt.Errorf("failed to delete view markers for %s: %w", postID, err)
	}
	return tx.Commit()
}
