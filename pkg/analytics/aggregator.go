package analytics

import (
	"context"
	"database/sql"
	"time"
)

// Aggregator snapshots cumulative counters into per-day rows
type Aggregator struct {
	db *sql.DB
}

// NewAggregator creates a new aggregator
func NewAggregator(db *sql.DB) *Aggregator {
	return &Aggregator{db: db}
}

// SnapshotDaily copies every post's cumulative counters into
// post_analytics_daily for the given date. Re-running a date overwrites it.
func (a *Aggregator) SnapshotDaily(ctx context.Context, date time.Time) (int64, error) {
	query := `
		INSERT INTO post_analytics_daily (
			post_id, date, impressions, views, clicks, click_through_rate
		)
		SELECT
			post_id,
			$1::date AS date,
			impressions,
			views,
			clicks,
			click_through_rate
		FROM post_analytics
		ON CONFLICT (post_id, date) DO UPDATE SET
			impressions = EXCLUDED.impressions,
			views = EXCLUDED.views,
			clicks = EXCLUDED.clicks,
			click_through_rate = EXCLUDED.click_through_rate
	`
	res, err := a.db.ExecContext(ctx, query, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneDaily removes snapshots older than retention days
func (a *Aggregator) PruneDaily(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	res, err := a.db.ExecContext(ctx, `DELETE FROM post_analytics_daily WHERE date < $1::date`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Snapshot runs the daily jobs for a date: the snapshot itself and pruning
func (a *Aggregator) Snapshot(ctx context.Context, date time.Time, retentionDays int) error {
	if _, err := a.SnapshotDaily(ctx, date); err != nil {
		return err
	}
	// prune on Sundays only
	if date.Weekday() == time.Sunday {
		if _, err := a.PruneDaily(ctx, date, retentionDays); err != nil {
			return err
		}
	}
	return nil
}
