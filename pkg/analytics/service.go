package analytics

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Service answers read-side analytics queries. Daily series and rankings
// are read from db; the current record comes from records.
type Service struct {
	db      *sql.DB
	records Store
}

// NewService creates a new analytics service
func NewService(db *sql.DB, records Store) *Service {
	return &Service{db: db, records: records}
}

// DailyPoint is one day of a post's snapshot series
type DailyPoint struct {
	Date             time.Time `json:"date"`
	Impressions      int64     `json:"impressions"`
	Views            int64     `json:"views"`
	Clicks           int64     `json:"clicks"`
	ClickThroughRate float64   `json:"click_through_rate"`
}

// PostStats is a post's current record plus its recent daily series
type PostStats struct {
	PostAnalytics
	Daily []DailyPoint `json:"daily"`
}

// GetPostStats returns the record of a post and up to days daily snapshots.
// A post that never had an analytics event gets a zeroed record created.
func (s *Service) GetPostStats(ctx context.Context, postID uuid.UUID, days int) (*PostStats, error) {
	if days <= 0 || days > 365 {
		days = 30
	}

	rec, err := s.records.GetOrCreate(ctx, postID)
	if err != nil {
		return nil, err
	}
	stats := &PostStats{PostAnalytics: *rec, Daily: []DailyPoint{}}

	query := `
		SELECT date, impressions, views, clicks, click_through_rate
		FROM post_analytics_daily
		WHERE post_id = $1
		  AND date >= CURRENT_DATE - $2::integer * INTERVAL '1 day'
		ORDER BY date ASC
	`
	rows, err := s.db.QueryContext(ctx, query, postID, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p DailyPoint
		if err := rows.Scan(&p.Date, &p.Impressions, &p.Views, &p.Clicks, &p.ClickThroughRate); err != nil {
			return nil, err
		}
		stats.Daily = append(stats.Daily, p)
	}
	return stats, rows.Err()
}

// TopPost is a published post ranked by impressions
type TopPost struct {
	PostID           uuid.UUID `json:"post_id"`
	Slug             string    `json:"slug"`
	Title            string    `json:"title"`
	Impressions      int64     `json:"impressions"`
	Views            int64     `json:"views"`
	Clicks           int64     `json:"clicks"`
	ClickThroughRate float64   `json:"click_through_rate"`
}

// TopPosts returns published posts with the most impressions
func (s *Service) TopPosts(ctx context.Context, limit int) ([]TopPost, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	query := `
		SELECT
			p.id,
			p.slug,
			p.title,
			a.impressions,
			a.views,
			a.clicks,
			a.click_through_rate
		FROM post_analytics a
		JOIN posts p ON p.id = a.post_id
		WHERE p.status = 'published'
		ORDER BY a.impressions DESC, a.clicks DESC, p.slug ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []TopPost{}
	for rows.Next() {
		var p TopPost
		if err := rows.Scan(
			&p.PostID,
			&p.Slug,
			&p.Title,
			&p.Impressions,
			&p.Views,
			&p.Clicks,
			&p.ClickThroughRate,
		); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
