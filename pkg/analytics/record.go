package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoRecord is returned by Get when a post has never received an analytics event
var ErrNoRecord = errors.New("analytics record not found")

// PostAnalytics is the durable analytics record of one post
type PostAnalytics struct {
	PostID           uuid.UUID `json:"post_id"`
	Impressions      int64     `json:"impressions"`
	Views            int64     `json:"views"`
	Clicks           int64     `json:"clicks"`
	ClickThroughRate float64   `json:"click_through_rate"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ClickThroughRate returns clicks/impressions*100, or 0 without impressions.
// The result is clamped to [0, 100]: clicks can briefly outrun impressions that
// are still pending reconciliation.
func ClickThroughRate(impressions, clicks int64) float64 {
	if impressions <= 0 || clicks <= 0 {
		return 0
	}
	rate := float64(clicks) / float64(impressions) * 100
	if rate > 100 {
		return 100
	}
	return rate
}

// Store is the durable analytics store
type Store interface {
	Get(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error)
	GetOrCreate(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error)
	// AddImpressions adds delta impressions and returns the updated record
	AddImpressions(ctx context.Context, postID uuid.UUID, delta int64) (*PostAnalytics, error)
	// IncrementClicks adds one click and returns the updated record
	IncrementClicks(ctx context.Context, postID uuid.UUID) (*PostAnalytics, error)
	// RecordView counts a view from ip unless one was already counted within
	// window (0 = ever). counted reports whether views was incremented.
	RecordView(ctx context.Context, postID uuid.UUID, ip string, window time.Duration) (counted bool, rec *PostAnalytics, err error)
	// Reset zeroes a record and forgets its view markers
	Reset(ctx context.Context, postID uuid.UUID) error
}
