// Package blog serves the published-post read paths: the post list, post
// detail and headings, plus click counting by slug.
//
// Reads go through the read cache. Every list read buffers one impression per
// listed post and every detail read dispatches an asynchronous view, on cache
// hits and misses alike.
package blog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a post, slug or the published list is absent
var ErrNotFound = errors.New("not found")

// StatusPublished marks posts visible on the read paths
const StatusPublished = "published"

// Category groups posts
type Category struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
}

// Post is a blog post as stored in primary storage
type Post struct {
	ID          uuid.UUID
	Title       string
	Description string
	Content     string
	Thumbnail   string
	Keywords    string
	Slug        string
	Status      string
	Category    *Category
	Published   time.Time
	Updated     time.Time
}

// Heading is one entry of a post's table of contents
type Heading struct {
	ID     uuid.UUID `json:"id"`
	PostID uuid.UUID `json:"-"`
	Title  string    `json:"title"`
	Slug   string    `json:"slug"`
	Level  int       `json:"level"`
	Order  int       `json:"order"`
}

// PostStore is primary post storage
type PostStore interface {
	// ListPublished returns every published post, newest first
	ListPublished(ctx context.Context) ([]Post, error)
	// GetBySlug returns a published post or ErrNotFound
	GetBySlug(ctx context.Context, slug string) (*Post, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// ListHeadings returns a post's headings in display order
	ListHeadings(ctx context.Context, slug string) ([]Heading, error)
}
