package blog

import (
	"time"

	"github.com/google/uuid"
)

// CategoryRef is the category as embedded in post payloads
type CategoryRef struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// PostSummary is a list entry
type PostSummary struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Thumbnail   string       `json:"thumbnail"`
	Slug        string       `json:"slug"`
	Category    *CategoryRef `json:"category"`
	Published   time.Time    `json:"published"`
}

// PostDetail is the full post payload
type PostDetail struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Content     string       `json:"content"`
	Thumbnail   string       `json:"thumbnail"`
	Keywords    string       `json:"keywords"`
	Slug        string       `json:"slug"`
	Category    *CategoryRef `json:"category"`
	Published   time.Time    `json:"published"`
	Updated     time.Time    `json:"updated"`
}

func categoryRef(c *Category) *CategoryRef {
	if c == nil {
		return nil
	}
	return &CategoryRef{Name: c.Name, Slug: c.Slug}
}

// Summary converts a post to its list entry
func (p *Post) Summary() PostSummary {
	return PostSummary{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Thumbnail:   p.Thumbnail,
		Slug:        p.Slug,
		Category:    categoryRef(p.Category),
		Published:   p.Published,
	}
}

// Detail converts a post to its detail payload
func (p *Post) Detail() PostDetail {
	return PostDetail{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		Thumbnail:   p.Thumbnail,
		Keywords:    p.Keywords,
		Slug:        p.Slug,
		Category:    categoryRef(p.Category),
		Published:   p.Published,
		Updated:     p.Updated,
	}
}
