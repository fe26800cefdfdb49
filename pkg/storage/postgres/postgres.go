package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/quill/pkg/blog"
)

const postColumns = `
	p.id, p.title, p.description, p.content, p.thumbnail, p.keywords, p.slug,
	p.status, p.published, p.updated,
	c.id, c.name, c.title, c.description, c.slug`

const listPublishedQuery = `
	SELECT` + postColumns + `
	FROM posts p
	LEFT JOIN categories c ON c.id = p.category_id
	WHERE p.status = 'published'
	ORDER BY p.published DESC`

const getBySlugQuery = `
	SELECT` + postColumns + `
	FROM posts p
	LEFT JOIN categories c ON c.id = p.category_id
	WHERE p.slug = $1 AND p.status = 'published'`

const existsQuery = `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`

const listHeadingsQuery = `
	SELECT h.id, h.post_id, h.title, h.slug, h.level, h.sort_order
	FROM headings h
	JOIN posts p ON p.id = h.post_id
	WHERE p.slug = $1
	ORDER BY h.sort_order`

// PostgresStorage is primary post storage. Reads are served by a read replica
// when the connection manager has one.
type PostgresStorage struct {
	conns        *ConnectionManager
	primaryReads bool
}

// NewPostgresStorage creates a new PostgreSQL-backed post store
func NewPostgresStorage(conns *ConnectionManager) *PostgresStorage {
	return &PostgresStorage{conns: conns}
}

// OnPrimary returns a view of the store that reads from the primary only.
// The view recorder resolves slugs through it so a post published moments
// ago is not dropped under replica lag.
func (s *PostgresStorage) OnPrimary() *PostgresStorage {
	return &PostgresStorage{conns: s.conns, primaryReads: true}
}

func (s *PostgresStorage) reader() *sql.DB {
	if s.primaryReads {
		return s.conns.Primary()
	}
	return s.conns.Replica()
}

var _ blog.PostStore = (*PostgresStorage)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (*blog.Post, error) {
	var (
		p        blog.Post
		catID    uuid.NullUUID
		catName  sql.NullString
		catTitle sql.NullString
		catDesc  sql.NullString
		catSlug  sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Content, &p.Thumbnail, &p.Keywords, &p.Slug,
		&p.Status, &p.Published, &p.Updated,
		&catID, &catName, &catTitle, &catDesc, &catSlug,
	)
	if err != nil {
		return nil, err
	}
	if catID.Valid {
		p.Category = &blog.Category{
			ID:          catID.UUID,
			Name:        catName.String,
			Title:       catTitle.String,
			Description: catDesc.String,
			Slug:        catSlug.String,
		}
	}
	return &p, nil
}

// ListPublished returns every published post, newest first
func (s *PostgresStorage) ListPublished(ctx context.Context) ([]blog.Post, error) {
	rows, err := s.reader().QueryContext(ctx, listPublishedQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []blog.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// GetBySlug returns the published post with slug
func (s *PostgresStorage) GetBySlug(ctx context.Context, slug string) (*blog.Post, error) {
	p, err := scanPost(s.reader().QueryRowContext(ctx, getBySlugQuery, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, blog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %q: %w", slug, err)
	}
	return p, nil
}

// Exists reports whether a post with id exists in any status. The reconciler
// reads the primary so a post deleted moments ago is seen as gone.
func (s *PostgresStorage) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := s.conns.Primary().QueryRowContext(ctx, existsQuery, id.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check post %s: %w", id, err)
	}
	return exists, nil
}

// ListHeadings returns the headings of the post with slug in display order.
// An unknown slug yields an empty list.
func (s *PostgresStorage) ListHeadings(ctx context.Context, slug string) ([]blog.Heading, error) {
	rows, err := s.reader().QueryContext(ctx, listHeadingsQuery, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to list headings: %w", err)
	}
	defer rows.Close()

	headings := []blog.Heading{}
	for rows.Next() {
		var h blog.Heading
		if err := rows.Scan(&h.ID, &h.PostID, &h.Title, &h.Slug, &h.Level, &h.Order); err != nil {
			return nil, fmt.Errorf("failed to scan heading: %w", err)
		}
		headings = append(headings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list headings: %w", err)
	}
	return headings, nil
}
