package httputil

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ParsePagination reads the page and page_size query parameters. page starts
// at 1; page_size is capped at maxSize.
func ParsePagination(r *http.Request, defaultSize, maxSize int) (page, size int, err error) {
	page, err = ParseQueryInt(r, "page", 1)
	if err != nil {
		return 0, 0, err
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("page must be positive")
	}
	size, err = ParseQueryInt(r, "page_size", defaultSize)
	if err != nil {
		return 0, 0, err
	}
	if size < 1 {
		return 0, 0, fmt.Errorf("page_size must be positive")
	}
	if size > maxSize {
		size = maxSize
	}
	return page, size, nil
}

// Paginate returns the bounds of page within a list of total items. ok is
// false when the page lies past the end of a non-empty list.
func Paginate(total, page, size int) (start, end int, ok bool) {
	start = (page - 1) * size
	if start >= total {
		return 0, 0, total == 0 && page == 1
	}
	end = start + size
	if end > total {
		end = total
	}
	return start, end, true
}

func pageLink(r *http.Request, page int) *string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}

// WritePage writes one page of items with count and next/previous links.
// A page past the end is a 404.
func WritePage[T any](w http.ResponseWriter, r *http.Request, items []T, page, size int) error {
	start, end, ok := Paginate(len(items), page, size)
	if !ok {
		WriteNotFound(w, "invalid page")
		return nil
	}

	env := PageEnvelope{
		Success: true,
		Status:  http.StatusOK,
		Count:   len(items),
		Results: items[start:end],
	}
	if end < len(items) {
		env.Next = pageLink(r, page+1)
	}
	if page > 1 {
		env.Previous = pageLink(r, page-1)
	}
	return WriteJSON(w, http.StatusOK, env)
}
