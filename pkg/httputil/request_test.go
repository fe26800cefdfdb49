package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"slug":"post-1"}`, false},
		{"invalid", `{"slug":`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tt.body))
			var dest struct {
				Slug string `json:"slug"`
			}
			err := ParseJSON(r, &dest)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "post-1", dest.Slug)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("nope"))
	w := httptest.NewRecorder()
	var dest map[string]string

	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5&bad=x", nil)

	v, err := ParseQueryInt(r, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	v, err = ParseQueryInt(r, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(r, "bad", 10)
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?slug=post-1", nil)
	assert.Equal(t, "post-1", ParseQueryString(r, "slug", ""))
	assert.Equal(t, "dflt", ParseQueryString(r, "other", "dflt"))
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query    string
		page     int
		size     int
		wantErrs bool
	}{
		{"", 1, 10, false},
		{"page=3&page_size=5", 3, 5, false},
		{"page_size=1000", 1, 100, false},
		{"page=0", 0, 0, true},
		{"page_size=-1", 0, 0, true},
		{"page=abc", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page, size, err := ParsePagination(r, 10, 100)
			if tt.wantErrs {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.size, size)
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"forwarded first entry", "203.0.113.1, 10.0.0.1", "10.0.0.2:1234", "203.0.113.1"},
		{"forwarded skips empty entries", " , 198.51.100.7", "10.0.0.2:1234", "198.51.100.7"},
		{"blank forwarded header", "  ", "10.0.0.2:1234", "10.0.0.2"},
		{"no header", "", "192.0.2.10:5555", "192.0.2.10"},
		{"ipv6 remote", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"remote without port", "", "192.0.2.10", "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}
