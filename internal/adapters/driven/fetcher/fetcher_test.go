package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/core/domain"
)

func TestFetch_OK(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>Hi</title></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "stash/1.2.3"})
	page, err := f.Fetch(context.Background(), srv.URL+"/page", time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, "<html><title>Hi</title></html>", string(page.Body))
	assert.Equal(t, srv.URL+"/page", page.URL)
	assert.Equal(t, "stash/1.2.3", ua)
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := New(Config{}).Fetch(context.Background(), srv.URL+"/old", time.Second)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", page.URL)
}

func TestFetch_TruncatesLargeBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	page, err := New(Config{MaxBytes: 100}).Fetch(context.Background(), srv.URL, time.Second)
	require.NoError(t, err)
	assert.Len(t, page.Body, 100)
}

func TestFetch_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusNotFound, false},
		{http.StatusGone, false},
		{http.StatusForbidden, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := New(Config{}).Fetch(context.Background(), srv.URL, time.Second)
			require.Error(t, err)
			assert.Equal(t, tt.retryable, domain.IsRetryable(err), err.Error())
			if !tt.retryable {
				assert.ErrorIs(t, err, domain.ErrPermanent)
			}
		})
	}
}

func TestFetch_TimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Config{}).Fetch(context.Background(), srv.URL, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestFetch_RejectsNonHTTP(t *testing.T) {
	f := New(Config{})
	for _, raw := range []string{"ftp://example.com", "not a url", "file:///etc/passwd", "https://"} {
		_, err := f.Fetch(context.Background(), raw, time.Second)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, raw)
	}
}
