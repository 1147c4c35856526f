package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStaticFetch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "post-crawler-test", r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><article>hi</article></body></html>`))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{UserAgent: "post-crawler-test", Timeout: 2 * time.Second}, zap.NewNop())
	html, err := f.Fetch(context.Background(), srv.URL+"/page/1/")
	require.NoError(t, err)
	assert.Contains(t, html, "<article>hi</article>")

	// the collector allows revisits so the walk can refetch a page
	_, err = f.Fetch(context.Background(), srv.URL+"/page/1/")
	require.NoError(t, err)
}

func TestStaticFetchErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "gone", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{Timeout: 2 * time.Second}, zap.NewNop())
	_, err := f.Fetch(context.Background(), srv.URL+"/broken")
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrEmptyPage)
}

func TestStaticFetchCanceled(t *testing.T) {
	t.Parallel()
	f := NewStatic(StaticConfig{RequestsPerSecond: 0.001}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, "http://127.0.0.1:1/")
	assert.Error(t, err)
}

func TestHeadlessActions(t *testing.T) {
	t.Parallel()
	h := NewHeadless(HeadlessConfig{UserAgent: "ua", SettleDelay: time.Second}, zap.NewNop())
	defer h.Close()

	var html string
	// user agent, navigate, wait ready, settle, outer html
	assert.Len(t, h.actions("https://blog.example.com/", &html), 5)
	assert.Equal(t, 45*time.Second, h.cfg.NavigationTimeout)

	bare := NewHeadless(HeadlessConfig{NavigationTimeout: time.Second}, zap.NewNop())
	defer bare.Close()
	assert.Len(t, bare.actions("https://blog.example.com/", &html), 3)
	assert.Nil(t, bare.limiter)
}
