package scraper

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"post-crawler/internal/post_crawler/fetcher"
	"post-crawler/internal/post_crawler/model"
)

type pages map[string]string

func (p pages) Fetch(_ context.Context, url string) (string, error) {
	html, ok := p[url]
	if !ok {
		return "", fetcher.ErrEmptyPage
	}
	return html, nil
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("../extractor/testdata/" + name)
	require.NoError(t, err)
	return string(b)
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://blog.example.com/page/2/", PageURL("https://blog.example.com", 2))
	assert.Equal(t, "https://blog.example.com/category/stories/page/1/", PageURL("https://blog.example.com/category/stories/", 1))
}

func TestHomepage(t *testing.T) {
	f := pages{"https://blog.example.com/page/3/": fixture(t, "listing.html")}
	s := New("https://blog.example.com/", f, zap.NewNop(), nil)

	got, err := s.Homepage(context.Background(), 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, 2, got.Limit)
	assert.Equal(t, 2, got.TotalPosts)
	require.Len(t, got.Posts, 2)
	assert.Equal(t, "First Post", got.Posts[0].Title)
	assert.Empty(t, got.CategoryURL)
}

func TestCategoryPage(t *testing.T) {
	cat := "https://blog.example.com/category/stories"
	f := pages{cat + "/page/1/": fixture(t, "listing.html")}
	s := New("https://blog.example.com", f, zap.NewNop(), nil)

	got, err := s.CategoryPage(context.Background(), cat, 1, 15)
	require.NoError(t, err)
	assert.Equal(t, cat, got.CategoryURL)
	assert.Equal(t, 3, got.TotalPosts)
}

func TestPost(t *testing.T) {
	url := "https://blog.example.com/stories/first-post/"
	s := New("https://blog.example.com", pages{url: fixture(t, "detail.html")}, zap.NewNop(), nil)

	got, err := s.Post(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, url, got.URL)
	assert.True(t, got.Usable())
}

func TestPostWithoutContent(t *testing.T) {
	url := "https://blog.example.com/empty/"
	s := New("https://blog.example.com", pages{url: "<html><body><div>nothing</div></body></html>"}, zap.NewNop(), nil)

	_, err := s.Post(context.Background(), url)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestFetchFailure(t *testing.T) {
	s := New("https://blog.example.com", pages{}, zap.NewNop(), nil)

	_, err := s.Post(context.Background(), "https://blog.example.com/missing/")
	assert.True(t, errors.Is(err, fetcher.ErrEmptyPage))

	_, err = s.Homepage(context.Background(), 1, 15)
	assert.ErrorIs(t, err, fetcher.ErrEmptyPage)
}

func TestCategories(t *testing.T) {
	url := "https://blog.example.com/stories/first-post/"
	s := New("https://blog.example.com", pages{url: fixture(t, "detail.html")}, zap.NewNop(), nil)

	got, err := s.Categories(context.Background(), url)
	require.NoError(t, err)
	assert.Contains(t, got, model.Category{Name: "Stories", URL: "https://blog.example.com/category/stories/", Count: 1234})
}
