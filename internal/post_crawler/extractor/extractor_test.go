package extractor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"post-crawler/internal/post_crawler/model"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestListing(t *testing.T) {
	t.Parallel()
	posts, err := New().Listing(fixture(t, "listing.html"), 15)
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, model.SummaryFields{
		Title:    "First Post",
		URL:      "https://blog.example.com/stories/first-post/",
		Author:   "Alice",
		Date:     "March 3, 2025",
		Views:    "1,204",
		Subtitle: "Opening paragraph of the first post.",
		Category: "Stories",
		Tags:     []string{"Stories", "night"},
	}, posts[0])

	second := posts[1]
	assert.Equal(t, "Second Post", second.Title)
	assert.Equal(t, model.NoAuthor, second.Author)
	assert.Equal(t, model.NoDate, second.Date)
	assert.Equal(t, model.NoViews, second.Views)
	assert.Equal(t, model.NoSubtitle, second.Subtitle)
	assert.Equal(t, model.NoCategory, second.Category)
	assert.Empty(t, second.Tags)

	assert.Equal(t, model.NoTitle, posts[2].Title)
	assert.Equal(t, model.NoURL, posts[2].URL)
}

func TestListingLimit(t *testing.T) {
	t.Parallel()
	posts, err := New().Listing(fixture(t, "listing.html"), 1)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestDetail(t *testing.T) {
	t.Parallel()
	url := "https://blog.example.com/stories/first-post/"
	d, err := New().Detail(fixture(t, "detail.html"), url)
	require.NoError(t, err)

	assert.Equal(t, url, d.URL)
	assert.Equal(t, "First Post", d.Title)
	assert.Equal(t, "Alice", d.Author)
	assert.Equal(t, "March 3, 2025", d.Date)
	assert.Equal(t, "One। Two।", d.Subtitle)
	assert.Equal(t, "Stories", d.Category)
	assert.Equal(t, []string{"Stories", "night"}, d.Tags)
	assert.Equal(t, model.PostRef{Name: "Zero Post", URL: "https://blog.example.com/stories/zero-post/"}, d.PreviousPost)
	assert.Equal(t, []model.PostRef{
		{Name: "Related A", URL: "https://blog.example.com/stories/related-a/"},
		{Name: "Related B", URL: "https://blog.example.com/stories/related-b/"},
	}, d.SuggestedPosts)
	assert.True(t, d.Usable())
}

func TestDetailEmptyPage(t *testing.T) {
	t.Parallel()
	e := &Extractor{ParagraphSuffix: "."}
	d, err := e.Detail("<html><body></body></html>", "https://blog.example.com/x/")
	require.NoError(t, err)
	assert.Equal(t, model.NoTitle, d.Title)
	assert.Equal(t, model.NoContent, d.Subtitle)
	assert.Equal(t, model.MissingPreviousPost, d.PreviousPost)
	assert.Empty(t, d.SuggestedPosts)
	assert.False(t, d.Usable())
}

func TestCategories(t *testing.T) {
	t.Parallel()
	cats, err := New().Categories(fixture(t, "detail.html"))
	require.NoError(t, err)
	assert.Equal(t, []model.Category{
		{Name: "Stories", URL: "https://blog.example.com/category/stories/", Count: 1234},
		{Name: "Poems", URL: "https://blog.example.com/category/poems/", Count: 0},
	}, cats)
}

func TestParseCount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1234, parseCount("(1,234)"))
	assert.Equal(t, 7, parseCount(" (7) "))
	assert.Equal(t, 0, parseCount(""))
	assert.Equal(t, 0, parseCount("(many)"))
}
