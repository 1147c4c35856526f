// Package api serves the crawler's HTTP interface: on-demand scrapes that go
// through the coordinator and read-only queries over the stores.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"post-crawler/internal/middleware/cors"
	"post-crawler/internal/middleware/logger"
	"post-crawler/internal/post_crawler/model"
	"post-crawler/internal/post_crawler/processor"
	"post-crawler/internal/post_crawler/store"
)

// MaxLimit caps the page size of every listing endpoint.
const MaxLimit = 15

type Scraper interface {
	Homepage(ctx context.Context, page, limit int) (model.ListingPage, error)
	CategoryPage(ctx context.Context, categoryURL string, page, limit int) (model.ListingPage, error)
	Categories(ctx context.Context, url string) ([]model.Category, error)
}

type Ingester interface {
	IngestListing(ctx context.Context, posts []model.SummaryFields) processor.ListingResult
	EnsureDetail(ctx context.Context, url string) (processor.DetailResult, error)
}

type Server struct {
	Log        *zap.Logger
	Store      store.Store
	Scraper    Scraper
	Ingest     Ingester
	Gatherer   prometheus.Gatherer
	CORSOrigin string
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(logger.Gin(s.Log), logger.Recovery(s.Log))
	if s.CORSOrigin != "" {
		r.Use(cors.Allow(s.CORSOrigin))
	}
	_ = r.SetTrustedProxies(nil)

	r.GET("/scrape-homepage", s.scrapeHomepage) // ?page=1&limit=15
	r.GET("/get-stored-homepage", s.storedHomepage)
	r.GET("/scrape-post", s.scrapePost) // ?url=
	r.GET("/get-scrape-post-data", s.postData)
	r.GET("/scrape-category", s.scrapeCategory) // ?url=&page=1&limit=15
	r.GET("/api/categories", s.categories)      // ?url=
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	g := s.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
	return r
}

func (s *Server) scrapeHomepage(c *gin.Context) {
	page, limit, ok := paging(c)
	if !ok {
		return
	}
	listing, err := s.Scraper.Homepage(c.Request.Context(), page, limit)
	if err != nil {
		s.Log.Warn("Failed to scrape homepage", zap.Int("page", page), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to scrape homepage: " + err.Error()})
		return
	}
	res := s.Ingest.IngestListing(c.Request.Context(), listing.Posts)
	c.JSON(http.StatusOK, gin.H{
		"page":        page,
		"limit":       limit,
		"total_posts": len(res.Saved),
		"failed":      res.Failed,
		"posts":       res.Saved,
	})
}

func (s *Server) storedHomepage(c *gin.Context) {
	page, limit, ok := paging(c)
	if !ok {
		return
	}
	posts, total, err := s.Store.ListSummaries(c.Request.Context(), page, limit)
	if err != nil {
		s.Log.Error("Failed to list summaries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"page":        page,
		"limit":       limit,
		"total_posts": total,
		"posts":       posts,
	})
}

func (s *Server) scrapePost(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	}
	res, err := s.Ingest.EnsureDetail(c.Request.Context(), url)
	if err != nil {
		status := statusOf(err)
		if status >= http.StatusInternalServerError {
			s.Log.Error("Failed to scrape post", zap.String("url", url), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if res.Existing {
		c.JSON(http.StatusOK, gin.H{"message": "Post already exists", "data": res.Detail})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Post scraped successfully", "data": res.Detail})
}

// statusOf maps coordinator errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, processor.ErrValidation), errors.Is(err, processor.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, processor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, processor.ErrExtractionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// postData looks a post up in the summaries by id, title and url, falling
// back to the details by post_id.
func (s *Server) postData(c *gin.Context) {
	title, url := c.Query("title"), c.Query("url")
	id, postID := c.Query("id"), c.Query("post_id")
	if title == "" && url == "" && id == "" && postID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing title, URL, id, or post_id parameter"})
		return
	}
	ctx := c.Request.Context()

	q := store.SummaryQuery{Title: title, URL: url}
	if id != "" {
		q = store.SummaryQuery{ID: id}
	}
	if !q.Empty() {
		sum, err := s.Store.FindSummary(ctx, q)
		if err == nil {
			c.JSON(http.StatusOK, sum)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.internalError(c, err)
			return
		}
	}

	if postID != "" {
		d, err := s.Store.FindDetailByPostID(ctx, postID)
		if err == nil {
			c.JSON(http.StatusOK, d)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.internalError(c, err)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
}

func (s *Server) scrapeCategory(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Category URL parameter is required"})
		return
	}
	page, limit, ok := paging(c)
	if !ok {
		return
	}
	listing, err := s.Scraper.CategoryPage(c.Request.Context(), url, page, limit)
	if err != nil {
		s.Log.Warn("Failed to scrape category", zap.String("url", url), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to scrape category: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, listing)
}

func (s *Server) categories(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	}
	cats, err := s.Scraper.Categories(c.Request.Context(), url)
	if err != nil {
		s.Log.Warn("Failed to extract categories", zap.String("url", url), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to extract categories: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.Log.Error("Store lookup failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// paging reads page and limit, writing a 400 and returning false on bad input.
func paging(c *gin.Context) (page, limit int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(MaxLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, 0, false
	}
	if limit > MaxLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Limit cannot be greater than 15"})
		return 0, 0, false
	}
	return page, limit, true
}
