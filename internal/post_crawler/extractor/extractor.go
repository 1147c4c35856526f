// Package extractor turns listing, detail and category pages into field sets,
// substituting the model sentinels for anything missing.
package extractor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"post-crawler/internal/post_crawler/model"
)

// DefaultParagraphSuffix terminates each paragraph of a post body.
const DefaultParagraphSuffix = "।"

type Extractor struct {
	ParagraphSuffix string
}

func New() *Extractor {
	return &Extractor{ParagraphSuffix: DefaultParagraphSuffix}
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Listing extracts at most limit post summaries from a listing page.
func (e *Extractor) Listing(html string, limit int) ([]model.SummaryFields, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	posts := []model.SummaryFields{}
	doc.Find("article").EachWithBreak(func(i int, art *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		posts = append(posts, summaryOf(art))
		return true
	})
	return posts, nil
}

func summaryOf(art *goquery.Selection) model.SummaryFields {
	title, url := model.NoTitle, model.NoURL
	if h2 := art.Find("h2.entry-title").First(); h2.Length() > 0 {
		if a := h2.Find("a").First(); a.Length() > 0 {
			title = strings.TrimSpace(a.Text())
			if href, ok := a.Attr("href"); ok && href != "" {
				url = href
			}
		}
	}
	return model.SummaryFields{
		Title:    title,
		URL:      url,
		Author:   textOr(art.Find("span.author-name"), model.NoAuthor),
		Date:     textOr(art.Find("time.entry-date"), model.NoDate),
		Views:    textOr(art.Find("span.post-views-eye"), model.NoViews),
		Subtitle: textOr(art.Find("p"), model.NoSubtitle),
		Category: textOr(art.Find(`a[rel="category tag"]`), model.NoCategory),
		Tags:     tags(art),
	}
}

// Detail extracts the full content of a post page fetched from url.
func (e *Extractor) Detail(html, url string) (model.DetailFields, error) {
	doc, err := parse(html)
	if err != nil {
		return model.DetailFields{}, err
	}
	root := doc.Selection
	return model.DetailFields{
		URL:            url,
		Title:          textOr(root.Find("h1"), model.NoTitle),
		Author:         textOr(root.Find("span.author"), model.NoAuthor),
		Date:           textOr(root.Find("time"), model.NoDate),
		Views:          textOr(root.Find("span.post-views-eye"), model.NoViews),
		Subtitle:       e.body(root),
		Category:       textOr(root.Find(`a[rel="category tag"]`), model.NoCategory),
		Tags:           tags(root),
		PreviousPost:   previousPost(root),
		SuggestedPosts: suggestedPosts(root),
	}, nil
}

func (e *Extractor) body(root *goquery.Selection) string {
	content := root.Find("div.entry-content").First()
	if content.Length() == 0 {
		return model.NoContent
	}
	var paragraphs []string
	content.Find("p").Each(func(_ int, p *goquery.Selection) {
		paragraphs = append(paragraphs, strings.TrimSpace(p.Text())+e.ParagraphSuffix)
	})
	return strings.Join(paragraphs, " ")
}

func previousPost(root *goquery.Selection) model.PostRef {
	a := root.Find("div.nav-previous").First().Find(`a[rel~="prev"]`).First()
	if a.Length() == 0 {
		return model.MissingPreviousPost
	}
	href, _ := a.Attr("href")
	return model.PostRef{Name: strings.TrimSpace(a.Text()), URL: href}
}

// suggestedPosts reads the second related-stories section; the first one is
// the site-wide block repeated on every page.
func suggestedPosts(root *goquery.Selection) []model.PostRef {
	sections := root.Find("section.related-stories")
	out := []model.PostRef{}
	if sections.Length() < 2 {
		return out
	}
	sections.Eq(1).Find(`a[rel~="bookmark"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		out = append(out, model.PostRef{Name: strings.TrimSpace(a.Text()), URL: href})
	})
	return out
}

// Categories extracts the category widget with per-category post counts.
func (e *Extractor) Categories(html string) ([]model.Category, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}
	out := []model.Category{}
	doc.Find(".wp-block-categories-list li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a").First()
		if a.Length() == 0 {
			return
		}
		name := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		rest := strings.TrimSpace(strings.Replace(li.Text(), name, "", 1))
		out = append(out, model.Category{Name: name, URL: href, Count: parseCount(rest)})
	})
	return out, nil
}

// parseCount reads widget counts such as "(1,234)". Anything unparsable is 0.
func parseCount(s string) int {
	s = strings.NewReplacer("(", "", ")", "", ",", "").Replace(s)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func textOr(sel *goquery.Selection, fallback string) string {
	first := sel.First()
	if first.Length() == 0 {
		return fallback
	}
	return strings.TrimSpace(first.Text())
}

func tags(sel *goquery.Selection) []string {
	out := []string{}
	sel.Find(`a[rel~="tag"]`).Each(func(_ int, a *goquery.Selection) {
		out = append(out, strings.TrimSpace(a.Text()))
	})
	return out
}
