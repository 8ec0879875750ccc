// Package crawler implements the bounded, in-domain breadth-first crawl
// described in spec §4.E: fetch, parse, extract page signals, and enqueue
// unvisited internal links until the frontier empties or a page cap is hit.
package crawler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shakhawat2680/autoseo/internal/telemetry"
)

const (
	fetchTimeout    = 10 * time.Second
	politenessDelay = 500 * time.Millisecond
)

// Image is one <img> found on a page.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	HasAlt bool   `json:"has_alt"`
}

// Link is one <a href> found on a page.
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
}

// Page is one successfully fetched and parsed page (spec §4.E contract).
type Page struct {
	URL             string        `json:"url"`
	Title           string        `json:"title"`
	MetaDescription string        `json:"meta_description"`
	H1              []string      `json:"h1"`
	H2              []string      `json:"h2"`
	Images          []Image       `json:"images"`
	Links           []Link        `json:"links"`
	WordCount       int           `json:"word_count"`
	LoadTime        time.Duration `json:"load_time"`
	StatusCode      int           `json:"status_code"`
}

// Crawler performs one bounded BFS crawl. A Crawler value is used for
// exactly one audit task and is never shared across goroutines (spec §5).
type Crawler struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Crawler with a fresh 10-second-timeout HTTP client, grounded
// on the teacher's one-client-per-integration convention (pkg/bookowl.Client).
func New(logger *slog.Logger) *Crawler {
	return &Crawler{
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// Crawl runs a breadth-first crawl starting at startURL, visiting at most
// maxPages pages, never leaving startURL's host (spec §4.E algorithm).
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxPages int) ([]Page, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]bool)
	pending := []string{startURL}
	var pages []Page

	for len(pending) > 0 && len(pages) < maxPages {
		if err := ctx.Err(); err != nil {
			return pages, err
		}

		next := pending[0]
		pending = pending[1:]
		if visited[next] {
			continue
		}
		visited[next] = true

		page, links, ok := c.fetchAndParse(ctx, next, start.Host)
		if !ok {
			continue
		}
		telemetry.CrawlerPagesFetchedTotal.Inc()
		pages = append(pages, page)

		for _, link := range links {
			if link.Internal && !visited[link.URL] {
				pending = append(pending, link.URL)
			}
		}

		if len(pending) > 0 && len(pages) < maxPages {
			select {
			case <-ctx.Done():
				return pages, ctx.Err()
			case <-time.After(politenessDelay):
			}
		}
	}

	return pages, nil
}

// fetchAndParse fetches pageURL, parsing it into a Page plus its outgoing
// links if the fetch succeeds with status 200. A failed or non-200 fetch is
// logged and skipped, never fatal (spec §4.E).
func (c *Crawler) fetchAndParse(ctx context.Context, pageURL, startHost string) (Page, []Link, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		c.logger.Warn("building crawl request", "url", pageURL, "error", err)
		return Page{}, nil, false
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	loadTime := time.Since(start)
	if err != nil {
		c.logger.Warn("fetching page", "url", pageURL, "error", err)
		return Page{}, nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("skipping non-200 page", "url", pageURL, "status", resp.StatusCode)
		return Page{}, nil, false
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		c.logger.Warn("parsing page", "url", pageURL, "error", err)
		return Page{}, nil, false
	}

	page := Page{
		URL:        pageURL,
		StatusCode: resp.StatusCode,
		LoadTime:   loadTime,
	}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	page.MetaDescription, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
	page.MetaDescription = strings.TrimSpace(page.MetaDescription)

	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		page.H1 = append(page.H1, strings.TrimSpace(s.Text()))
	})
	doc.Find("h2").Each(func(_ int, s *goquery.Selection) {
		page.H2 = append(page.H2, strings.TrimSpace(s.Text()))
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, hasAlt := s.Attr("alt")
		page.Images = append(page.Images, Image{Src: src, Alt: alt, HasAlt: hasAlt})
	})

	bodyText := strings.TrimSpace(doc.Find("body").Text())
	if bodyText != "" {
		page.WordCount = len(strings.Fields(bodyText))
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := resolveLink(pageURL, startHost, href, strings.TrimSpace(s.Text()))
		if ok {
			links = append(links, link)
			page.Links = append(page.Links, link)
		}
	})

	return page, links, true
}

// resolveLink resolves href against base, classifies it internal/external by
// host comparison against startHost, and drops fragment/script/mailto links
// (spec §4.E definitions).
func resolveLink(base, startHost, href, text string) (Link, bool) {
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return Link{}, false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return Link{}, false
	}
	resolved, err := baseURL.Parse(href)
	if err != nil {
		return Link{}, false
	}
	resolved.Fragment = ""

	return Link{
		URL:      resolved.String(),
		Text:     text,
		Internal: resolved.Host == startHost,
	}, true
}
