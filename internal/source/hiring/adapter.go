// Package hiring scrapes the public hiring site search pages.
package hiring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/timmy/jobalerts/internal/domain"
	"github.com/timmy/jobalerts/internal/logger"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// blockSelector lists elements whose boundaries become line breaks in the
// extracted page text.
const blockSelector = "p,div,li,h1,h2,h3,h4,h5,h6,tr,section,article,header,footer"

// Config configures an Adapter.
type Config struct {
	Region     string
	SearchURL  string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// Adapter fetches one region's search page and parses the listed postings.
type Adapter struct {
	client    *resty.Client
	region    string
	searchURL string
}

// NewAdapter creates a hiring site adapter.
// Parameters:
//   - cfg: region, search URL and HTTP settings.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(cfg Config) *Adapter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(2*time.Second).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Adapter{
		client:    client,
		region:    cfg.Region,
		searchURL: cfg.SearchURL,
	}
}

// Name implements source.Source.
func (a *Adapter) Name() string {
	return "hiring:" + a.region
}

// SearchURL returns the page this adapter scrapes.
func (a *Adapter) SearchURL() string {
	return a.searchURL
}

// FetchJobs implements source.Source.
func (a *Adapter) FetchJobs(ctx context.Context) ([]domain.RawJob, error) {
	start := time.Now()

	resp, err := a.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(a.searchURL)
	if err != nil {
		return nil, &domain.FetchError{Source: a.Name(), Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= 400 {
		return nil, &domain.FetchError{
			Source: a.Name(),
			Err:    fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), a.searchURL),
		}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &domain.FetchError{Source: a.Name(), Err: fmt.Errorf("parse html: %w", err)}
	}

	jobs := ParseJobsFromText(PageText(doc))

	logger.With(logger.Fields{
		logger.FieldSource: a.Name(),
	}).WithCount(len(jobs)).WithDuration(time.Since(start)).
		Info(ctx, "Fetched search page")

	return jobs, nil
}

// PageText renders the visible body text with one line per block element.
func PageText(doc *goquery.Document) string {
	doc.Find("script,style,noscript,template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})
	return strings.TrimSpace(doc.Find("body").Text())
}
