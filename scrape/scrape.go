// Package scrape fetches web pages and converts them into documents ready
// for ingestion.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	apperrors "github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/pkg/logging"
	"github.com/sweetpotato0/docarag/rag/document"
	"github.com/sweetpotato0/docarag/rag/preprocess"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "docarag-scraper/1.0"
	maxBodyBytes     = 8 << 20
)

// Scraper downloads pages and extracts their readable text.
type Scraper struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option customises the scraper.
type Option func(*Scraper)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) {
		if client != nil {
			s.client = client
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with requests.
func WithUserAgent(ua string) Option {
	return func(s *Scraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// New builds a scraper with sane timeouts.
func New(opts ...Option) *Scraper {
	s := &Scraper{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
		logger:    logging.WithComponent("scrape"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches the URL and returns a cleaned HTML document.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*document.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid url %q", apperrors.ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.String(), apperrors.ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", u.String(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	doc, err := Parse(string(body), u.String())
	if err != nil {
		return nil, err
	}
	s.logger.Info("page scraped", "url", u.String(), "title", doc.Title, "bytes", len(body))
	return doc, nil
}

// Parse extracts a document from raw HTML. The sourceURL is recorded in the
// document metadata and used as a filename fallback.
func Parse(html, sourceURL string) (*document.Document, error) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(gq.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(gq.Find("h1").First().Text())
	}

	// strip chrome before text extraction
	gq.Find("script,style,nav,header,footer,aside,noscript,iframe,form").Remove()

	inner, err := goquery.OuterHtml(gq.Selection)
	if err != nil {
		return nil, fmt.Errorf("serialize html: %w", err)
	}
	text, err := preprocess.HTMLToText(inner)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	text = preprocess.Preprocess(text)
	if text == "" {
		return nil, fmt.Errorf("%w: page has no extractable content", apperrors.ErrInvalidInput)
	}

	doc := &document.Document{
		Filename:   filenameFor(sourceURL, title),
		Title:      title,
		SourceType: document.SourceHTML,
		Content:    text,
		Metadata:   map[string]any{"url": sourceURL},
	}
	document.EnsureDocumentID(doc)
	return doc, nil
}

func filenameFor(sourceURL, title string) string {
	if u, err := url.Parse(sourceURL); err == nil && u.Host != "" {
		name := u.Host + u.Path
		return strings.TrimSuffix(name, "/")
	}
	if title != "" {
		return title
	}
	return "untitled"
}
