// Package webfetch downloads a web page and extracts its readable text so it
// can be added to a question as context.
package webfetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mapachekurt/llm-council/internal/logger"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxChars = 20000
	DefaultCacheTTL = 5 * time.Minute

	// UserAgent is sent with every request.
	UserAgent = "Mozilla/5.0 (compatible; LLM-Council/1.0; +https://github.com/mapachekurt/llm-council)"

	maxAttempts = 2
)

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL: only absolute http and https URLs are supported")

	// ErrNoContent is returned when a page has no extractable text.
	ErrNoContent = errors.New("no readable content found")
)

// Page is the extracted content of a URL.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Truncated bool      `json:"truncated"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Fetcher downloads and extracts pages, caching results per URL.
type Fetcher struct {
	client     *http.Client
	timeout    time.Duration
	maxChars   int
	retryDelay time.Duration
	cache      *PageCache
	logger     *zap.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the overall timeout of one fetch, retries included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxChars caps the extracted content length in characters.
func WithMaxChars(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxChars = n
		}
	}
}

// WithCache sets the page cache. A nil cache disables caching.
func WithCache(c *PageCache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithRetryDelay sets the wait before retrying a failed request.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) { f.retryDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{},
		timeout:    DefaultTimeout,
		maxChars:   DefaultMaxChars,
		retryDelay: 2 * time.Second,
		cache:      NewPageCache(DefaultCacheSize, DefaultCacheTTL),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logger.OrNop(f.logger).Named("webfetch")
	return f
}

// Fetch returns the readable content of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}
	key := u.String()

	if f.cache != nil {
		if page, ok := f.cache.Get(key); ok {
			f.logger.Debug("cache hit", zap.String("url", key))
			return page, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	doc, err := f.download(ctx, key)
	if err != nil {
		return nil, err
	}

	page := extract(doc, f.maxChars)
	if page.Content == "" {
		return nil, ErrNoContent
	}
	page.URL = key
	page.FetchedAt = time.Now().UTC()

	if f.cache != nil {
		f.cache.Set(key, page)
	}
	f.logger.Info("fetched page",
		zap.String("url", key),
		zap.Int("chars", len([]rune(page.Content))),
		zap.Bool("truncated", page.Truncated),
	)
	return page, nil
}

func (f *Fetcher) download(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	var resp *http.Response
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err = f.client.Do(req)
		if err == nil || ctx.Err() != nil || attempt == maxAttempts {
			break
		}
		f.logger.Warn("fetch failed, retrying",
			zap.String("url", target),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
		case <-time.After(f.retryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, target)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// extract pulls the title and the readable text out of doc.
func extract(doc *goquery.Document, maxChars int) *Page {
	doc.Find("script, style, noscript, template, iframe, svg, nav, footer, header, aside, form").Remove()

	title := collapse(doc.Find("title").First().Text())
	if title == "" {
		title = collapse(doc.Find("h1").First().Text())
	}

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}

	var blocks []string
	root.Find("p, h1, h2, h3, h4, h5, h6, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		// nested blocks are picked up on their own
		if s.Find("p, li, pre").Length() > 0 {
			return
		}
		var text string
		if goquery.NodeName(s) == "pre" {
			text = strings.TrimSpace(s.Text())
		} else {
			text = collapse(s.Text())
		}
		if text != "" {
			blocks = append(blocks, text)
		}
	})

	content := strings.Join(blocks, "\n\n")
	if content == "" {
		content = collapse(root.Text())
	}

	content, truncated := truncate(content, maxChars)
	return &Page{Title: title, Content: content, Truncated: truncated}
}

// collapse trims s and replaces every run of whitespace with a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s, false
	}
	return string(runes[:maxChars]), true
}
