package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/pipeline"
	"github.com/jarcoal/httpmock"
)

const testBase = "http://example.test/"

const (
	poetryURL  = testBase + "catalogue/category/books/poetry_23/index.html"
	poetryPage = testBase + "catalogue/category/books/poetry_23/page-2.html"
	mysteryURL = testBase + "catalogue/category/books/mystery_3/index.html"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "server"},
		{name: "bad gateway", err: nil, statusCode: http.StatusBadGateway, expected: "server"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !retryable(ErrServer{Err: errors.New("boom")}) {
		t.Fatalf("server errors should be retried")
	}
	if !retryable(ErrTimeout{Err: context.DeadlineExceeded}) {
		t.Fatalf("timeouts should be retried")
	}
	if retryable(ErrNotFound{Err: errors.New("missing")}) {
		t.Fatalf("not found should not be retried")
	}
}

func TestFetcherBackoffCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if got := f.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("first backoff = %v, want 200ms", got)
	}
	if got := f.backoff(2); got != 400*time.Millisecond {
		t.Fatalf("second backoff = %v, want 400ms", got)
	}
	if got := f.backoff(4); got != cfg.RetryBackoffMax {
		t.Fatalf("delay %v should be capped at %v", got, cfg.RetryBackoffMax)
	}
}

func TestFetchRejectsMalformedURL(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	for _, raw := range []string{"", "not a url", "ftp://example.test/file", "/relative/index.html"} {
		_, err := s.fetcher.Fetch(context.Background(), raw, nil)
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("Fetch(%q) expected FetchError, got %v", raw, err)
		}
	}
	if n := transport.GetTotalCallCount(); n != 0 {
		t.Fatalf("malformed urls should not reach the network, calls=%d", n)
	}
}

func TestRunCategoryFollowsPagination(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	first := registerBooks(transport, 1, 20)
	second := registerBooks(transport, 21, 4)
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(200, listingHTML("Poetry", first, "page-2.html")))
	transport.RegisterResponder("GET", poetryPage, httpmock.NewStringResponder(200, listingHTML("Poetry", second, "")))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeCategory, URL: poetryURL})

	if len(records) != 24 || result.TotalCount != 24 {
		t.Fatalf("records=%d total=%d, want 24", len(records), result.TotalCount)
	}
	if result.PageCount != 2 {
		t.Fatalf("pages=%d, want 2", result.PageCount)
	}
	if result.ErrorCount != 0 {
		t.Fatalf("errors=%d (%v), want 0", result.ErrorCount, result.ErrorsByType)
	}
	if result.ImageCount != 24 {
		t.Fatalf("images=%d, want 24", result.ImageCount)
	}
	if result.RunID == "" {
		t.Fatalf("run id should be set")
	}

	seen := make(map[string]bool)
	for i, rec := range records {
		if want := bookUPC(i + 1); rec.UPC != want {
			t.Fatalf("record %d upc=%q, want %q (listing order)", i, rec.UPC, want)
		}
		if seen[rec.UPC] {
			t.Fatalf("duplicate upc %q", rec.UPC)
		}
		seen[rec.UPC] = true
		if rec.Category != "Poetry" {
			t.Fatalf("category=%q, want Poetry", rec.Category)
		}
		if rec.Price != "10.00" || rec.Stock != 5 || rec.RatingNumeric != 3 {
			t.Fatalf("record not normalised: %+v", rec)
		}
		want := filepath.Join(s.cfg.ImagesDir, "Poetry", rec.UPC+".jpg")
		if rec.ImagePath != want {
			t.Fatalf("image path=%q, want %q", rec.ImagePath, want)
		}
		if _, err := os.Stat(want); err != nil {
			t.Fatalf("image not stored: %v", err)
		}
	}

	for key, count := range transport.GetCallCountInfo() {
		if count > 1 {
			t.Fatalf("%s fetched %d times", key, count)
		}
	}
}

func TestRunSkipsFailedDetailPage(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	links := registerBooks(transport, 1, 24)
	broken := testBase + links[6][1:]
	transport.RegisterResponder("GET", broken, httpmock.NewStringResponder(http.StatusInternalServerError, "oops"))
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(200, listingHTML("Poetry", links, "")))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeCategory, URL: poetryURL})

	if len(records) != 23 {
		t.Fatalf("records=%d, want 23", len(records))
	}
	if result.ErrorsByType["server"] != 1 || result.ErrorCount != 1 {
		t.Fatalf("errors=%v, want one server error", result.ErrorsByType)
	}
	if len(result.FailedURLs) != 1 || result.FailedURLs[0] != broken {
		t.Fatalf("failed urls=%v, want [%s]", result.FailedURLs, broken)
	}
	if n := transport.GetCallCountInfo()["GET "+broken]; n != 1 {
		t.Fatalf("broken page fetched %d times without retries configured", n)
	}
}

func TestRunRetriesTransientFailure(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.MaxRetries = 2
	})

	links := registerBooks(transport, 1, 1)
	bookURL := testBase + links[0][1:]
	calls := 0
	transport.RegisterResponder("GET", bookURL, func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
		}
		return httpmock.NewStringResponse(200, detailHTML(1, "Poetry")), nil
	})

	result, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: bookURL})

	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}
	if result.RetryCount != 1 || calls != 2 {
		t.Fatalf("retries=%d calls=%d, want 1 and 2", result.RetryCount, calls)
	}
	if result.ErrorCount != 0 {
		t.Fatalf("recovered request should not count as an error: %v", result.ErrorsByType)
	}
}

func TestRunDoesNotRetryNotFound(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.MaxRetries = 3
	})

	bookURL := testBase + "catalogue/missing/index.html"
	transport.RegisterResponder("GET", bookURL, httpmock.NewStringResponder(http.StatusNotFound, ""))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: bookURL})

	if len(records) != 0 {
		t.Fatalf("records=%d, want 0", len(records))
	}
	if result.RetryCount != 0 || result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("retries=%d errors=%v", result.RetryCount, result.ErrorsByType)
	}
}

func TestRunSiteContinuesAfterListingFailure(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	transport.RegisterResponder("GET", testBase, httpmock.NewStringResponder(200, homeHTML()))
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(http.StatusNotFound, ""))
	links := registerBooks(transport, 1, 3)
	transport.RegisterResponder("GET", mysteryURL, httpmock.NewStringResponder(200, listingHTML("Mystery", links, "")))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeSite, URL: testBase})

	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	for _, rec := range records {
		if rec.Category != "Mystery" {
			t.Fatalf("category=%q, want Mystery", rec.Category)
		}
	}
	if result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("errors=%v, want one not_found", result.ErrorsByType)
	}
	if result.PageCount != 1 {
		t.Fatalf("pages=%d, want 1", result.PageCount)
	}
}

func TestRunSiteFailsWithoutCategories(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBase, httpmock.NewStringResponder(200, "<html><body><p>maintenance</p></body></html>"))

	p, err := pipeline.NewPipeline(&collectingWriter{}, s.cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := s.Run(context.Background(), models.Scope{Mode: models.ModeSite, URL: testBase}, p); err == nil {
		t.Fatalf("expected error when no categories are found")
	}
}

func TestRunSiteFailsWhenHomeUnreachable(t *testing.T) {
	s, transport := newTestScraper(t, nil)
	transport.RegisterResponder("GET", testBase, httpmock.NewStringResponder(http.StatusForbidden, ""))

	p, err := pipeline.NewPipeline(&collectingWriter{}, s.cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	_, err = s.Run(context.Background(), models.Scope{Mode: models.ModeSite, URL: testBase}, p)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Label() != "forbidden" {
		t.Fatalf("expected forbidden FetchError, got %v", err)
	}
}

func TestRunStopsOnSelfReferencingNextPage(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	links := registerBooks(transport, 1, 2)
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(200, listingHTML("Poetry", links, "index.html")))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeCategory, URL: poetryURL})

	if len(records) != 2 || result.PageCount != 1 {
		t.Fatalf("records=%d pages=%d, want 2 and 1", len(records), result.PageCount)
	}
	if n := transport.GetCallCountInfo()["GET "+poetryURL]; n != 1 {
		t.Fatalf("listing fetched %d times", n)
	}
}

func TestRunRespectsMaxPages(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.MaxPages = 1
	})

	first := registerBooks(transport, 1, 20)
	second := registerBooks(transport, 21, 4)
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(200, listingHTML("Poetry", first, "page-2.html")))
	transport.RegisterResponder("GET", poetryPage, httpmock.NewStringResponder(200, listingHTML("Poetry", second, "")))

	logs := captureLogs(t)
	_, records := runScope(t, s, models.Scope{Mode: models.ModeCategory, URL: poetryURL})

	if len(records) != 20 {
		t.Fatalf("records=%d, want 20", len(records))
	}
	if n := transport.GetCallCountInfo()["GET "+poetryPage]; n != 0 {
		t.Fatalf("second page should not be fetched, calls=%d", n)
	}

	warned := false
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, `"level":"WARN"`) &&
			strings.Contains(line, "page limit reached") &&
			strings.Contains(line, poetryPage) {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a warning naming the skipped page, logs:\n%s", logs.String())
	}
}

func TestRunImageRequestHeaders(t *testing.T) {
	const agent = "catalog-test/1.0"
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.UserAgent = agent
	})

	links := registerBooks(transport, 1, 1)
	bookURL := testBase + links[0][1:]

	var pageAgent, imageAgent, imageReferer string
	transport.RegisterResponder("GET", bookURL, func(req *http.Request) (*http.Response, error) {
		pageAgent = req.Header.Get("User-Agent")
		return httpmock.NewStringResponse(200, detailHTML(1, "Poetry")), nil
	})
	transport.RegisterResponder("GET", bookImageURL(1), func(req *http.Request) (*http.Response, error) {
		imageAgent = req.Header.Get("User-Agent")
		imageReferer = req.Header.Get("Referer")
		resp := httpmock.NewBytesResponse(200, []byte("\xff\xd8\xffjpeg"))
		resp.Header.Set("Content-Type", "image/jpeg")
		return resp, nil
	})

	_, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: bookURL})

	if len(records) != 1 || records[0].ImagePath == "" {
		t.Fatalf("records=%+v", records)
	}
	if pageAgent != agent {
		t.Fatalf("page User-Agent=%q, want %q", pageAgent, agent)
	}
	if imageAgent != agent {
		t.Fatalf("image User-Agent=%q, want %q", imageAgent, agent)
	}
	if imageReferer != bookURL {
		t.Fatalf("image Referer=%q, want %q", imageReferer, bookURL)
	}
}

func TestRequestHeaderKeepsExplicitAgent(t *testing.T) {
	f, err := NewFetcher(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if h := f.requestHeader(nil); h != nil {
		t.Fatalf("nil header should stay nil so colly applies its default, got %v", h)
	}

	extra := http.Header{}
	extra.Set("Referer", "http://example.test/book")
	h := f.requestHeader(extra)
	if h.Get("User-Agent") != f.cfg.UserAgent || h.Get("Referer") != "http://example.test/book" {
		t.Fatalf("header=%v", h)
	}
	if extra.Get("User-Agent") != "" {
		t.Fatalf("caller header should not be modified")
	}

	extra.Set("User-Agent", "custom")
	if got := f.requestHeader(extra).Get("User-Agent"); got != "custom" {
		t.Fatalf("User-Agent=%q, want custom", got)
	}
}

func TestRunVisitsSharedBookOnce(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	transport.RegisterResponder("GET", testBase, httpmock.NewStringResponder(200, homeHTML()))
	links := registerBooks(transport, 1, 2)
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(200, listingHTML("Poetry", links, "")))
	transport.RegisterResponder("GET", mysteryURL, httpmock.NewStringResponder(200, listingHTML("Mystery", links[:1], "")))

	_, records := runScope(t, s, models.Scope{Mode: models.ModeSite, URL: testBase})

	if len(records) != 2 {
		t.Fatalf("records=%d, want 2", len(records))
	}
	if n := transport.GetCallCountInfo()["GET "+testBase+links[0][1:]]; n != 1 {
		t.Fatalf("shared book fetched %d times", n)
	}
}

func TestRunBookUsesBreadcrumbCategory(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	links := registerBooks(transport, 7, 1)
	bookURL := testBase + links[0][1:]

	result, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: bookURL})

	if len(records) != 1 || result.PageCount != 0 {
		t.Fatalf("records=%d pages=%d", len(records), result.PageCount)
	}
	rec := records[0]
	if rec.Category != "Poetry" || rec.UPC != bookUPC(7) || rec.ProductURL != bookURL {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.ImagePath == "" {
		t.Fatalf("image path should be set")
	}
}

func TestRunImageFailureIsNonFatal(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	links := registerBooks(transport, 1, 1)
	transport.RegisterResponder("GET", bookImageURL(1), httpmock.NewStringResponder(http.StatusNotFound, ""))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: testBase + links[0][1:]})

	if len(records) != 1 {
		t.Fatalf("records=%d, want 1", len(records))
	}
	if records[0].ImagePath != "" {
		t.Fatalf("image path=%q, want empty", records[0].ImagePath)
	}
	if result.ImageCount != 0 || result.ErrorsByType["not_found"] != 1 {
		t.Fatalf("images=%d errors=%v", result.ImageCount, result.ErrorsByType)
	}
}

func TestRunRejectsNonImageResponse(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	links := registerBooks(transport, 1, 1)
	transport.RegisterResponder("GET", bookImageURL(1), func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(200, "<html>not an image</html>")
		resp.Header.Set("Content-Type", "text/html; charset=utf-8")
		return resp, nil
	})

	result, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: testBase + links[0][1:]})

	if len(records) != 1 || records[0].ImagePath != "" {
		t.Fatalf("records=%+v", records)
	}
	if result.ErrorsByType["image"] != 1 {
		t.Fatalf("errors=%v, want one image error", result.ErrorsByType)
	}
}

func TestRunReusesStoredImage(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	links := registerBooks(transport, 1, 1)
	existing := filepath.Join(s.cfg.ImagesDir, "Poetry", bookUPC(1)+".jpg")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(existing, []byte("cached"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	result, records := runScope(t, s, models.Scope{Mode: models.ModeBook, URL: testBase + links[0][1:]})

	if len(records) != 1 || records[0].ImagePath != existing {
		t.Fatalf("records=%+v", records)
	}
	if result.ImageCount != 1 {
		t.Fatalf("images=%d, want 1", result.ImageCount)
	}
	if n := transport.GetCallCountInfo()["GET "+bookImageURL(1)]; n != 0 {
		t.Fatalf("stored image fetched again, calls=%d", n)
	}
}

func TestRunSkipImages(t *testing.T) {
	s, transport := newTestScraper(t, func(cfg *config.Config) {
		cfg.SkipImages = true
	})

	links := registerBooks(transport, 1, 2)
	transport.RegisterResponder("GET", poetryURL, httpmock.NewStringResponder(200, listingHTML("Poetry", links, "")))

	result, records := runScope(t, s, models.Scope{Mode: models.ModeCategory, URL: poetryURL})

	if len(records) != 2 || result.ImageCount != 0 {
		t.Fatalf("records=%d images=%d", len(records), result.ImageCount)
	}
	for _, rec := range records {
		if rec.ImagePath != "" || rec.ImageURL == "" {
			t.Fatalf("image url should be kept and path left empty: %+v", rec)
		}
	}
	if n := transport.GetCallCountInfo()["GET "+bookImageURL(1)]; n != 0 {
		t.Fatalf("image fetched with images disabled")
	}
}

func TestRunCancelledContext(t *testing.T) {
	s, transport := newTestScraper(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := pipeline.NewPipeline(&collectingWriter{}, s.cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	result, err := s.Run(ctx, models.Scope{Mode: models.ModeCategory, URL: poetryURL}, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.TotalCount != 0 || result.ErrorCount != 0 {
		t.Fatalf("cancelled run produced %+v", result)
	}
	if n := transport.GetTotalCallCount(); n != 0 {
		t.Fatalf("cancelled run issued %d requests", n)
	}
}

func TestRunUnknownMode(t *testing.T) {
	s, _ := newTestScraper(t, nil)
	p, err := pipeline.NewPipeline(&collectingWriter{}, s.cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if _, err := s.Run(context.Background(), models.Scope{Mode: "shelf"}, p); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

type collectingWriter struct {
	books []*models.BookRecord
}

func (cw *collectingWriter) Write(books []*models.BookRecord) error {
	cw.books = append(cw.books, books...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func newTestScraper(t *testing.T, mutate func(*config.Config)) (*Scraper, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBase
	cfg.ImagesDir = t.TempDir()
	cfg.Timeout = 2 * time.Second
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 5 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	s, err := NewScraper(cfg)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	transport := httpmock.NewMockTransport()
	s.fetcher.collector.WithTransport(transport)
	return s, transport
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func runScope(t *testing.T, s *Scraper, scope models.Scope) (*models.RunResult, []*models.BookRecord) {
	t.Helper()
	writer := &collectingWriter{}
	p, err := pipeline.NewPipeline(writer, s.cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	result, err := s.Run(context.Background(), scope, p)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close pipeline: %v", err)
	}
	return result, writer.books
}

// registerBooks serves count detail pages and covers starting at book first
// and returns their root-relative links in order.
func registerBooks(transport *httpmock.MockTransport, first, count int) []string {
	links := make([]string, 0, count)
	for n := first; n < first+count; n++ {
		link := fmt.Sprintf("/catalogue/book-%d_%d/index.html", n, 1000+n)
		transport.RegisterResponder("GET", testBase+link[1:], httpmock.NewStringResponder(200, detailHTML(n, "Poetry")))
		transport.RegisterResponder("GET", bookImageURL(n), func(req *http.Request) (*http.Response, error) {
			resp := httpmock.NewBytesResponse(200, []byte("\xff\xd8\xffjpeg"))
			resp.Header.Set("Content-Type", "image/jpeg")
			return resp, nil
		})
		links = append(links, link)
	}
	return links
}

func bookUPC(n int) string {
	return fmt.Sprintf("upc%04d", n)
}

func bookImageURL(n int) string {
	return fmt.Sprintf("%smedia/cache/%s.jpg", testBase, bookUPC(n))
}

func homeHTML() string {
	return `<html><body>
<div class="side_categories">
  <ul class="nav nav-list">
    <li>
      <a href="catalogue/category/books_1/index.html">Books</a>
      <ul>
        <li><a href="catalogue/category/books/poetry_23/index.html">Poetry</a></li>
        <li><a href="catalogue/category/books/mystery_3/index.html">Mystery</a></li>
      </ul>
    </li>
  </ul>
</div>
</body></html>`
}

func listingHTML(heading string, links []string, next string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="page-header action"><h1>` + heading + `</h1></div><ol class="row">`)
	for _, link := range links {
		fmt.Fprintf(&b, `<li><article class="product_pod"><h3><a href="%s" title="t">t</a></h3></article></li>`, link)
	}
	b.WriteString(`</ol>`)
	if next != "" {
		fmt.Fprintf(&b, `<ul class="pager"><li class="next"><a href="%s">next</a></li></ul>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func detailHTML(n int, category string) string {
	return fmt.Sprintf(`<html><body>
<ul class="breadcrumb">
  <li><a href="/index.html">Home</a></li>
  <li><a href="/catalogue/category/books_1/index.html">Books</a></li>
  <li><a href="/catalogue/category/books/x/index.html">%s</a></li>
  <li class="active">Book %d</li>
</ul>
<article class="product_page">
  <div class="row">
    <div class="col-sm-6">
      <div id="product_gallery"><div class="item active"><img src="/media/cache/%s.jpg" alt="Book %d"></div></div>
    </div>
    <div class="col-sm-6 product_main">
      <h1>Book %d</h1>
      <p class="price_color">£10.00</p>
      <p class="instock availability">In stock (5 available)</p>
      <p class="star-rating Three"></p>
    </div>
  </div>
  <div id="product_description" class="sub-header"><h2>Product Description</h2></div>
  <p>Description of book %d.</p>
  <table class="table table-striped">
    <tr><th>UPC</th><td>%s</td></tr>
    <tr><th>Price (excl. tax)</th><td>£10.00</td></tr>
    <tr><th>Price (incl. tax)</th><td>£10.00</td></tr>
    <tr><th>Availability</th><td>In stock (5 available)</td></tr>
  </table>
</article>
</body></html>`, category, n, bookUPC(n), n, n, n, bookUPC(n))
}
