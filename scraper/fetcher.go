package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStart  = "start"
	ctxPage   = "page"
	ctxStatus = "status"
)

// Page is one successfully fetched response.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// HTML returns the body as text.
func (p *Page) HTML() string {
	return string(p.Body)
}

// Fetcher issues rate-limited GET requests through a synchronous colly
// collector and retries transient failures with exponential backoff.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *Metrics

	requests int
	retries  int
}

// NewFetcher builds a fetcher restricted to the host of cfg.BaseURL.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
	}
	f.registerCallbacks()
	return f, nil
}

func (f *Fetcher) registerCallbacks() {
	f.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		f.requests++
		f.metrics.IncRequest("started")
		if f.requests%50 == 0 {
			slog.Debug("scraper request progress",
				slog.Int("requests", f.requests),
				slog.String("url", r.URL.String()),
			)
		}
	})

	f.collector.OnResponse(func(r *colly.Response) {
		f.observe(r.Ctx)
		f.metrics.IncRequest("succeeded")
		r.Ctx.Put(ctxPage, &Page{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		})
	})

	f.collector.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Ctx == nil {
			return
		}
		f.observe(r.Ctx)
		f.metrics.IncRequest("failed")
		r.Ctx.Put(ctxStatus, r.StatusCode)
	})
}

func (f *Fetcher) observe(ctx *colly.Context) {
	if start, ok := ctx.GetAny(ctxStart).(time.Time); ok {
		f.metrics.ObserveDuration(time.Since(start))
	}
}

// Fetch GETs rawURL. Failures come back as *FetchError; transient ones are
// retried up to MaxRetries times before giving up.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("malformed url %q", rawURL)}
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}

		page, fetchErr := f.fetchOnce(rawURL, header)
		if fetchErr == nil {
			return page, nil
		}
		if attempt >= f.cfg.MaxRetries || !retryable(fetchErr.Err) {
			return nil, fetchErr
		}

		f.retries++
		f.metrics.IncRetries()
		delay := f.backoff(attempt + 1)
		slog.Debug("retrying request",
			slog.String("url", rawURL),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("category", fetchErr.Label()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &FetchError{URL: rawURL, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

func (f *Fetcher) fetchOnce(rawURL string, header http.Header) (*Page, *FetchError) {
	reqCtx := colly.NewContext()
	if err := f.collector.Request(http.MethodGet, rawURL, nil, reqCtx, f.requestHeader(header)); err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: classifyError(err, status)}
	}
	page, ok := reqCtx.GetAny(ctxPage).(*Page)
	if !ok {
		return nil, &FetchError{URL: rawURL, Err: errors.New("no response received")}
	}
	return page, nil
}

// requestHeader copies extra and adds the configured User-Agent, which colly
// only fills in when no header is passed at all.
func (f *Fetcher) requestHeader(extra http.Header) http.Header {
	if extra == nil {
		return nil
	}
	h := extra.Clone()
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", f.cfg.UserAgent)
	}
	return h
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// Requests returns the number of requests issued, retries included.
func (f *Fetcher) Requests() int {
	return f.requests
}

// Retries returns the number of retry attempts made.
func (f *Fetcher) Retries() int {
	return f.retries
}

func (f *Fetcher) resetCounters() {
	f.requests = 0
	f.retries = 0
}
