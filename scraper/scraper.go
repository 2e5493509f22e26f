package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/parser"
	"github.com/aluiziolira/go-books-catalog/pipeline"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Scraper walks the catalogue for one scope and feeds book records into a
// pipeline. A Scraper runs one traversal at a time.
type Scraper struct {
	cfg     *config.Config
	fetcher *Fetcher
	images  *pipeline.ImageStore
	Metrics *Metrics

	log     *slog.Logger
	visited *lru.Cache[string, struct{}]

	pageCount    int
	imageCount   int
	errorCount   int
	failedURLs   []string
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}

	s := &Scraper{
		cfg:     cfg,
		fetcher: fetcher,
		Metrics: metrics,
		log:     slog.Default(),
	}
	if !cfg.SkipImages {
		s.images = pipeline.NewImageStore(cfg.ImagesDir)
	}
	return s, nil
}

// Run traverses scope and hands every extracted record to p. Failures on
// individual pages are logged, counted and skipped; only a failure to
// discover the site's categories aborts the run.
func (s *Scraper) Run(ctx context.Context, scope models.Scope, p *pipeline.Pipeline) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if p == nil {
		return nil, errors.New("pipeline cannot be nil")
	}
	if err := s.reset(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	s.log = slog.Default().With(
		slog.String("run_id", runID),
		slog.String("mode", string(scope.Mode)),
	)

	start := time.Now()
	s.log.Info("traversal started", slog.String("url", scope.URL))

	var err error
	switch scope.Mode {
	case models.ModeBook:
		s.scrapeBook(ctx, scope.URL, "", p)
	case models.ModeCategory:
		s.scrapeCategory(ctx, models.Category{URL: scope.URL}, p)
	case models.ModeSite:
		err = s.scrapeSite(ctx, scope.URL, p)
	default:
		err = fmt.Errorf("unknown mode %q", scope.Mode)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		s.log.Warn("traversal interrupted", slog.Any("error", ctx.Err()))
	}

	failed := make([]string, len(s.failedURLs))
	copy(failed, s.failedURLs)
	byType := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		byType[k] = v
	}

	return &models.RunResult{
		RunID:        runID,
		Scope:        scope,
		StartTime:    start,
		EndTime:      time.Now(),
		TotalCount:   p.Len(),
		ImageCount:   s.imageCount,
		ErrorCount:   s.errorCount,
		FailedURLs:   failed,
		ErrorsByType: byType,
		RetryCount:   s.fetcher.Retries(),
		RequestCount: s.fetcher.Requests(),
		PageCount:    s.pageCount,
	}, nil
}

func (s *Scraper) reset() error {
	size := s.cfg.DedupeMaxSize
	if size <= 0 {
		size = config.DefaultConfig().DedupeMaxSize
	}
	visited, err := lru.New[string, struct{}](size)
	if err != nil {
		return fmt.Errorf("create visited cache: %w", err)
	}
	s.visited = visited
	s.pageCount = 0
	s.imageCount = 0
	s.errorCount = 0
	s.failedURLs = nil
	s.errorsByType = make(map[string]int)
	s.fetcher.resetCounters()
	return nil
}

func (s *Scraper) scrapeSite(ctx context.Context, siteURL string, p *pipeline.Pipeline) error {
	page, err := s.fetch(ctx, siteURL, nil)
	if err != nil {
		return fmt.Errorf("fetch site index: %w", err)
	}
	categories, err := parser.ExtractCategoryLinks(page.URL, page.HTML())
	if err != nil {
		s.recordFailure(siteURL, err)
		return fmt.Errorf("discover categories: %w", err)
	}
	s.log.Info("categories discovered", slog.Int("count", len(categories)))

	for i, category := range categories {
		if ctx.Err() != nil {
			return nil
		}
		s.log.Info("scraping category",
			slog.String("category", category.Name),
			slog.Int("index", i+1),
			slog.Int("of", len(categories)),
		)
		s.scrapeCategory(ctx, category, p)
	}
	return nil
}

// scrapeCategory follows the pager from category.URL. A listing page that
// fails to fetch or parse ends this category only.
func (s *Scraper) scrapeCategory(ctx context.Context, category models.Category, p *pipeline.Pipeline) {
	pageURL := category.URL
	for pages := 0; pageURL != ""; pages++ {
		if ctx.Err() != nil {
			return
		}
		if pages >= s.cfg.MaxPages {
			s.log.Warn("page limit reached, remaining pages skipped",
				slog.String("category", category.Name),
				slog.Int("pages", pages),
				slog.String("next_url", pageURL),
			)
			return
		}
		if !s.markVisited(pageURL) {
			s.log.Warn("listing page already visited, stopping pagination", slog.String("url", pageURL))
			return
		}

		page, err := s.fetch(ctx, pageURL, nil)
		if err != nil {
			s.log.Error("listing page failed, abandoning category",
				slog.String("category", category.Name),
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			return
		}
		listing, err := parser.ExtractListingPage(page.URL, page.HTML(), category)
		if err != nil {
			s.recordFailure(pageURL, err)
			s.log.Error("listing page unparseable, abandoning category",
				slog.String("url", pageURL),
				slog.Any("error", err),
			)
			return
		}
		category = listing.Category
		s.pageCount++
		s.Metrics.IncPages()
		s.log.Info("listing page parsed",
			slog.String("category", category.Name),
			slog.Int("page", pages+1),
			slog.Int("books", len(listing.BookURLs)),
		)

		for _, bookURL := range listing.BookURLs {
			if ctx.Err() != nil {
				return
			}
			s.scrapeBook(ctx, bookURL, category.Name, p)
		}
		pageURL = listing.NextURL
	}
}

func (s *Scraper) scrapeBook(ctx context.Context, bookURL, categoryName string, p *pipeline.Pipeline) {
	if !s.markVisited(bookURL) {
		s.log.Debug("book already visited", slog.String("url", bookURL))
		return
	}

	page, err := s.fetch(ctx, bookURL, nil)
	if err != nil {
		s.log.Warn("skipping book", slog.String("url", bookURL), slog.Any("error", err))
		return
	}
	record, err := parser.ExtractBookRecord(page.URL, page.HTML(), categoryName)
	if err != nil {
		s.recordFailure(bookURL, err)
		s.log.Warn("skipping book", slog.String("url", bookURL), slog.Any("error", err))
		return
	}
	record.ScrapedAt = time.Now()

	if s.images != nil && record.ImageURL != "" {
		path, err := s.downloadImage(ctx, record)
		if err != nil {
			s.log.Warn("cover image not stored",
				slog.String("url", record.ImageURL),
				slog.Any("error", err),
			)
		} else {
			record.ImagePath = path
		}
	}

	if err := p.Process(record); err != nil {
		if errors.Is(err, pipeline.ErrDuplicateRecord) {
			s.log.Debug("duplicate record dropped", slog.String("upc", record.UPC))
			return
		}
		s.recordFailure(bookURL, err)
		s.log.Error("pipeline process error", slog.String("url", bookURL), slog.Any("error", err))
		return
	}
	s.Metrics.IncRecords()
}

// downloadImage stores the record's cover and returns its local path. An
// image already on disk is not fetched again.
func (s *Scraper) downloadImage(ctx context.Context, record *models.BookRecord) (string, error) {
	path := s.images.Path(record.Category, record.UPC, record.ImageURL)
	if s.images.Exists(path) {
		s.imageCount++
		s.Metrics.IncImage("cached")
		return path, nil
	}

	header := http.Header{}
	header.Set("Referer", record.ProductURL)
	page, err := s.fetch(ctx, record.ImageURL, header)
	if err != nil {
		s.Metrics.IncImage("failed")
		return "", &pipeline.ImageError{URL: record.ImageURL, Path: path, Err: err}
	}

	stored, err := s.images.Save(record.Category, record.UPC, record.ImageURL, page.ContentType, page.Body)
	if err != nil {
		s.Metrics.IncImage("failed")
		s.recordFailure(record.ImageURL, err)
		return "", err
	}
	s.imageCount++
	s.Metrics.IncImage("stored")
	return stored, nil
}

// fetch wraps the fetcher and records failures that were not caused by
// cancellation.
func (s *Scraper) fetch(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL, header)
	if err != nil {
		if ctx.Err() == nil {
			s.recordFailure(rawURL, err)
		}
		return nil, err
	}
	return page, nil
}

func (s *Scraper) markVisited(rawURL string) bool {
	found, _ := s.visited.ContainsOrAdd(rawURL, struct{}{})
	return !found
}

func (s *Scraper) recordFailure(rawURL string, err error) {
	category := failureLabel(err)
	s.errorCount++
	s.errorsByType[category]++
	s.failedURLs = append(s.failedURLs, rawURL)
	s.Metrics.IncError(category)
	s.log.Debug("request error",
		slog.String("url", rawURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func failureLabel(err error) string {
	var imageErr *pipeline.ImageError
	if errors.As(err, &imageErr) {
		return "image"
	}
	var extractErr *parser.ExtractionError
	if errors.As(err, &extractErr) {
		return "extraction"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Label()
	}
	if errors.Is(err, pipeline.ErrInvalidRecord) {
		return "invalid_record"
	}
	return "other"
}
