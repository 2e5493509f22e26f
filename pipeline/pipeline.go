// Package pipeline validates, de-duplicates and normalises book records,
// keeps them in discovery order and writes them out at the end of a run.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-books-catalog/config"
	"github.com/aluiziolira/go-books-catalog/models"
	"github.com/aluiziolira/go-books-catalog/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after Close.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrDuplicateRecord is returned for a record whose UPC was already accepted.
	ErrDuplicateRecord = errors.New("pipeline: duplicate record")
	// ErrInvalidRecord is returned for a record missing a required field.
	ErrInvalidRecord = errors.New("pipeline: invalid record")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []*models.BookRecord) error
	Close() error
	Validate() error
}

// Pipeline accumulates the records of one run in order. It is not safe for
// concurrent use; the scraper drives it from a single goroutine.
type Pipeline struct {
	writer  OutputWriter
	records []*models.BookRecord
	seen    *lru.Cache[string, struct{}]
	metrics metrics
	closed  bool
}

// NewPipeline builds an empty pipeline that remembers up to
// cfg.DedupeMaxSize UPCs.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	if writer == nil {
		return nil, fmt.Errorf("pipeline: nil writer")
	}
	size := config.DefaultConfig().DedupeMaxSize
	if cfg != nil && cfg.DedupeMaxSize > 0 {
		size = cfg.DedupeMaxSize
	}
	seen, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Pipeline{
		writer:  writer,
		seen:    seen,
		metrics: newMetrics(),
	}, nil
}

// Process validates rec, rejects duplicates and appends the normalised
// record to the run's sequence.
func (p *Pipeline) Process(rec *models.BookRecord) error {
	if p.closed {
		return ErrPipelineClosed
	}
	if err := parser.ValidateRecord(rec); err != nil {
		p.metrics.addValidation("invalid_record")
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if found, _ := p.seen.ContainsOrAdd(rec.UPC, struct{}{}); found {
		p.metrics.addValidation("duplicate_upc")
		return fmt.Errorf("%w: upc %s", ErrDuplicateRecord, rec.UPC)
	}

	normalize(rec)
	p.records = append(p.records, rec)
	p.metrics.processed++
	return nil
}

// Len reports how many records have been accepted.
func (p *Pipeline) Len() int {
	return len(p.records)
}

// Records returns a copy of the accepted records in acceptance order.
func (p *Pipeline) Records() []*models.BookRecord {
	out := make([]*models.BookRecord, len(p.records))
	copy(out, p.records)
	return out
}

// Close writes every accepted record and closes the writer. Later calls are
// no-ops.
func (p *Pipeline) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.writer.Write(p.records); err != nil {
		if closeErr := p.writer.Close(); closeErr != nil {
			slog.Error("close writer after failed write", slog.Any("error", closeErr))
		}
		return fmt.Errorf("write records: %w", err)
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	slog.Debug("pipeline flushed", slog.Int("records", len(p.records)))
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func normalize(rec *models.BookRecord) {
	rec.Price = parser.NormalizePrice(rec.Price)
	rec.PriceExclTax = parser.NormalizePrice(rec.PriceExclTax)
	rec.Availability = parser.NormalizeAvailability(rec.Availability)
	rec.Stock = parser.ParseStock(rec.Availability)
	rec.RatingNumeric = parser.RatingToNumeric(rec.RatingText)
}

type metrics struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addValidation(kind string) {
	m.validation[kind]++
}

func (m *metrics) snapshot() map[string]interface{} {
	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_books":   m.processed,
		"validation_errors": copyValidation,
	}
}
