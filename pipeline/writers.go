package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-books-catalog/models"
)

// CSVHeader is the fixed column order of the CSV output.
var CSVHeader = []string{
	"title",
	"price",
	"price_excl_tax",
	"availability",
	"stock",
	"rating",
	"rating_numeric",
	"description",
	"upc",
	"category",
	"image_url",
	"image_path",
	"product_page_url",
	"scraped_at",
}

// CSVWriter writes records to CSV.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates or truncates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, &WriteError{Path: filename, Op: "create directory for", Err: err}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, &WriteError{Path: filename, Op: "create csv file", Err: err}
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(CSVHeader); err != nil {
		f.Close()
		return nil, &WriteError{Path: filename, Op: "write csv header", Err: err}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, &WriteError{Path: filename, Op: "flush csv header", Err: err}
	}

	return &CSVWriter{
		path:   filename,
		file:   f,
		writer: writer,
	}, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []*models.BookRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, rec := range records {
		if err := cw.writer.Write(csvRow(rec)); err != nil {
			return &WriteError{Path: cw.path, Op: "write csv record", Err: err}
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return &WriteError{Path: cw.path, Op: "flush csv records", Err: err}
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return &WriteError{Path: cw.path, Op: "flush csv writer", Err: err}
	}
	if err := cw.file.Close(); err != nil {
		return &WriteError{Path: cw.path, Op: "close csv file", Err: err}
	}
	return nil
}

// Validate ensures the file exists and holds at least the header.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.path)
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

func csvRow(rec *models.BookRecord) []string {
	scrapedAt := ""
	if !rec.ScrapedAt.IsZero() {
		scrapedAt = rec.ScrapedAt.Format(time.RFC3339)
	}
	return []string{
		rec.Title,
		rec.Price,
		rec.PriceExclTax,
		rec.Availability,
		strconv.Itoa(rec.Stock),
		rec.RatingText,
		strconv.Itoa(rec.RatingNumeric),
		rec.Description,
		rec.UPC,
		rec.Category,
		rec.ImageURL,
		rec.ImagePath,
		rec.ProductURL,
		scrapedAt,
	}
}

// WriteCSV writes records to path, replacing any existing file.
func WriteCSV(path string, records []*models.BookRecord) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(records); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadCSV loads records previously written by CSVWriter. Columns are matched
// by header name.
func ReadCSV(path string) ([]*models.BookRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range CSVHeader {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
	}

	var records []*models.BookRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(records)+1, err)
		}
		rec, err := recordFromRow(row, index)
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromRow(row []string, index map[string]int) (*models.BookRecord, error) {
	col := func(name string) string { return row[index[name]] }

	stock, err := strconv.Atoi(col("stock"))
	if err != nil {
		return nil, fmt.Errorf("parse stock: %w", err)
	}
	rating, err := strconv.Atoi(col("rating_numeric"))
	if err != nil {
		return nil, fmt.Errorf("parse rating_numeric: %w", err)
	}
	var scrapedAt time.Time
	if raw := col("scraped_at"); raw != "" {
		if scrapedAt, err = time.Parse(time.RFC3339, raw); err != nil {
			return nil, fmt.Errorf("parse scraped_at: %w", err)
		}
	}

	return &models.BookRecord{
		Title:         col("title"),
		Price:         col("price"),
		PriceExclTax:  col("price_excl_tax"),
		Availability:  col("availability"),
		Stock:         stock,
		RatingText:    col("rating"),
		RatingNumeric: rating,
		Description:   col("description"),
		UPC:           col("upc"),
		Category:      col("category"),
		ImageURL:      col("image_url"),
		ImagePath:     col("image_path"),
		ProductURL:    col("product_page_url"),
		ScrapedAt:     scrapedAt,
	}, nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	path    string
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, &WriteError{Path: filename, Op: "create directory for", Err: err}
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, &WriteError{Path: filename, Op: "create json file", Err: err}
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		path:    filename,
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.BookRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, rec := range records {
		if err := jw.encoder.Encode(rec); err != nil {
			return &WriteError{Path: jw.path, Op: "encode json record", Err: err}
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return &WriteError{Path: jw.path, Op: "flush json writer", Err: err}
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		jw.file.Close()
		return &WriteError{Path: jw.path, Op: "flush json writer", Err: err}
	}
	if err := jw.file.Close(); err != nil {
		return &WriteError{Path: jw.path, Op: "close json file", Err: err}
	}
	return nil
}

// Validate ensures the JSON file exists. A run without records leaves it
// empty, which is not an error.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.path); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
