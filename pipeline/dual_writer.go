package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-books-catalog/models"
)

// DualWriter writes the catalogue as CSV and as JSON lines side by side.
type DualWriter struct {
	csv  *CSVWriter
	json *JSONWriter
}

// JSONLinesPath returns the JSON lines file written next to csvPath:
// output/books.csv becomes output/books.jsonl.
func JSONLinesPath(csvPath string) string {
	ext := filepath.Ext(csvPath)
	if strings.EqualFold(ext, ".csv") {
		return strings.TrimSuffix(csvPath, ext) + ".jsonl"
	}
	return csvPath + ".jsonl"
}

// NewDualWriter creates csvPath and its JSON lines companion. If the second
// file cannot be created the first is closed again.
func NewDualWriter(csvPath string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvPath)
	if err != nil {
		return nil, fmt.Errorf("create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(JSONLinesPath(csvPath))
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create JSON writer: %w", err)
	}

	return &DualWriter{csv: csvWriter, json: jsonWriter}, nil
}

// Write sends the same records to both files.
func (dw *DualWriter) Write(records []*models.BookRecord) error {
	if err := dw.csv.Write(records); err != nil {
		return fmt.Errorf("CSV write failed: %w", err)
	}
	if err := dw.json.Write(records); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}
	return nil
}

// Close closes both files, reporting every failure.
func (dw *DualWriter) Close() error {
	return errors.Join(dw.csv.Close(), dw.json.Close())
}

// Validate checks both files exist.
func (dw *DualWriter) Validate() error {
	return errors.Join(dw.csv.Validate(), dw.json.Validate())
}
