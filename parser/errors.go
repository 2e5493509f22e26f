package parser

import "fmt"

// ExtractionError reports that an expected element or field is absent.
type ExtractionError struct {
	URL   string
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s", e.Field)
	if e.URL != "" {
		msg += " from " + e.URL
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": missing"
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func missing(pageURL, field string) error {
	return &ExtractionError{URL: pageURL, Field: field}
}
