package pipeline

import "fmt"

// WriteError reports a failure persisting records to an output file.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ImageError reports a failure storing a downloaded image.
type ImageError struct {
	URL  string
	Path string
	Err  error
}

func (e *ImageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("image %s -> %s: %v", e.URL, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}
