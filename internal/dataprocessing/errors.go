package dataprocessing

import (
	"errors"
	"fmt"
)

// ErrEmptyFile indicates an upload without content.
var ErrEmptyFile = errors.New("file is empty")

// ErrUnsupportedFormat indicates a file that is neither CSV nor a spreadsheet.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrMissingHeader indicates the configured header row does not exist or is blank.
var ErrMissingHeader = errors.New("header row not found")

// LoadErrorKind classifies a load failure.
type LoadErrorKind string

const (
	LoadEmptyFile         LoadErrorKind = "empty_file"
	LoadUnsupportedFormat LoadErrorKind = "unsupported_format"
	LoadMalformed         LoadErrorKind = "malformed"
	LoadEncoding          LoadErrorKind = "encoding"
	LoadMissingHeader     LoadErrorKind = "missing_header"
)

// LoadError is returned when an upload cannot be turned into a table. The
// pipeline stops for that upload only.
type LoadError struct {
	Kind     LoadErrorKind
	Filename string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q (%s): %v", e.Filename, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new LoadError.
func NewLoadError(kind LoadErrorKind, filename string, err error) *LoadError {
	return &LoadError{
		Kind:     kind,
		Filename: filename,
		Err:      err,
	}
}
