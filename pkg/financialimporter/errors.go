package financialimporter

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFile     = errors.New("csv file is empty or has no headers")
	ErrMissingColumn = errors.New("required column not found")
	ErrUnknownFormat = errors.New("unknown bank format")
)

// ImportError is a structural problem with an input file. Nothing is written
// when an import fails with one.
type ImportError struct {
	Format string
	Err    error
	Detail string
}

func (e *ImportError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}

	if e.Format != "" {
		return fmt.Sprintf("import failed (%s): %s", e.Format, msg)
	}

	return "import failed: " + msg
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// RowError is a problem confined to one input row. Row errors are collected
// in ImportResult and never abort an import.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
