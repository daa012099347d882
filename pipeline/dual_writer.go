package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aggieschedule/registrar-scraper/models"
)

// MultiWriter fans every batch out to several writers in order.
type MultiWriter struct {
	names   []string
	writers []OutputWriter
	mu      sync.Mutex
}

// NewDualWriter writes CSV to csvFilename and JSONL to jsonFilename.
func NewDualWriter(csvFilename, jsonFilename string) (*MultiWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("failed to create JSON writer: %w", err)
	}

	return &MultiWriter{
		names:   []string{"csv", "json"},
		writers: []OutputWriter{csvWriter, jsonWriter},
	}, nil
}

// Write stops at the first writer that fails.
func (mw *MultiWriter) Write(courses []*models.CourseRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for i, w := range mw.writers {
		if err := w.Write(courses); err != nil {
			return fmt.Errorf("%s write failed: %w", mw.names[i], err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for i, w := range mw.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", mw.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every output.
func (mw *MultiWriter) Validate() error {
	var errs []error
	for i, w := range mw.writers {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation failed: %w", mw.names[i], err))
		}
	}
	return errors.Join(errs...)
}
