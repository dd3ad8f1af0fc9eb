package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"flora-crawler/pkg/models"
	"flora-crawler/pkg/utils"
)

// FileFailureLogger appends failures to a text file, one "<link>,<reason>" line each
type FileFailureLogger struct {
	path string
	mu   sync.Mutex
}

// NewFileFailureLogger creates a logger writing to path. The file is created on first append.
func NewFileFailureLogger(path string) *FileFailureLogger {
	return &FileFailureLogger{path: path}
}

// Append implements FailureLogger
func (l *FileFailureLogger) Append(link string, reason models.FailureReason) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("%w: %w: creating failure log directory: %w", utils.ErrLogFailure, utils.ErrFilesystem, err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w: opening %s: %w", utils.ErrLogFailure, utils.ErrFilesystem, l.path, err)
	}
	if _, err := fmt.Fprintf(f, "%s,%s\n", link, reason); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w: writing %s: %w", utils.ErrLogFailure, utils.ErrFilesystem, l.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w: closing %s: %w", utils.ErrLogFailure, utils.ErrFilesystem, l.path, err)
	}
	return nil
}

// Path returns the failure log location
func (l *FileFailureLogger) Path() string {
	return l.path
}
