package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"cryptorank/logger"
)

// FileNameLayout names one trail file per run, e.g. "2024-05-01 13-45-10.txt".
const FileNameLayout = "2006-01-02 15-04-05"

// FileSink appends to a single timestamped file for the lifetime of a run.
type FileSink struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	closed   bool
	archiver Archiver
	log      *logger.Log
}

// NewFileSink creates <dir>/<started formatted with FileNameLayout>.txt.
func NewFileSink(dir string, started time.Time) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	path := filepath.Join(dir, started.Format(FileNameLayout)+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileSink{file: f, path: path, log: logger.GetLogger()}, nil
}

// WithArchiver uploads the finished file on Close.
func (s *FileSink) WithArchiver(a Archiver) *FileSink {
	s.mu.Lock()
	s.archiver = a
	s.mu.Unlock()
	return s
}

func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, err := s.file.WriteString(text); err != nil {
		s.log.WithComponent("audit").WithError(err).WithFields(logger.Fields{"path": s.path}).Warn("failed to append audit text")
	}
}

// Close flushes the file and hands it to the archiver when one is set.
// Closing twice is a no-op.
func (s *FileSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	archiver := s.archiver
	err := s.file.Close()
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}
	if archiver == nil {
		return nil
	}

	start := time.Now()
	location, err := archiver.Archive(ctx, s.path)
	if err != nil {
		return fmt.Errorf("archive audit file: %w", err)
	}
	logger.LogPerformanceEntry(s.log.WithComponent("audit"), "audit", "archive", time.Since(start), logger.Fields{
		"path":     s.path,
		"location": location,
	})
	return nil
}
