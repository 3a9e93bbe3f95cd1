package audit

import (
	"encoding/json"
	"log/slog"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink appends JSON-lines audit records to a size-rotated file.
type FileSink struct {
	writer *lumberjack.Logger
	logger *slog.Logger
	mu     sync.Mutex
}

// NewFileSink creates a sink writing to path, rotating at maxSizeMB and
// keeping maxBackups old files.
func NewFileSink(path string, maxSizeMB, maxBackups int, logger *slog.Logger) *FileSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSink{
		writer: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		},
		logger: logger,
	}
}

// Record writes one JSON line. Failures are logged and swallowed; an
// unavailable audit file must not fail the caller's request.
func (s *FileSink) Record(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal audit event", "error", err, "type", event.Type)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(append(line, '\n')); err != nil {
		s.logger.Error("failed to write audit event", "error", err, "type", event.Type)
	}
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Close()
}
