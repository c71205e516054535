package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"depctx/internal/paths"
)

// New creates a logger that writes to a timestamped file inside the
// workspace's logs directory. The returned closer should be closed when
// logging is no longer needed.
func New(p paths.WorkspacePaths) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(p.LogsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(p.LogsDir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	return logger, file, nil
}

// Tee returns a logger writing to both l's destination and w, keeping l's
// flags. Used to mirror target output onto the terminal.
func Tee(l *log.Logger, w io.Writer) *log.Logger {
	if l == nil {
		return log.New(w, "", log.LstdFlags)
	}
	return log.New(io.MultiWriter(l.Writer(), w), l.Prefix(), l.Flags())
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
