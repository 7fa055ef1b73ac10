// Package progress has the sinks that goal output is written to. A
// progress log is append-only; what is written to it is what an
// operator sees of a goal's execution.
package progress

import (
	"bytes"
	"io"
	"sync"

	"github.com/go-kit/kit/log"
)

type Log interface {
	io.Writer
	// String returns what has been logged so far, for logs that keep
	// it; others return the empty string.
	String() string
	Close() error
}

// Buffer is a Log kept in memory. It is safe to write to from more
// than one goroutine, e.g., from both stdout and stderr of a process.
type Buffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *Buffer) Close() error {
	return nil
}

// LoggerLog forwards each complete line written to it to a logger, as
// an `output` field. A trailing partial line is forwarded on Close.
type LoggerLog struct {
	logger  log.Logger
	mu      sync.Mutex
	partial []byte
}

func NewLoggerLog(logger log.Logger) *LoggerLog {
	return &LoggerLog{logger: logger}
}

func (l *LoggerLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		l.emit(l.partial[:i])
		l.partial = l.partial[i+1:]
	}
	return len(p), nil
}

func (l *LoggerLog) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	if len(line) == 0 {
		return
	}
	l.logger.Log("output", string(line))
}

func (l *LoggerLog) String() string {
	return ""
}

func (l *LoggerLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.partial) > 0 {
		l.emit(l.partial)
		l.partial = nil
	}
	return nil
}

// WriterLog passes everything written to it straight through to a
// writer, e.g., a terminal. It keeps nothing.
type WriterLog struct {
	w  io.Writer
	mu sync.Mutex
}

func NewWriterLog(w io.Writer) *WriterLog {
	return &WriterLog{w: w}
}

func (l *WriterLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func (l *WriterLog) String() string {
	return ""
}

func (l *WriterLog) Close() error {
	return nil
}

type tee []Log

// Tee writes to all the logs given. Its String is that of the first
// log that keeps its contents.
func Tee(logs ...Log) Log {
	return tee(logs)
}

func (t tee) Write(p []byte) (int, error) {
	for _, l := range t {
		if _, err := l.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (t tee) String() string {
	for _, l := range t {
		if s := l.String(); s != "" {
			return s
		}
	}
	return ""
}

func (t tee) Close() error {
	var firstErr error
	for _, l := range t {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
