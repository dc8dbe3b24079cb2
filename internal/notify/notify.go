// Package notify fans battle messages out to observers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/signalsfoundry/npc-arena/internal/logging"
)

// ErrIO wraps failures to open or write a sink's destination.
var ErrIO = errors.New("notification sink I/O failure")

// DefaultLogFile is the battle log the original game appended to.
const DefaultLogFile = "log.txt"

// Sink receives battle messages. Implementations must be safe for
// concurrent use and must not block indefinitely.
type Sink interface {
	Notify(message string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(message string)

// Notify calls f.
func (f SinkFunc) Notify(message string) { f(message) }

// Subject delivers every message to each attached sink in attachment order.
type Subject struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewSubject returns a subject with the given sinks attached.
func NewSubject(sinks ...Sink) *Subject {
	s := &Subject{}
	for _, sink := range sinks {
		s.Attach(sink)
	}
	return s
}

// Attach appends a sink. Nil sinks are ignored.
func (s *Subject) Attach(sink Sink) {
	if sink == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Detach removes every attachment of sink. Sinks that are not comparable
// (e.g. SinkFunc) cannot be detached.
func (s *Subject) Detach(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sinks[:0]
	for _, existing := range s.sinks {
		if !sameSink(existing, sink) {
			kept = append(kept, existing)
		}
	}
	for i := len(kept); i < len(s.sinks); i++ {
		s.sinks[i] = nil
	}
	s.sinks = kept
}

// Len returns the number of attached sinks.
func (s *Subject) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sinks)
}

// Notify forwards message to every sink.
func (s *Subject) Notify(message string) {
	s.mu.RLock()
	sinks := append([]Sink(nil), s.sinks...)
	s.mu.RUnlock()

	// Deliver outside the lock so a slow sink cannot block Attach/Detach.
	for _, sink := range sinks {
		sink.Notify(message)
	}
}

func sameSink(a, b Sink) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// WriterSink writes "[Battle] <message>" lines to w, serialising writers.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink writes to stdout.
func NewConsoleSink() *WriterSink {
	return NewWriterSink(os.Stdout)
}

// NewWriterSink writes to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Notify writes one line. Write errors are dropped; the console is best
// effort.
func (s *WriterSink) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, "[Battle] %s\n", message)
}

// Write passes p through under the sink's lock, so other output can share
// the writer without interleaving with battle lines.
func (s *WriterSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// FileSink appends battle lines to a file.
type FileSink struct {
	WriterSink
	f   *os.File
	log logging.Logger
}

// OpenFileSink opens path for appending, creating it if needed.
func OpenFileSink(path string, log logging.Logger) (*FileSink, error) {
	if path == "" {
		path = DefaultLogFile
	}
	if log == nil {
		log = logging.Noop()
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open battle log %q: %v", ErrIO, path, err)
	}
	return &FileSink{WriterSink: WriterSink{w: f}, f: f, log: log}, nil
}

// Notify appends one line, logging write failures instead of failing the
// caller.
func (s *FileSink) Notify(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.f, "[Battle] %s\n", message); err != nil {
		s.log.Warn(context.Background(), "battle log write failed",
			logging.String("path", s.f.Name()),
			logging.Err(err),
		)
	}
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("%w: close battle log: %v", ErrIO, err)
	}
	return nil
}

// LogSink emits each message as a structured log record.
type LogSink struct {
	log logging.Logger
}

// NewLogSink wraps log; a nil logger drops messages.
func NewLogSink(log logging.Logger) *LogSink {
	if log == nil {
		log = logging.Noop()
	}
	return &LogSink{log: log}
}

// Notify logs message at info level.
func (s *LogSink) Notify(message string) {
	s.log.Info(context.Background(), "battle", logging.String("message", message))
}
