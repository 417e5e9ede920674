// Package logger provides a thread-safe in-memory logger for status messages
// shown to the viewer, mirrored to the process log and optional sinks.
package logger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Message represents a single log message
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Level     string    `json:"level"` // info, warning, error
}

// Sink receives every message after it is recorded.
type Sink interface {
	Post(msg Message) error
}

// Logger manages in-memory log messages
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
	slog     *slog.Logger
	sinks    []Sink
}

// Option configures a Logger.
type Option func(*Logger)

// WithSlog mirrors every message to l.
func WithSlog(l *slog.Logger) Option {
	return func(lg *Logger) { lg.slog = l }
}

// WithSink forwards every message to s.
func WithSink(s Sink) Option {
	return func(lg *Logger) { lg.sinks = append(lg.sinks, s) }
}

// New creates a new logger with specified max message count
func New(maxSize int, opts ...Option) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	l := &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log adds a new message to the logger
func (l *Logger) Log(level, text string) {
	msg := Message{
		Timestamp: time.Now(),
		Text:      text,
		Level:     level,
	}

	l.mu.Lock()
	l.messages = append(l.messages, msg)
	// Keep only the last maxSize messages
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}
	l.mu.Unlock()

	if l.slog != nil {
		l.slog.Log(context.Background(), slogLevel(level), text, "source", "status")
	}
	for _, s := range l.sinks {
		if err := s.Post(msg); err != nil && l.slog != nil {
			l.slog.Warn("status sink failed", "error", err)
		}
	}
}

// Info logs an info-level message
func (l *Logger) Info(text string) {
	l.Log("info", text)
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) {
	l.Log("warning", text)
}

// Error logs an error-level message
func (l *Logger) Error(text string) {
	l.Log("error", text)
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) {
		n = len(l.messages)
	}

	// Return in reverse order (newest first)
	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	l.mu.RLock()
	n := len(l.messages)
	l.mu.RUnlock()
	return l.GetRecent(n)
}

func slogLevel(level string) slog.Level {
	switch level {
	case "error":
		return slog.LevelError
	case "warning":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
