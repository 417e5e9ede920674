package logger

import (
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

// FluentSink forwards status messages to a Fluent Bit / fluentd endpoint.
type FluentSink struct {
	client *fluent.Fluent
}

// NewFluentSink connects to host:port. Messages are tagged
// "<tagPrefix>.<level>".
func NewFluentSink(host string, port int, tagPrefix string) (*FluentSink, error) {
	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		TagPrefix:  tagPrefix,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create fluent client: %w", err)
	}
	return &FluentSink{client: client}, nil
}

// Post sends one message.
func (f *FluentSink) Post(msg Message) error {
	return f.client.Post(msg.Level, map[string]string{
		"level":     msg.Level,
		"message":   msg.Text,
		"timestamp": msg.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

// Close flushes and closes the connection.
func (f *FluentSink) Close() error {
	return f.client.Close()
}
