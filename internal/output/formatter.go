package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dtcare/consult/internal/feed"
)

// TranscriptEntry is the export shape of one feed entry
type TranscriptEntry struct {
	Index          int       `json:"index"`
	Question       string    `json:"question,omitempty"`
	Text           string    `json:"text"`
	Classification string    `json:"classification"`
	SessionID      string    `json:"session_id,omitempty"`
	SelectedMRN    string    `json:"selected_mrn,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Formatter is the interface for transcript export formatters
type Formatter interface {
	// WriteEntry writes one feed entry
	WriteEntry(entry feed.Entry) error

	// Flush ensures all buffered output is written
	Flush() error

	// Close closes the formatter and releases resources
	Close() error
}

// NewFormatter creates a formatter for the given format name
func NewFormatter(format string, writer io.Writer) (Formatter, error) {
	switch format {
	case "json":
		return NewJSONFormatter(writer), nil
	case "text":
		return NewPlainTextFormatter(writer), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s (valid: console, json, text)", format)
	}
}

// JSONFormatter exports the transcript as a stream of JSON objects
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return &JSONFormatter{encoder: encoder}
}

// WriteEntry writes one feed entry in JSON format
func (j *JSONFormatter) WriteEntry(entry feed.Entry) error {
	return j.encoder.Encode(TranscriptEntry{
		Index:          entry.Index,
		Question:       entry.Question,
		Text:           entry.Text,
		Classification: string(entry.Classification),
		SessionID:      entry.SessionID,
		SelectedMRN:    entry.SelectedMRN,
		Timestamp:      entry.ReceivedAt,
	})
}

// Flush ensures all buffered output is written
func (j *JSONFormatter) Flush() error {
	// JSON encoder writes immediately, nothing to flush
	return nil
}

// Close closes the formatter
func (j *JSONFormatter) Close() error {
	return nil
}

// PlainTextFormatter exports the transcript as plain text lines
type PlainTextFormatter struct {
	writer io.Writer
}

// NewPlainTextFormatter creates a new plain text formatter
func NewPlainTextFormatter(writer io.Writer) *PlainTextFormatter {
	return &PlainTextFormatter{writer: writer}
}

// WriteEntry writes one feed entry in plain text
func (p *PlainTextFormatter) WriteEntry(entry feed.Entry) error {
	line := fmt.Sprintf("[%s]", timestamp(entry.ReceivedAt))
	if entry.Question != "" {
		line += fmt.Sprintf(" >> %s |", entry.Question)
	}
	line += fmt.Sprintf(" %s", entry.Text)
	if entry.Classification != feed.ClassPlain {
		line += fmt.Sprintf(" (%s)", entry.Classification)
	}

	_, err := fmt.Fprintln(p.writer, line)
	return err
}

// Flush ensures all buffered output is written
func (p *PlainTextFormatter) Flush() error {
	return nil
}

// Close closes the formatter
func (p *PlainTextFormatter) Close() error {
	return nil
}
