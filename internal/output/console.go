package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dtcare/consult/internal/feed"
	"github.com/dtcare/consult/internal/patients"
)

// ConsoleOutput renders the conversation feed and patient panel to the
// terminal
type ConsoleOutput struct {
	mu            sync.Mutex
	writer        io.Writer
	showTimestamp bool
}

// ConsoleConfig configures console output behavior
type ConsoleConfig struct {
	// ShowTimestamp prefixes feed entries with their arrival time
	ShowTimestamp bool

	// Writer is the output destination (default: os.Stdout)
	Writer io.Writer
}

// NewConsoleOutput creates a new console output handler
func NewConsoleOutput(config ConsoleConfig) *ConsoleOutput {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}

	return &ConsoleOutput{
		writer:        writer,
		showTimestamp: config.ShowTimestamp,
	}
}

// DefaultConsoleOutput creates a console output with default settings
func DefaultConsoleOutput() *ConsoleOutput {
	return NewConsoleOutput(ConsoleConfig{
		ShowTimestamp: true,
		Writer:        os.Stdout,
	})
}

// RenderEntry writes one feed entry: question label, answer text,
// classification tag, and any candidate or diarization detail
func (c *ConsoleOutput) RenderEntry(entry feed.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := ""
	if c.showTimestamp {
		prefix = fmt.Sprintf("[%s] ", entry.ReceivedAt.Format("15:04:05"))
	}

	if entry.Question != "" {
		fmt.Fprintf(c.writer, "%s>> %s\n", prefix, entry.Question)
	}

	tag := ""
	if entry.Classification != feed.ClassPlain {
		tag = fmt.Sprintf(" (%s)", entry.Classification)
	}
	fmt.Fprintf(c.writer, "%s%s%s\n", prefix, entry.Text, tag)

	if entry.TranscribeTime > 0 {
		fmt.Fprintf(c.writer, "%s   transcribed in %.2fs\n", prefix, entry.TranscribeTime)
	}

	if len(entry.Candidates) > 0 {
		fmt.Fprintf(c.writer, "%s   Multiple patients matched. Pick one with /select <mrn>:\n", prefix)
		for _, candidate := range entry.Candidates {
			fmt.Fprintf(c.writer, "%s     %-10s %s (dob %s)\n", prefix, candidate.MRN, candidate.Name, candidate.DOB)
		}
	}

	if len(entry.SpeakerSegments) > 0 {
		fmt.Fprintf(c.writer, "%s   Conversation breakdown:\n", prefix)
		for _, segment := range entry.SpeakerSegments {
			fmt.Fprintf(c.writer, "%s     [%s %s-%s] %s\n",
				prefix, segment.Speaker, segment.StartTime, segment.EndTime, segment.Text)
		}
	}

	if entry.URL != "" {
		fmt.Fprintf(c.writer, "%s   audio: %s (play with /play %d)\n", prefix, entry.URL, entry.Index)
	}
}

// RenderPatient writes the patient panel shown when a record is in context
func (c *ConsoleOutput) RenderPatient(patient *patients.Patient, visits []patients.Visit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "--- Patient %s ---\n", patient.MRN)
	fmt.Fprintf(c.writer, "  Name:  %s\n", patient.Name)
	fmt.Fprintf(c.writer, "  DOB:   %s\n", patient.DOB)
	if patient.Phone != "" {
		fmt.Fprintf(c.writer, "  Phone: %s\n", patient.Phone)
	}
	if patient.Email != "" {
		fmt.Fprintf(c.writer, "  Email: %s\n", patient.Email)
	}

	if len(visits) > 0 {
		fmt.Fprintf(c.writer, "  Visits:\n")
		for _, visit := range visits {
			fmt.Fprintf(c.writer, "    %s  %-12s %s\n", visit.Date, visit.Type, visit.Notes)
		}
	}
	fmt.Fprintln(c.writer, "-------------------")
}

// Timer overwrites the current line with the running session duration
func (c *ConsoleOutput) Timer(elapsedSeconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "\r[recording %s] ", FormatDuration(elapsedSeconds))
}

// Info writes an informational message
func (c *ConsoleOutput) Info(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "[INFO] %s\n", msg)
}

// Error writes an error message to stderr
func (c *ConsoleOutput) Error(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(os.Stderr, "[ERROR] %s\n", msg)
}

// Clear clears the current line
func (c *ConsoleOutput) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.writer, "\r%80s\r", " ")
}

// FormatDuration renders whole seconds as MM:SS
func FormatDuration(seconds int) string {
	mins := seconds / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

func timestamp(t time.Time) string {
	return t.Format("15:04:05")
}
