package subtitle

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// FormatTrack renders lines as an SRT track. Lines are emitted in input
// order with 1-based sequence numbers; the caller's ordering is trusted
// verbatim. An empty input yields an empty string.
func FormatTrack(lines []Line) string {
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatDuration(line.StartTime), formatDuration(line.EndTime))
		fmt.Fprintf(&b, "%s\n", line.Text)
		if i < len(lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// DefaultWriter writes SRT tracks to disk.
type DefaultWriter struct{}

// NewWriter creates a new subtitle file writer.
func NewWriter() Writer {
	return &DefaultWriter{}
}

// Write renders lines as SRT and writes them to path.
func (w *DefaultWriter) Write(path string, lines []Line) error {
	if err := os.WriteFile(path, []byte(FormatTrack(lines)), 0o644); err != nil {
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	return nil
}

// formatDuration formats a duration as the SRT timecode HH:MM:SS,mmm.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}
