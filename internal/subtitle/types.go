package subtitle

import "time"

// Line represents a single subtitle cue.
type Line struct {
	Index     int           // 1-based cue number
	StartTime time.Duration // offset from media start
	EndTime   time.Duration // offset from media start
	Text      string        // cue text
}

// Writer is the interface for writing subtitle tracks to files.
type Writer interface {
	Write(path string, lines []Line) error
}
