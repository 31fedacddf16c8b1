package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// EnqueueRequest asks the queue for a new transcription job. DedupeKey is
// normally the content fingerprint, so re-submitting the same URL while a
// job is in flight returns the existing job.
type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

// JobPayload carries the transcription request of one job.
type JobPayload struct {
	FileURL           string `json:"file_url"`
	FileType          string `json:"file_type"`
	Language          string `json:"language,omitempty"`
	EnablePunctuation bool   `json:"enable_punctuation"`
	EnableDiarization bool   `json:"enable_diarization"`
}

// TranscriptionJob is one queued transcription. ResultKey is the
// fingerprint under which the finished result was persisted; it is set on
// success only.
type TranscriptionJob struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	ResultKey string     `json:"result_key,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
