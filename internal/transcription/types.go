package transcription

import "context"

// FileType identifies the kind of media behind a request URL.
type FileType string

const (
	FileTypeAudio FileType = "audio"
	FileTypeVideo FileType = "video"
)

// ProviderName tags which backend produced a result.
type ProviderName string

const (
	ProviderAliyun  ProviderName = "aliyun"
	ProviderAIModel ProviderName = "ai_model"
)

// Request describes one transcription call. It is built per call and
// never mutated afterwards.
type Request struct {
	FileURL           string   `json:"file_url"`
	FileType          FileType `json:"file_type"`
	Language          string   `json:"language,omitempty"`
	EnablePunctuation bool     `json:"enable_punctuation"`
	EnableDiarization bool     `json:"enable_diarization"`
}

// Segment is a timed span of transcript text.
// Times are offsets from the start of the media, in milliseconds.
type Segment struct {
	Text      string `json:"text"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Speaker   string `json:"speaker,omitempty"`
}

// Result is the outcome of a transcription. Segments may be empty when the
// provider returned no timing information. Confidence is in [0,1] with 0
// meaning unknown; Duration is in milliseconds.
type Result struct {
	Text       string       `json:"text"`
	Segments   []Segment    `json:"segments,omitempty"`
	Confidence float64      `json:"confidence"`
	Duration   int64        `json:"duration"`
	Provider   ProviderName `json:"provider"`
	Language   string       `json:"language,omitempty"`
	Timestamp  int64        `json:"timestamp"`
}

// Provider is a speech-to-text backend behind a uniform contract.
// IsAvailable is a pure configuration check and must not touch the network;
// a false return is a routing signal, not an error.
type Provider interface {
	Name() ProviderName
	IsAvailable() bool
	Transcribe(ctx context.Context, req Request) (*Result, error)
}
