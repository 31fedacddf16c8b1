package transcription

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"

	"github.com/chengyoucen9-png/bbdyy-idea/pkg/log"
)

const (
	// aiModelConfidence is a documented estimate, not a measured value: this
	// path is a lower-fidelity fallback without per-sentence scores.
	aiModelConfidence = 0.85

	// aiModelMillisPerChar is the synthetic per-character time budget used to
	// fabricate segment timings, since the model returns plain text only.
	aiModelMillisPerChar = 200

	aiModelInstruction = "请将这段音频转写成文字，保持原意，添加标点符号。"
)

// audioModelClient is the slice of the model client the provider needs.
type audioModelClient interface {
	TranscribeAudio(ctx context.Context, audioURL, instruction string) (string, error)
}

// AIModelProvider transcribes by asking a general-purpose multimodal model
// to listen to the audio in a single call. It has no credential gate of its
// own and therefore always reports itself available.
type AIModelProvider struct {
	client audioModelClient
	now    func() time.Time
}

// NewAIModelProvider creates the fallback provider on top of a multimodal
// model client.
func NewAIModelProvider(client audioModelClient) *AIModelProvider {
	return &AIModelProvider{
		client: client,
		now:    time.Now,
	}
}

func (p *AIModelProvider) Name() ProviderName {
	return ProviderAIModel
}

func (p *AIModelProvider) IsAvailable() bool {
	return true
}

// Transcribe sends the audio URL and a fixed instruction to the model, then
// splits the returned text into coarse sentence segments with synthetic
// timings.
func (p *AIModelProvider) Transcribe(ctx context.Context, req Request) (*Result, error) {
	log.Info("Using AI model transcription (fallback): %s", req.FileURL)

	text, err := p.client.TranscribeAudio(ctx, req.FileURL, aiModelInstruction)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewErrorWithCause(ProviderAIModel, ErrCancelled, "model request cancelled", err)
		}
		return nil, NewErrorWithCause(ProviderAIModel, ErrRequest, "model request failed", err)
	}

	language := req.Language
	if info := whatlanggo.Detect(text); info.IsReliable() {
		language = whatlanggo.LangToString(info.Lang)
	}

	return &Result{
		Text:       text,
		Segments:   splitIntoSegments(text),
		Confidence: aiModelConfidence,
		Duration:   0,
		Provider:   ProviderAIModel,
		Language:   language,
		Timestamp:  p.now().UnixMilli(),
	}, nil
}

// splitIntoSegments breaks text on sentence-terminating punctuation and
// assigns each sentence a duration proportional to its rune count, with
// start times accumulating from zero. The duration counts the sentence
// before trimming, so surrounding whitespace still consumes time.
func splitIntoSegments(text string) []Segment {
	sentences := strings.FieldsFunc(text, isSentenceTerminator)

	segments := make([]Segment, 0, len(sentences))
	var currentTime int64
	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}

		duration := int64(utf8.RuneCountInString(sentence)) * aiModelMillisPerChar
		segments = append(segments, Segment{
			Text:      trimmed,
			StartTime: currentTime,
			EndTime:   currentTime + duration,
		})
		currentTime += duration
	}
	return segments
}

func isSentenceTerminator(r rune) bool {
	switch r {
	case '。', '！', '？', '.', '!', '?':
		return true
	}
	return false
}
