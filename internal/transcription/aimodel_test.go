package transcription

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModelClient struct {
	text       string
	err        error
	gotURL     string
	gotPrompt  string
	callCount  int
	cancelFunc context.CancelFunc
}

func (c *stubModelClient) TranscribeAudio(ctx context.Context, audioURL, instruction string) (string, error) {
	c.callCount++
	c.gotURL = audioURL
	c.gotPrompt = instruction
	if c.cancelFunc != nil {
		c.cancelFunc()
		return "", ctx.Err()
	}
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

func TestAIModelAlwaysAvailable(t *testing.T) {
	provider := NewAIModelProvider(&stubModelClient{})
	assert.True(t, provider.IsAvailable())
	assert.Equal(t, ProviderAIModel, provider.Name())
}

func TestAIModelTranscribe(t *testing.T) {
	client := &stubModelClient{text: "你好。世界！"}
	provider := NewAIModelProvider(client)

	result, err := provider.Transcribe(context.Background(), Request{
		FileURL:  "https://x/a.mp4",
		FileType: FileTypeVideo,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://x/a.mp4", client.gotURL)
	assert.NotEmpty(t, client.gotPrompt)

	// Full text is the model output verbatim; segments drop the terminal
	// punctuation and carry synthetic timings at 200ms per rune.
	assert.Equal(t, "你好。世界！", result.Text)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, Segment{Text: "你好", StartTime: 0, EndTime: 400}, result.Segments[0])
	assert.Equal(t, Segment{Text: "世界", StartTime: 400, EndTime: 800}, result.Segments[1])

	assert.Equal(t, aiModelConfidence, result.Confidence)
	assert.Equal(t, int64(0), result.Duration)
	assert.Equal(t, ProviderAIModel, result.Provider)
}

func TestAIModelDetectsTranscriptLanguage(t *testing.T) {
	// Han text detects as Mandarin with full confidence, overriding the
	// language hint from the request.
	client := &stubModelClient{text: "你好。世界！"}
	provider := NewAIModelProvider(client)

	result, err := provider.Transcribe(context.Background(), Request{
		FileURL:  "https://x/a.mp4",
		Language: "en",
	})
	require.NoError(t, err)
	assert.Equal(t, "cmn", result.Language)
}

func TestAIModelKeepsLanguageHintWhenDetectionUnreliable(t *testing.T) {
	// Digits carry no script signal, so detection reports unreliable and
	// the request hint survives.
	client := &stubModelClient{text: "12345"}
	provider := NewAIModelProvider(client)

	result, err := provider.Transcribe(context.Background(), Request{
		FileURL:  "https://x/a.mp3",
		Language: "zh-CN",
	})
	require.NoError(t, err)
	assert.Equal(t, "zh-CN", result.Language)
}

func TestAIModelTranscribeError(t *testing.T) {
	client := &stubModelClient{err: errors.New("connection refused")}
	provider := NewAIModelProvider(client)

	_, err := provider.Transcribe(context.Background(), Request{FileURL: "https://x/a.mp4"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrRequest))
}

func TestAIModelTranscribeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &stubModelClient{cancelFunc: cancel}
	provider := NewAIModelProvider(client)

	_, err := provider.Transcribe(ctx, Request{FileURL: "https://x/a.mp4"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrCancelled))
}

func TestSplitIntoSegments(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Segment
	}{
		{
			name: "empty",
			text: "",
			want: []Segment{},
		},
		{
			name: "punctuation only",
			text: "。！？",
			want: []Segment{},
		},
		{
			name: "chinese sentences",
			text: "你好。世界！",
			want: []Segment{
				{Text: "你好", StartTime: 0, EndTime: 400},
				{Text: "世界", StartTime: 400, EndTime: 800},
			},
		},
		{
			// Timings count the whitespace left over from the split, so
			// " How are you" is 12 runes, not 11. Matches the upstream
			// behavior of estimating from the raw sentence length.
			name: "mixed punctuation and spaces",
			text: "Hello there. How are you? 很好！",
			want: []Segment{
				{Text: "Hello there", StartTime: 0, EndTime: 2200},
				{Text: "How are you", StartTime: 2200, EndTime: 4600},
				{Text: "很好", StartTime: 4600, EndTime: 5200},
			},
		},
		{
			name: "leading whitespace extends duration",
			text: "你好。  世界！",
			want: []Segment{
				{Text: "你好", StartTime: 0, EndTime: 400},
				{Text: "世界", StartTime: 400, EndTime: 1200},
			},
		},
		{
			name: "no terminator",
			text: "没有标点",
			want: []Segment{
				{Text: "没有标点", StartTime: 0, EndTime: 800},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSegments(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}
