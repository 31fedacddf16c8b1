package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAliyunProvider(baseURL string, maxAttempts int) *AliyunProvider {
	return NewAliyunProvider(AliyunConfig{
		AccessKeyID:     "test-key-id",
		AccessKeySecret: "test-key-secret",
		AppKey:          "test-app-key",
		BaseURL:         baseURL,
		PollInterval:    time.Millisecond,
		MaxPollAttempts: maxAttempts,
	})
}

func TestAliyunIsAvailable(t *testing.T) {
	tests := []struct {
		name string
		cfg  AliyunConfig
		want bool
	}{
		{name: "all credentials", cfg: AliyunConfig{AccessKeyID: "a", AccessKeySecret: "b", AppKey: "c"}, want: true},
		{name: "missing key id", cfg: AliyunConfig{AccessKeySecret: "b", AppKey: "c"}, want: false},
		{name: "missing secret", cfg: AliyunConfig{AccessKeyID: "a", AppKey: "c"}, want: false},
		{name: "missing app key", cfg: AliyunConfig{AccessKeyID: "a", AccessKeySecret: "b"}, want: false},
		{name: "nothing", cfg: AliyunConfig{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewAliyunProvider(tt.cfg).IsAvailable())
		})
	}
}

func TestAliyunTranscribeSuccess(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Every request carries the acs signature headers.
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "acs test-key-id:"))
		assert.NotEmpty(t, r.Header.Get("Date"))

		if r.Method == http.MethodPost {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "test-app-key", body["appkey"])
			assert.Equal(t, "https://x/a.mp4", body["file_link"])
			assert.Equal(t, "4.0", body["version"])
			assert.Equal(t, true, body["enable_punctuation_prediction"])

			json.NewEncoder(w).Encode(map[string]any{
				"StatusCode": 200,
				"StatusText": "REQUEST_ACCEPTED",
				"TaskId":     "task-123",
			})
			return
		}

		assert.Equal(t, "task-123", r.URL.Query().Get("TaskId"))
		if polls.Add(1) < 3 {
			json.NewEncoder(w).Encode(map[string]any{"StatusText": "RUNNING"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"StatusText": "SUCCESS",
			"Result": map[string]any{
				"Sentences": []map[string]any{
					{"Text": "你好。", "BeginTime": 0, "EndTime": 1200, "SpeakerId": "1"},
					{"Text": "世界！", "BeginTime": 1200, "EndTime": 2400, "SpeakerId": "2"},
				},
				"Confidence": 0.97,
				"Duration":   2400,
			},
		})
	}))
	defer server.Close()

	provider := newTestAliyunProvider(server.URL, 10)
	result, err := provider.Transcribe(context.Background(), Request{
		FileURL:           "https://x/a.mp4",
		FileType:          FileTypeVideo,
		Language:          "zh-CN",
		EnablePunctuation: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "你好。世界！", result.Text)
	require.Len(t, result.Segments, 2)
	assert.Equal(t, Segment{Text: "你好。", StartTime: 0, EndTime: 1200, Speaker: "1"}, result.Segments[0])
	assert.Equal(t, Segment{Text: "世界！", StartTime: 1200, EndTime: 2400, Speaker: "2"}, result.Segments[1])
	assert.Equal(t, 0.97, result.Confidence)
	assert.Equal(t, int64(2400), result.Duration)
	assert.Equal(t, ProviderAliyun, result.Provider)
	assert.Equal(t, "zh-CN", result.Language)
	assert.Equal(t, int32(3), polls.Load())
}

func TestAliyunSubmitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"StatusCode": 41000,
			"StatusText": "USER_BIZDURATION_QUOTA_EXCEED",
		})
	}))
	defer server.Close()

	provider := newTestAliyunProvider(server.URL, 10)
	_, err := provider.Transcribe(context.Background(), Request{FileURL: "https://x/a.mp4"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrSubmit))
	assert.Contains(t, err.Error(), "USER_BIZDURATION_QUOTA_EXCEED")
}

func TestAliyunTaskFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"StatusCode": 200, "TaskId": "task-f"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"StatusText":   "FAILED",
			"ErrorMessage": "file format not supported",
		})
	}))
	defer server.Close()

	provider := newTestAliyunProvider(server.URL, 10)
	_, err := provider.Transcribe(context.Background(), Request{FileURL: "https://x/a.bin"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrPoll))
	assert.Contains(t, err.Error(), "file format not supported")
}

func TestAliyunPollTimeout(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"StatusCode": 200, "TaskId": "task-slow"})
			return
		}
		polls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"StatusText": "RUNNING"})
	}))
	defer server.Close()

	provider := newTestAliyunProvider(server.URL, 60)
	_, err := provider.Transcribe(context.Background(), Request{FileURL: "https://x/a.mp4"})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrTimeout))
	assert.Equal(t, int32(60), polls.Load(), "polling must stop after exactly the attempt budget")
}

func TestAliyunPollCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"StatusCode": 200, "TaskId": "task-c"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"StatusText": "RUNNING"})
	}))
	defer server.Close()

	provider := NewAliyunProvider(AliyunConfig{
		AccessKeyID:     "test-key-id",
		AccessKeySecret: "test-key-secret",
		AppKey:          "test-app-key",
		BaseURL:         server.URL,
		PollInterval:    time.Hour, // cancellation must not wait this out
		MaxPollAttempts: 60,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := provider.Transcribe(ctx, Request{FileURL: "https://x/a.mp4"})
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, IsErrorType(err, ErrCancelled))
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled poll loop did not return")
	}
}

func TestAliyunParseDefaults(t *testing.T) {
	// Absent optional fields decode to explicit zero values.
	provider := newTestAliyunProvider("http://unused", 1)
	result := provider.parseResult(&aliyunTaskResponse{StatusText: "SUCCESS"}, Request{Language: "zh-CN"})

	assert.Equal(t, "", result.Text)
	assert.Empty(t, result.Segments)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, int64(0), result.Duration)
	assert.Equal(t, ProviderAliyun, result.Provider)
}

func TestAliyunAuthHeaders(t *testing.T) {
	provider := newTestAliyunProvider("http://unused", 1)
	provider.now = func() time.Time {
		return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	}

	headers := provider.authHeaders(http.MethodPost, aliyunFileTransPath)
	assert.Equal(t, "Sun, 01 Mar 2026 10:00:00 GMT", headers["Date"])
	assert.True(t, strings.HasPrefix(headers["Authorization"], "acs test-key-id:"))

	// Same inputs sign identically; a different path does not.
	again := provider.authHeaders(http.MethodPost, aliyunFileTransPath)
	assert.Equal(t, headers["Authorization"], again["Authorization"])
	other := provider.authHeaders(http.MethodGet, aliyunFileTransPath+"?TaskId=x")
	assert.NotEqual(t, headers["Authorization"], other["Authorization"])
}
