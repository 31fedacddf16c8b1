package transcription

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chengyoucen9-png/bbdyy-idea/pkg/log"
)

const (
	defaultAliyunBaseURL     = "https://nls-filetrans.cn-shanghai.aliyuncs.com"
	defaultPollInterval      = 5 * time.Second
	defaultMaxPollAttempts   = 60
	aliyunFileTransPath      = "/filetrans"
	aliyunFileTransVersion   = "4.0"
	aliyunSubmitOKStatus     = 200
	aliyunStatusSuccess      = "SUCCESS"
	aliyunStatusFailed       = "FAILED"
	defaultAliyunHTTPTimeout = 30 * time.Second
)

// AliyunConfig holds the credentials and tuning knobs of the Aliyun file
// transcription provider. Missing credentials are not an error; they make
// the provider report itself unavailable.
type AliyunConfig struct {
	AccessKeyID     string
	AccessKeySecret string
	AppKey          string
	BaseURL         string        // defaults to the cn-shanghai endpoint
	PollInterval    time.Duration // defaults to 5s
	MaxPollAttempts int           // defaults to 60
}

// AliyunProvider drives the asynchronous Aliyun NLS file transcription job
// API: submit a task, poll it to a terminal state, parse the payload.
type AliyunProvider struct {
	cfg        AliyunConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewAliyunProvider creates the provider, filling config defaults.
func NewAliyunProvider(cfg AliyunConfig) *AliyunProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAliyunBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = defaultMaxPollAttempts
	}
	return &AliyunProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: defaultAliyunHTTPTimeout,
		},
		now: time.Now,
	}
}

func (p *AliyunProvider) Name() ProviderName {
	return ProviderAliyun
}

// IsAvailable reports whether all three credentials are configured.
// It never touches the network.
func (p *AliyunProvider) IsAvailable() bool {
	return p.cfg.AccessKeyID != "" && p.cfg.AccessKeySecret != "" && p.cfg.AppKey != ""
}

// jobHandle identifies one submitted transcription task. It lives for a
// single submit-poll-parse cycle and is discarded afterwards.
type jobHandle struct {
	TaskID      string
	SubmittedAt int64
}

// Transcribe runs one full submit-poll-parse cycle against the Aliyun API.
func (p *AliyunProvider) Transcribe(ctx context.Context, req Request) (*Result, error) {
	log.Info("Starting aliyun transcription: %s", req.FileURL)

	handle, err := p.submitTask(ctx, req)
	if err != nil {
		return nil, err
	}

	payload, err := p.pollTaskStatus(ctx, handle)
	if err != nil {
		return nil, err
	}

	return p.parseResult(payload, req), nil
}

type aliyunSubmitRequest struct {
	AppKey                         string `json:"appkey"`
	FileLink                       string `json:"file_link"`
	Version                        string `json:"version"`
	EnableWords                    bool   `json:"enable_words"`
	EnablePunctuationPrediction    bool   `json:"enable_punctuation_prediction"`
	EnableInverseTextNormalization bool   `json:"enable_inverse_text_normalization"`
	EnableDiarization              bool   `json:"enable_diarization"`
}

type aliyunTaskResponse struct {
	StatusCode   int               `json:"StatusCode"`
	StatusText   string            `json:"StatusText"`
	TaskID       string            `json:"TaskId"`
	ErrorMessage string            `json:"ErrorMessage"`
	Result       *aliyunTaskResult `json:"Result"`
}

type aliyunTaskResult struct {
	Sentences  []aliyunSentence `json:"Sentences"`
	Confidence float64          `json:"Confidence"`
	Duration   int64            `json:"Duration"`
}

type aliyunSentence struct {
	Text      string `json:"Text"`
	BeginTime int64  `json:"BeginTime"`
	EndTime   int64  `json:"EndTime"`
	SpeakerID string `json:"SpeakerId"`
}

// submitTask posts the file transcription task and returns its handle.
// A rejected submission is terminal; it is never retried here.
func (p *AliyunProvider) submitTask(ctx context.Context, req Request) (*jobHandle, error) {
	body := aliyunSubmitRequest{
		AppKey:                         p.cfg.AppKey,
		FileLink:                       req.FileURL,
		Version:                        aliyunFileTransVersion,
		EnableWords:                    true,
		EnablePunctuationPrediction:    req.EnablePunctuation,
		EnableInverseTextNormalization: true,
		EnableDiarization:              req.EnableDiarization,
	}

	resp, err := p.doRequest(ctx, http.MethodPost, aliyunFileTransPath, body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewErrorWithCause(ProviderAliyun, ErrCancelled, "submission cancelled", err)
		}
		return nil, NewErrorWithCause(ProviderAliyun, ErrSubmit, "task submission request failed", err)
	}

	if resp.StatusCode != aliyunSubmitOKStatus {
		return nil, NewError(ProviderAliyun, ErrSubmit,
			fmt.Sprintf("task submission rejected: %s", resp.StatusText))
	}
	if resp.TaskID == "" {
		return nil, NewError(ProviderAliyun, ErrSubmit, "task submission returned no task id")
	}

	return &jobHandle{
		TaskID:      resp.TaskID,
		SubmittedAt: p.now().UnixMilli(),
	}, nil
}

// pollTaskStatus queries the task at a fixed interval until it reaches a
// terminal state or the attempt budget runs out. The poll loop honors ctx
// cancellation between attempts.
func (p *AliyunProvider) pollTaskStatus(ctx context.Context, handle *jobHandle) (*aliyunTaskResponse, error) {
	path := fmt.Sprintf("%s?TaskId=%s", aliyunFileTransPath, handle.TaskID)

	for attempt := 0; attempt < p.cfg.MaxPollAttempts; attempt++ {
		resp, err := p.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewErrorWithCause(ProviderAliyun, ErrCancelled, "polling cancelled", err)
			}
			return nil, NewErrorWithCause(ProviderAliyun, ErrPoll, "task status request failed", err)
		}

		switch resp.StatusText {
		case aliyunStatusSuccess:
			return resp, nil
		case aliyunStatusFailed:
			return nil, NewError(ProviderAliyun, ErrPoll,
				fmt.Sprintf("task %s failed: %s", handle.TaskID, resp.ErrorMessage))
		}

		if err := p.wait(ctx); err != nil {
			return nil, NewErrorWithCause(ProviderAliyun, ErrCancelled, "polling cancelled", err)
		}
	}

	return nil, NewError(ProviderAliyun, ErrTimeout,
		fmt.Sprintf("task %s did not finish within %d attempts", handle.TaskID, p.cfg.MaxPollAttempts))
}

// wait sleeps one poll interval or returns early when ctx is done.
func (p *AliyunProvider) wait(ctx context.Context) error {
	timer := time.NewTimer(p.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseResult converts a SUCCESS payload into a Result. Sentence texts are
// concatenated for the full transcript; absent optional fields default to
// their zero values.
func (p *AliyunProvider) parseResult(payload *aliyunTaskResponse, req Request) *Result {
	var (
		text       bytes.Buffer
		segments   []Segment
		confidence float64
		duration   int64
	)

	if payload.Result != nil {
		segments = make([]Segment, 0, len(payload.Result.Sentences))
		for _, sentence := range payload.Result.Sentences {
			text.WriteString(sentence.Text)
			segments = append(segments, Segment{
				Text:      sentence.Text,
				StartTime: sentence.BeginTime,
				EndTime:   sentence.EndTime,
				Speaker:   sentence.SpeakerID,
			})
		}
		confidence = payload.Result.Confidence
		duration = payload.Result.Duration
	}

	return &Result{
		Text:       text.String(),
		Segments:   segments,
		Confidence: confidence,
		Duration:   duration,
		Provider:   ProviderAliyun,
		Language:   req.Language,
		Timestamp:  p.now().UnixMilli(),
	}
}

// doRequest issues one signed request against the file transcription API
// and decodes the response body.
func (p *AliyunProvider) doRequest(ctx context.Context, method, path string, payload any) (*aliyunTaskResponse, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range p.authHeaders(method, path) {
		req.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var taskResponse aliyunTaskResponse
	if err := json.Unmarshal(responseBody, &taskResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &taskResponse, nil
}

// authHeaders builds the acs signature headers for one request. The signed
// string covers the method, content type, date and the request path
// including its query.
func (p *AliyunProvider) authHeaders(method, path string) map[string]string {
	date := p.now().UTC().Format(http.TimeFormat)
	stringToSign := fmt.Sprintf("%s\n\napplication/json\n%s\n%s", method, date, path)

	mac := hmac.New(sha1.New, []byte(p.cfg.AccessKeySecret))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"Date":          date,
		"Authorization": fmt.Sprintf("acs %s:%s", p.cfg.AccessKeyID, signature),
	}
}
