package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/chengyoucen9-png/bbdyy-idea/internal/jobs"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/persistence"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/transcription"
)

type transcribeRequest struct {
	FileURL           string `json:"file_url"`
	FileType          string `json:"file_type"`
	Language          string `json:"language"`
	EnablePunctuation *bool  `json:"enable_punctuation"`
	EnableDiarization bool   `json:"enable_diarization"`
}

type urlRequest struct {
	FileURL string `json:"file_url"`
}

type srtResponse struct {
	Text     string                     `json:"text"`
	SRT      string                     `json:"srt"`
	Duration int64                      `json:"duration"`
	Provider transcription.ProviderName `json:"provider"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.FileURL == "" {
		writeError(w, http.StatusBadRequest, "missing file_url")
		return
	}

	// Punctuation defaults on when the field is absent.
	enablePunctuation := true
	if body.EnablePunctuation != nil {
		enablePunctuation = *body.EnablePunctuation
	}
	fileType := transcription.FileType(body.FileType)
	if fileType == "" {
		fileType = transcription.FileTypeAudio
	}

	result, err := s.svc.Transcribe(r.Context(), transcription.Request{
		FileURL:           body.FileURL,
		FileType:          fileType,
		Language:          body.Language,
		EnablePunctuation: enablePunctuation,
		EnableDiarization: body.EnableDiarization,
	})
	if err != nil {
		writeTranscribeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTranscribeVideo(w http.ResponseWriter, r *http.Request) {
	s.handleConvenience(w, r, s.svc.TranscribeVideo)
}

func (s *Server) handleTranscribeAudio(w http.ResponseWriter, r *http.Request) {
	s.handleConvenience(w, r, s.svc.TranscribeAudio)
}

func (s *Server) handleConvenience(
	w http.ResponseWriter,
	r *http.Request,
	transcribe func(ctx context.Context, url string) (*transcription.Result, error),
) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body urlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FileURL == "" {
		writeError(w, http.StatusBadRequest, "missing file_url")
		return
	}

	result, err := transcribe(r.Context(), body.FileURL)
	if err != nil {
		writeTranscribeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateSRT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body urlRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FileURL == "" {
		writeError(w, http.StatusBadRequest, "missing file_url")
		return
	}

	result, err := s.svc.TranscribeVideo(r.Context(), body.FileURL)
	if err != nil {
		writeTranscribeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, srtResponse{
		Text:     result.Text,
		SRT:      s.svc.GenerateSRT(result.Segments),
		Duration: result.Duration,
		Provider: result.Provider,
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Without a file_url everything is invalidated.
	s.svc.ClearCache(r.URL.Query().Get("file_url"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEnqueueJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusNotImplemented, "job queue disabled")
		return
	}

	var body transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FileURL == "" {
		writeError(w, http.StatusBadRequest, "missing file_url")
		return
	}

	enablePunctuation := true
	if body.EnablePunctuation != nil {
		enablePunctuation = *body.EnablePunctuation
	}

	job, created := s.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "api",
		DedupeKey: transcription.Fingerprint(body.FileURL),
		Payload: jobs.JobPayload{
			FileURL:           body.FileURL,
			FileType:          body.FileType,
			Language:          body.Language,
			EnablePunctuation: enablePunctuation,
			EnableDiarization: body.EnableDiarization,
		},
	})

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, status, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusNotImplemented, "job queue disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.queue.List())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusNotImplemented, "job queue disabled")
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID = strings.TrimSuffix(jobID, "/")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing job id")
		return
	}

	job, ok := s.queue.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.results == nil {
		writeError(w, http.StatusNotImplemented, "result store disabled")
		return
	}

	fingerprint := strings.TrimPrefix(r.URL.Path, "/api/transcription/results/")
	fingerprint = strings.TrimSuffix(fingerprint, "/")
	if fingerprint == "" {
		writeError(w, http.StatusBadRequest, "missing fingerprint")
		return
	}

	result, err := s.results.GetResult(r.Context(), fingerprint)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeTranscribeError maps orchestrator errors to HTTP responses. Total
// provider exhaustion is the only expected error and maps to 503 with its
// fixed message.
func writeTranscribeError(w http.ResponseWriter, err error) {
	if errors.Is(err, transcription.ErrServiceUnavailable) {
		writeError(w, http.StatusServiceUnavailable, transcription.ErrServiceUnavailable.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
