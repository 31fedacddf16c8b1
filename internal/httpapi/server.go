package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/chengyoucen9-png/bbdyy-idea/internal/jobs"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/transcription"
)

// Transcriber is the slice of the orchestrator the HTTP layer uses.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error)
	TranscribeVideo(ctx context.Context, videoURL string) (*transcription.Result, error)
	TranscribeAudio(ctx context.Context, audioURL string) (*transcription.Result, error)
	GenerateSRT(segments []transcription.Segment) string
	ClearCache(fileURL string)
}

// ResultReader loads persisted transcriptions by fingerprint, typically the
// result key a finished job reports.
type ResultReader interface {
	GetResult(ctx context.Context, fingerprint string) (*transcription.Result, error)
}

type Server struct {
	svc     Transcriber
	queue   *jobs.Queue
	results ResultReader

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithQueue enables the async job endpoints.
func WithQueue(queue *jobs.Queue) Option {
	return func(s *Server) {
		s.queue = queue
	}
}

// WithResultStore enables the persisted-result endpoint.
func WithResultStore(results ResultReader) Option {
	return func(s *Server) {
		s.results = results
	}
}

func NewServer(svc Transcriber, opts ...Option) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/transcription", s.handleTranscribe)
	s.mux.HandleFunc("/api/transcription/video", s.handleTranscribeVideo)
	s.mux.HandleFunc("/api/transcription/audio", s.handleTranscribeAudio)
	s.mux.HandleFunc("/api/transcription/srt", s.handleGenerateSRT)
	s.mux.HandleFunc("/api/transcription/cache", s.handleCache)
	s.mux.HandleFunc("/api/transcription/jobs", s.handleEnqueueJob)
	s.mux.HandleFunc("/api/transcription/results/", s.handleGetResult)
	s.mux.HandleFunc("/api/jobs", s.handleListJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleGetJob)
}
