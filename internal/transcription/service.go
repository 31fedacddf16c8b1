package transcription

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/chengyoucen9-png/bbdyy-idea/internal/cache"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/subtitle"
	"github.com/chengyoucen9-png/bbdyy-idea/pkg/log"
)

// ResultStore persists finished transcriptions. A store failure never fails
// the request; it is logged and swallowed.
type ResultStore interface {
	SaveResult(ctx context.Context, fingerprint string, result *Result) error
}

// Service is the transcription orchestrator. It tries providers in priority
// order, falls back on failure, and memoizes results in a TTL cache keyed by
// the content URL alone.
type Service struct {
	providers       []Provider
	cache           *cache.Cache[*Result]
	store           ResultStore
	defaultLanguage string
	srtDir          string
	srtWriter       subtitle.Writer

	flight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithResultStore attaches a persistence hook for finished results.
func WithResultStore(store ResultStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithSRTExportDir makes the service write an .srt file per finished
// transcription into dir, named by fingerprint. Like the result store, a
// write failure never fails the request.
func WithSRTExportDir(dir string) Option {
	return func(s *Service) {
		s.srtDir = dir
		s.srtWriter = subtitle.NewWriter()
	}
}

// WithDefaultLanguage sets the language hint used by the TranscribeVideo and
// TranscribeAudio conveniences.
func WithDefaultLanguage(tag language.Tag) Option {
	return func(s *Service) {
		s.defaultLanguage = tag.String()
	}
}

// NewService creates the orchestrator. Providers are tried in the order
// given; the first one that is available and succeeds wins.
func NewService(providers []Provider, resultCache *cache.Cache[*Result], opts ...Option) *Service {
	s := &Service{
		providers:       providers,
		cache:           resultCache,
		defaultLanguage: language.Make("zh-CN").String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fingerprint computes the deterministic cache key for a content URL.
// Language and option fields are deliberately not part of the key: two
// requests differing only in options share a cached result.
func Fingerprint(fileURL string) string {
	sum := md5.Sum([]byte(fileURL))
	return hex.EncodeToString(sum[:])
}

// Transcribe resolves one request through the cache and the provider chain.
// When every provider fails, the underlying causes are logged and the caller
// receives only ErrServiceUnavailable.
func (s *Service) Transcribe(ctx context.Context, req Request) (*Result, error) {
	key := Fingerprint(req.FileURL)

	if result, ok := s.cache.Get(key); ok {
		log.Info("Using cached transcription result for %s", req.FileURL)
		return result, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.transcribeUncached(ctx, key, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) transcribeUncached(ctx context.Context, key string, req Request) (*Result, error) {
	for _, provider := range s.providers {
		if !provider.IsAvailable() {
			log.Warn("Provider %s is not available, trying next", provider.Name())
			continue
		}

		log.Info("Using provider %s for %s", provider.Name(), req.FileURL)
		result, err := provider.Transcribe(ctx, req)
		if err != nil {
			log.Warn("Provider %s failed: %v, trying next", provider.Name(), err)
			continue
		}

		s.cache.Put(key, result)
		s.persistResult(ctx, key, result)
		s.exportSRT(key, result)
		return result, nil
	}

	log.Error("All transcription providers failed for %s", req.FileURL)
	return nil, ErrServiceUnavailable
}

func (s *Service) persistResult(ctx context.Context, key string, result *Result) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveResult(ctx, key, result); err != nil {
		log.Error("Failed to persist transcription result %s: %v", key, err)
	}
}

func (s *Service) exportSRT(key string, result *Result) {
	if s.srtWriter == nil || len(result.Segments) == 0 {
		return
	}
	path := filepath.Join(s.srtDir, key+".srt")
	if err := s.srtWriter.Write(path, segmentsToLines(result.Segments)); err != nil {
		log.Error("Failed to export subtitle file %s: %v", path, err)
	}
}

// TranscribeVideo transcribes a video URL with the service defaults.
// Audio extraction happens on the provider side; the URL is passed through.
func (s *Service) TranscribeVideo(ctx context.Context, videoURL string) (*Result, error) {
	return s.Transcribe(ctx, Request{
		FileURL:           videoURL,
		FileType:          FileTypeVideo,
		Language:          s.defaultLanguage,
		EnablePunctuation: true,
	})
}

// TranscribeAudio transcribes an audio URL with the service defaults.
func (s *Service) TranscribeAudio(ctx context.Context, audioURL string) (*Result, error) {
	return s.Transcribe(ctx, Request{
		FileURL:           audioURL,
		FileType:          FileTypeAudio,
		Language:          s.defaultLanguage,
		EnablePunctuation: true,
	})
}

// GenerateSRT renders segments as an SRT subtitle track. Segment order is
// trusted verbatim.
func (s *Service) GenerateSRT(segments []Segment) string {
	return subtitle.FormatTrack(segmentsToLines(segments))
}

func segmentsToLines(segments []Segment) []subtitle.Line {
	lines := make([]subtitle.Line, 0, len(segments))
	for _, segment := range segments {
		lines = append(lines, subtitle.Line{
			StartTime: time.Duration(segment.StartTime) * time.Millisecond,
			EndTime:   time.Duration(segment.EndTime) * time.Millisecond,
			Text:      segment.Text,
		})
	}
	return lines
}

// ClearCache invalidates the cached result for one URL, or everything when
// the URL is empty.
func (s *Service) ClearCache(fileURL string) {
	if fileURL == "" {
		s.cache.InvalidateAll()
		return
	}
	s.cache.Invalidate(Fingerprint(fileURL))
}

// SweepCache drops expired cache entries; scheduled periodically from main.
func (s *Service) SweepCache() {
	if removed := s.cache.Sweep(); removed > 0 {
		log.Debug("Swept %d expired transcription cache entries", removed)
	}
}
