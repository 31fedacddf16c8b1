package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/chengyoucen9-png/bbdyy-idea/internal/cache"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/config"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/httpapi"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/jobs"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/llm"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/persistence"
	"github.com/chengyoucen9-png/bbdyy-idea/internal/transcription"
	"github.com/chengyoucen9-png/bbdyy-idea/pkg/log"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		log.Fatal("Failed to open store: %v", err)
	}
	defer store.Close()

	modelClient, err := llm.NewClient(&llm.Config{
		APIKey:  cfg.Model.APIKey,
		APIURL:  cfg.Model.APIURL,
		Model:   cfg.Model.Model,
		Timeout: cfg.Model.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create model client: %v", err)
	}

	aliyun := transcription.NewAliyunProvider(transcription.AliyunConfig{
		AccessKeyID:     cfg.Aliyun.AccessKeyID,
		AccessKeySecret: cfg.Aliyun.AccessKeySecret,
		AppKey:          cfg.Aliyun.AppKey,
		BaseURL:         cfg.Aliyun.BaseURL,
		PollInterval:    cfg.Aliyun.PollInterval,
		MaxPollAttempts: cfg.Aliyun.MaxPollAttempts,
	})
	aiModel := transcription.NewAIModelProvider(modelClient)
	if !aliyun.IsAvailable() {
		log.Warn("Aliyun credentials not configured, transcription will use the AI model fallback only")
	}

	resultCache := cache.New[*transcription.Result](cfg.Server.CacheTTL)
	svcOpts := []transcription.Option{
		transcription.WithResultStore(store),
		transcription.WithDefaultLanguage(cfg.Server.DefaultLanguage),
	}
	if cfg.Server.SRTExportDir != "" {
		if err := os.MkdirAll(cfg.Server.SRTExportDir, 0o755); err != nil {
			log.Fatal("Failed to create subtitle export directory: %v", err)
		}
		svcOpts = append(svcOpts, transcription.WithSRTExportDir(cfg.Server.SRTExportDir))
	}
	svc := transcription.NewService(
		[]transcription.Provider{aliyun, aiModel},
		resultCache,
		svcOpts...,
	)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.Server.CacheSweepCron, svc.SweepCache); err != nil {
		log.Fatal("Failed to schedule cache sweep: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	queue := jobs.NewQueue(cfg.Server.JobWorkers, store)
	queue.Start(func(ctx context.Context, job *jobs.TranscriptionJob) (string, error) {
		_, err := svc.Transcribe(ctx, transcription.Request{
			FileURL:           job.Payload.FileURL,
			FileType:          transcription.FileType(job.Payload.FileType),
			Language:          job.Payload.Language,
			EnablePunctuation: job.Payload.EnablePunctuation,
			EnableDiarization: job.Payload.EnableDiarization,
		})
		if err != nil {
			return "", err
		}
		return transcription.Fingerprint(job.Payload.FileURL), nil
	})
	defer queue.Stop()

	server := httpapi.NewServer(svc, httpapi.WithQueue(queue), httpapi.WithResultStore(store))

	errCh := make(chan error, 1)
	go func() {
		log.Info("Transcription service listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("HTTP server failed: %v", err)
	case sig := <-sigCh:
		log.Info("Received signal %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown: %v", err)
	}
}
