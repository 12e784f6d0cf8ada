// Package app assembles the service from configuration. Both the API
// server and the formsctl tool start from Build.
package app

import (
	"context"
	"errors"

	"voice-forms-go/internal/aggregator"
	"voice-forms-go/internal/blobstore"
	"voice-forms-go/internal/capability"
	"voice-forms-go/internal/config"
	"voice-forms-go/internal/dispatch"
	"voice-forms-go/internal/extractor"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/pipeline"
	"voice-forms-go/internal/processor"
	"voice-forms-go/internal/store"
	"voice-forms-go/internal/transcription"
)

type App struct {
	Config     *config.Config
	Log        *logger.Logger
	Store      *store.Store
	Blobs      blobstore.Store
	Dispatcher *dispatch.Dispatcher
	Service    *processor.Service
}

func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}

	var blobs blobstore.Store
	if cfg.UsesMemoryBlobs() {
		log.Warn("MINIO_ENDPOINT not set, keeping recordings in memory")
		blobs = blobstore.NewMemory()
	} else {
		blobs, err = blobstore.NewMinio(ctx, blobstore.MinioOptions{
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Bucket:          cfg.Storage.Bucket,
			UseSSL:          cfg.Storage.UseSSL,
		}, log)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}

	guard := capability.NewGuard(providers(cfg, log), capability.GuardOptions{
		Timeout: cfg.AdapterTimeout(),
		RPS:     cfg.Pipe.ProviderRPS,
	}, log)
	agg := aggregator.New(st, cfg.MergeLockWait(), log)
	pipe := pipeline.New(st, blobs, guard, agg, log)
	disp := dispatch.New(pipe, cfg.Pipe.Workers, cfg.Pipe.QueueSize, log)
	svc := processor.New(st, disp, blobs, cfg.SignedURLTTL(), log)

	return &App{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Blobs:      blobs,
		Dispatcher: disp,
		Service:    svc,
	}, nil
}

func providers(cfg *config.Config, log *logger.Logger) capability.Providers {
	var p capability.Providers

	if cfg.AI.MockTranscription {
		log.Info("mock transcription mode ON")
		p.Transcriber = transcription.Mock{}
	} else {
		chain := capability.FallbackTranscriber{transcription.NewWhisper(cfg.AI.OpenAIKey, cfg.AI.TranscribeModel, log)}
		if cfg.AI.FallbackModel != "" {
			chain = append(chain, transcription.NewWhisper(cfg.AI.OpenAIKey, cfg.AI.FallbackModel, log))
		}
		p.Transcriber = chain
	}

	if cfg.AI.MockLLM {
		log.Info("mock LLM mode ON")
		m := extractor.Mock{}
		p.Translator, p.Sentiment, p.Categories = m, m, m
	} else {
		o := extractor.NewOpenAI(cfg.AI.OpenAIKey, cfg.AI.LLMModel, log)
		p.Translator, p.Sentiment, p.Categories = o, o, o
	}
	return p
}

// Close drains queued enrichment work, then releases the database.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Dispatcher.Close(ctx), a.Store.Close())
}
