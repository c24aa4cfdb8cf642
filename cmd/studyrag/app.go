package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"studyrag/internal/chunker"
	"studyrag/internal/chunkstore"
	"studyrag/internal/config"
	"studyrag/internal/domain"
	"studyrag/internal/embedding"
	"studyrag/internal/embedding/hashing"
	"studyrag/internal/embedding/openai"
	"studyrag/internal/loader"
	"studyrag/internal/logger"
	"studyrag/internal/service"
	"studyrag/internal/summarizer"
)

// appContext holds everything a command needs, built from config.
type appContext struct {
	cfg        *config.AppConfig
	cfgPath    string
	log        logger.Logger
	engine     *service.Engine
	summarizer domain.Summarizer
	closers    []func()
}

// newAppContext loads .env and the config file, then assembles the engine.
// Logs go to logOut unless the config names a log file.
func newAppContext(ctx context.Context, cmd *cli.Command, logOut io.Writer) (*appContext, error) {
	if envFile := cmd.String("env"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	app := &appContext{}
	var err error
	if app.cfgPath = cmd.String("config"); app.cfgPath == "" {
		app.cfg, app.cfgPath, err = config.LoadDefault()
	} else {
		app.cfg, err = config.Load(app.cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := app.cfg

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		app.closers = append(app.closers, func() { _ = f.Close() })
		logOut = f
	}
	app.log = logger.New(logger.Config{Level: logger.ParseLevel(cfg.Log.Level), JSON: cfg.Log.JSON, Output: logOut})
	app.log.Debug("config loaded", "path", app.cfgPath)

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		app.Close()
		return nil, err
	}
	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.summarizer = summarizer.NewFrequencySummarizer()

	var storeOpts []chunkstore.Option
	if cfg.Store.FileLock {
		storeOpts = append(storeOpts, chunkstore.WithFileLock())
	}
	fsys := afero.NewOsFs()

	reg := prometheus.NewRegistry()
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if cfg.Metrics.Addr != "" {
		app.serveMetrics(cfg.Metrics.Addr, reg)
	}

	app.engine, err = service.New(ctx, service.Options{
		Loader:   loader.New(fsys),
		Chunker:  ch,
		Embedder: emb,
		Store:    chunkstore.New(fsys, cfg.Store.Dir, storeOpts...),
		Logger:   app.log.With("component", "engine"),
		Metrics:  metrics,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "hashing", "":
		h, err := hashing.NewEmbedder(cfg.Hashing.Dimension)
		if err != nil {
			return nil, err
		}
		emb = h
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Dimension:   cfg.OpenAI.Dimension,
			Timeout:     cfg.OpenAI.Timeout(),
			BatchSize:   cfg.OpenAI.BatchSize,
			Concurrency: cfg.OpenAI.Concurrency,
			MaxRetries:  cfg.OpenAI.Retries(),
			MaxTokens:   cfg.OpenAI.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
	if cfg.CacheSize > 0 {
		return embedding.NewCached(emb, cfg.CacheSize)
	}
	return emb, nil
}

func newChunker(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "recursive", "":
		return chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	case "langchain":
		return chunker.NewLangchainChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Type)
	}
}

func (a *appContext) serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	a.log.Info("serving metrics", "addr", addr)
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
}

// Close releases resources in reverse order of acquisition.
func (a *appContext) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
