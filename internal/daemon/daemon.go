// Package daemon implements the advisor daemon core.
package daemon

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/adminops"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ai"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/classifier"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/config"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/indexer"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/messagestore"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/orchestrator"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/ports"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/prompt"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/registry"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/retriever"
	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/session"
)

// Version and BuildTime are set by cmd/accidentd at link time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Daemon is the advisor daemon core: it owns every long-lived collaborator
// and exposes them over HTTP.
type Daemon struct {
	cfg    *config.Config
	router chi.Router
	server *http.Server
	logger zerolog.Logger

	registry     *registry.Registry
	sessions     *session.Store
	messages     *messagestore.Store
	orchestrator *orchestrator.Orchestrator
	adminOps     *adminops.Ops
	indexer      *indexer.Indexer
	retriever    *retriever.Retriever
	eventBus     *EventBus

	mu        sync.RWMutex
	running   bool
	ready     bool
	startTime time.Time

	shutdownCh chan struct{}
	wg         sync.WaitGroup
}

// New builds every collaborator (classifier, retriever, session store,
// message store, prompt library, chat model / embedder, orchestrator,
// indexer, admin ops) and wires them into a Daemon, mirroring the
// construction order of a single New() wiring entry point.
func New(cfg *config.Config) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("create directories: %w", err)
	}

	logger := observability.Logger("daemon")

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{Host: cfg.VectorDB.Host, Port: cfg.VectorDB.Port})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}
	reg := registry.New(qdrantClient, cfg.VectorDB.Dimension, cfg.VectorDB.BatchSize)

	redisClient := session.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
	sessions := session.New(redisClient, session.Config{
		HistoryWindowPairs: cfg.Session.HistoryWindowPairs,
		IdleTimeout:        cfg.Session.IdleTimeout,
		SweepInterval:      cfg.Session.SweepInterval,
		KeyPrefix:          cfg.Session.KeyPrefix,
	})

	messages, err := messagestore.New(cfg.MessageStorePath())
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	chatModel := buildChatModel(cfg)

	cls := classifier.New(classifier.Config{
		ConfidenceThreshold: cfg.Classifier.ConfidenceThreshold,
		MinScore:            cfg.Classifier.MinScore,
		RemoteTimeout:       cfg.Classifier.RemoteTimeout,
		RemoteEndpoint:      cfg.Classifier.RemoteEndpoint,
		RemoteModel:         cfg.Classifier.RemoteModel,
	})

	retr := retriever.New(reg, embedder, retriever.Config{
		MaxDocs:                cfg.Retriever.MaxDocs,
		MaxDocsHardCap:         cfg.Retriever.MaxDocsHardCap,
		CacheSize:              cfg.Retriever.CacheSize,
		SelfQueryTriggerCount:  cfg.Retriever.SelfQueryTriggerCount,
		SelfQueryLengthTrigger: cfg.Retriever.SelfQueryLengthTrigger,
		DirectFetchMultiplier:  cfg.Retriever.DirectFetchMultiplier,
		PrecedentCandidateK:    cfg.Retriever.PrecedentCandidateK,
		SnippetCharLimit:       cfg.Retriever.SnippetCharLimit,
		PrecedentCharLimit:     cfg.Retriever.PrecedentCharLimit,
	})

	prompts := prompt.New()

	orch := orchestrator.New(cls, retr, prompts, sessions, messages, chatModel, orchestrator.Config{
		ChatModelTimeout: cfg.ChatModel.Timeout,
	})

	idx := indexer.New(reg, embedder, indexer.Config{
		MetadataDir:  cfg.Indexer.MetadataDir,
		BatchSize:    cfg.Indexer.BatchSize,
		ForceRebuild: cfg.Indexer.ForceRebuild,
	})

	ops := adminops.New(sessions, retr, idx)

	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		registry:     reg,
		sessions:     sessions,
		messages:     messages,
		orchestrator: orch,
		adminOps:     ops,
		indexer:      idx,
		retriever:    retr,
		eventBus:     NewEventBus(100),
		shutdownCh:   make(chan struct{}),
	}

	d.setupRouter()

	return d, nil
}

// buildEmbedder selects the Embedder implementation per
// config.EmbedderConfig.Provider.
func buildEmbedder(cfg *config.Config) (ports.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "ollama", "":
		return ai.NewOllamaEmbedder(cfg.Embedder.Endpoint, cfg.Embedder.Model, cfg.Embedder.Dimension, cfg.Embedder.BatchSize)
	default:
		return nil, &ai.ErrProviderUnavailable{Provider: cfg.Embedder.Provider, Reason: "no embedding backend for this provider"}
	}
}

// buildChatModel selects the ChatModel implementation per
// config.ChatModelConfig.Provider.
func buildChatModel(cfg *config.Config) ports.ChatModel {
	if cfg.ChatModel.Provider == "anthropic" {
		return ai.NewAnthropicChatModel(cfg.ChatModel.APIKey, cfg.ChatModel.Model, cfg.ChatModel.MaxTokens, cfg.ChatModel.Temperature, cfg.ChatModel.Timeout)
	}
	return ai.NewOllamaChatModel(cfg.ChatModel.Endpoint, cfg.ChatModel.Model, cfg.ChatModel.Temperature, cfg.ChatModel.MaxTokens, cfg.ChatModel.Timeout)
}

// setupRouter configures the HTTP router.
func (d *Daemon) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(d.loggingMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", d.handleHealth)
		r.Get("/ready", d.handleReady)
		r.Get("/status", d.handleStatus)
		r.Get("/events", d.handleSSEEvents)
		r.Get("/events/stats", d.handleSSEStats)

		r.Post("/turn", d.handleTurn)
		r.Post("/new-chat", d.handleNewChat)

		r.Route("/session/{sessionID}", func(r chi.Router) {
			r.Get("/history", d.handleSessionHistory)
			r.Post("/clear", d.handleSessionClear)
			r.Get("/analytics", d.handleSessionAnalytics)
		})

		r.Route("/test", func(r chi.Router) {
			r.Get("/precedent", d.handleTestPrecedent)
			r.Get("/hybrid-rag", d.handleTestHybridRAG)
		})

		r.Post("/kb/rebuild", d.handleKBRebuild)
	})

	d.router = r
}

// loggingMiddleware logs HTTP requests.
func (d *Daemon) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		d.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request completed")
	})
}

// Start starts the daemon's HTTP listener and background sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info().
		Str("listen", d.cfg.Listen).
		Str("data_dir", d.cfg.DataDir).
		Msg("starting daemon")

	listener, err := net.Listen("tcp", d.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", d.cfg.Listen, err)
	}

	d.server = &http.Server{
		Handler:      d.router,
		ReadTimeout:  d.cfg.API.ReadTimeout,
		WriteTimeout: d.cfg.API.WriteTimeout,
		IdleTimeout:  d.cfg.API.IdleTimeout,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			d.logger.Error().Err(err).Msg("server error")
		}
	}()

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancelSweep()
		d.sessions.StartSweeper(sweepCtx)
	}()
	go func() {
		<-d.shutdownCh
		cancelSweep()
	}()

	d.mu.Lock()
	d.ready = true
	d.mu.Unlock()

	observability.LogEvent(d.logger, observability.EventDaemonStarted, map[string]interface{}{
		"listen":   d.cfg.Listen,
		"data_dir": d.cfg.DataDir,
	})

	d.logger.Info().Msg("daemon started")
	return nil
}

// Stop gracefully stops the daemon.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.ready = false
	d.mu.Unlock()

	d.logger.Info().Msg("stopping daemon")

	close(d.shutdownCh)

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Error().Err(err).Msg("server shutdown error")
		}
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn().Msg("shutdown timeout, some goroutines may still be running")
	}

	if d.messages != nil {
		d.messages.Close()
	}
	if d.eventBus != nil {
		d.eventBus.Close()
	}

	observability.LogEvent(d.logger, observability.EventDaemonStopped, nil)
	d.logger.Info().Msg("daemon stopped")

	return nil
}

// Run runs the daemon until interrupted.
func (d *Daemon) Run() error {
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-d.shutdownCh:
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return d.Stop(shutdownCtx)
}

// Ready returns whether the daemon is ready to serve requests.
func (d *Daemon) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Config returns the daemon's configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg
}
