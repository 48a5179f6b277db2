// Package main provides the s1see server entrypoint: it wires the WAL,
// decoder, subscriber/UE-context correlator and rule engine into the
// processing pipeline, and exposes health, metrics, ingest and admin
// routes over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lvonguyen/s1see/internal/config"
	"github.com/lvonguyen/s1see/internal/gateway"
	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/observability"
	"github.com/lvonguyen/s1see/internal/pipeline"
	"github.com/lvonguyen/s1see/internal/repository"
	"github.com/lvonguyen/s1see/internal/rules"
	"github.com/lvonguyen/s1see/internal/sink"
	"github.com/lvonguyen/s1see/internal/subscriber"
	"github.com/lvonguyen/s1see/internal/uecontext"
	"github.com/lvonguyen/s1see/internal/wal"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// server bundles the components routes need to answer requests.
type server struct {
	cfg       *config.Config
	telemetry *observability.Telemetry
	log       *wal.Log
	contexts  *uecontext.Store
	engine    *rules.Engine
	limiter   *gateway.RateLimiter
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("s1see %s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "s1see: %v\n", err)
		os.Exit(1)
	}

	telemetry, err := observability.New(observability.Config{
		ServiceName:    "s1see",
		ServiceVersion: Version,
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		TracingEnabled: cfg.Observability.TracingEnabled,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		SamplingRate:   cfg.Observability.SamplingRate,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
		MetricsPort:    cfg.Observability.MetricsPort,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "s1see: init telemetry: %v\n", err)
		os.Exit(1)
	}
	logger := telemetry.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := wal.Open(wal.Config{
		BaseDir:           cfg.WAL.BaseDir,
		Partitions:        int32(cfg.WAL.Partitions),
		SegmentMaxBytes:   cfg.WAL.SegmentMaxBytes,
		WriteBufferBytes:  int32(cfg.WAL.WriteBufferBytes),
		FsyncInterval:     cfg.WAL.FsyncInterval,
		RetentionMaxBytes: cfg.WAL.RetentionMaxBytes,
		RetentionMaxAge:   cfg.WAL.RetentionMaxAge,
	})
	if err != nil {
		logger.Fatal("open wal", zap.Error(err))
	}
	defer log.Close()

	subs := subscriber.New()
	contexts := uecontext.New(0)
	engine := rules.New(contexts, func() int64 { return time.Now().UnixNano() })

	if err := loadRules(ctx, cfg, engine); err != nil {
		logger.Error("initial rule load failed, starting with no rulesets", zap.Error(err))
	}

	proc := pipeline.New(log, subs, contexts, engine, telemetry, int32(cfg.WAL.Partitions))

	var eventSender *sink.Sender
	if cfg.Sink.Sender.Enabled {
		eventSender, err = sink.NewSender(sink.SenderConfig{
			URL:          cfg.Sink.Sender.URL,
			TokenEnv:     cfg.Sink.Sender.TokenEnv,
			BatchSize:    cfg.Sink.Sender.BatchSize,
			BatchTimeout: cfg.Sink.Sender.BatchTimeout,
			Timeout:      cfg.Sink.Sender.Timeout,
			RetryCount:   cfg.Sink.Sender.RetryCount,
		})
		if err != nil {
			logger.Error("sink sender disabled", zap.Error(err))
		} else {
			proc.SetEventHandler(func(handlerCtx context.Context, events []model.Event) {
				if err := eventSender.SendBatch(handlerCtx, events); err != nil {
					logger.Error("forward events to sink", zap.Error(err), zap.Int("count", len(events)))
				}
			})
		}
	}

	go func() {
		if err := proc.Run(ctx, 200*time.Millisecond); err != nil && ctx.Err() == nil {
			logger.Error("pipeline stopped", zap.Error(err))
		}
	}()

	go runCleanup(ctx, contexts, engine)

	var limiter *gateway.RateLimiter
	if cfg.Gateway.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: os.Getenv(cfg.Redis.PasswordEnv),
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()
		limiter = gateway.NewRateLimiter(redisClient, gateway.RateLimitConfig{
			AdapterClasses: gateway.DefaultAdapterClasses(),
			Endpoints:      gateway.DefaultEndpointLimits(),
			IncludeHeaders: cfg.Gateway.IncludeHeaders,
		}, logger)
	}

	srv := &server{cfg: cfg, telemetry: telemetry, log: log, contexts: contexts, engine: engine, limiter: limiter}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// loadRules loads rulesets either from a local directory of YAML files or,
// when a rules repository URL is configured, from a git-synced checkout
// kept current by a background RuleSyncer.
func loadRules(ctx context.Context, cfg *config.Config, engine *rules.Engine) error {
	// Local-path loading and repo-synced loading are mutually exclusive:
	// a configured repo URL always wins, since the syncer treats its own
	// checkout directory as the rules source.
	if cfg.Rules.RepoURL == "" {
		return loadRulesFromDir(cfg.Rules.LocalPath, engine)
	}

	syncer, err := repository.NewRuleSyncer(ctx, "repositories", cfg.Rules.RepoURL, cfg.Rules.RepoBranch, cfg.Rules.SyncInterval, engine)
	if err != nil {
		return err
	}
	if err := syncer.LoadOnce(); err != nil {
		return err
	}
	go syncer.Run(ctx, func(err error) {})
	return nil
}

func loadRulesFromDir(dir string, engine *rules.Engine) error {
	if dir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("glob rules dir: %w", err)
	}
	ymlMatches, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return fmt.Errorf("glob rules dir: %w", err)
	}
	matches = append(matches, ymlMatches...)
	for _, path := range matches {
		ruleset, err := rules.LoadRulesetFile(path)
		if err != nil {
			return fmt.Errorf("load ruleset %s: %w", path, err)
		}
		engine.LoadRuleset(ruleset)
	}
	return nil
}

// runCleanup periodically expires stale UE contexts and sequence states, the
// two pieces of in-memory state that otherwise grow without bound.
func runCleanup(ctx context.Context, contexts *uecontext.Store, engine *rules.Engine) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			contexts.CleanupExpired(time.Now().UnixNano())
			engine.CleanupExpiredSequences()
		}
	}
}

func (s *server) router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", s.telemetry.MetricsHandler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(adapterClassOf, sourceIDOf))
		}
		r.Post("/ingest", s.handleIngest)
		r.Post("/ingest/batch", s.handleIngestBatch)
		r.Get("/rules", s.handleListRules)
		r.Post("/rules/sync", s.handleRulesSync)
	})

	return r
}

func adapterClassOf(r *http.Request) string {
	if class := r.Header.Get("X-Adapter-Class"); class != "" {
		return class
	}
	return "default"
}

func sourceIDOf(r *http.Request) string {
	return r.Header.Get("X-Source-ID")
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
}

func (s *server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ingestRequest mirrors a single SignalMessage posted by a transport
// adapter that speaks HTTP rather than a native LTE transport.
type ingestRequest struct {
	SourceID       string `json:"source_id"`
	SourceSequence uint64 `json:"source_sequence"`
	FrameNumber    string `json:"frame_number,omitempty"`
	RawPayload     []byte `json:"raw_payload"`
}

func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	partition, offset, err := s.log.Append(model.SignalMessage{
		SourceID:       req.SourceID,
		SourceSequence: req.SourceSequence,
		TransportMeta:  req.FrameNumber,
		PayloadType:    model.PayloadTypeRawBytes,
		RawPayload:     req.RawPayload,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"partition": partition, "offset": offset})
}

func (s *server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	accepted := 0
	for _, req := range reqs {
		if _, _, err := s.log.Append(model.SignalMessage{
			SourceID:       req.SourceID,
			SourceSequence: req.SourceSequence,
			TransportMeta:  req.FrameNumber,
			PayloadType:    model.PayloadTypeRawBytes,
			RawPayload:     req.RawPayload,
		}); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "accepted": accepted})
			return
		}
		accepted++
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": accepted})
}

func (s *server) handleListRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rulesets": s.engine.LoadedRulesetIDs()})
}

// handleRulesSync re-reads rulesets from the local rules directory on
// demand. When a rules repository URL is configured, the background
// RuleSyncer already keeps that checkout current on its own interval, so
// this only serves the local-path deployment mode.
func (s *server) handleRulesSync(w http.ResponseWriter, r *http.Request) {
	if err := loadRulesFromDir(s.cfg.Rules.LocalPath, s.engine); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
