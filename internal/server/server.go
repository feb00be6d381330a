// Package server exposes the control and observer surface over HTTP: run
// start/stop, status with recent log lines, configuration and the trigger
// rule, plus an SSE progress stream. It serves JSON only; the dashboard UI
// lives elsewhere.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jumperz11/Linkdinscrap/internal/engine"
	"github.com/jumperz11/Linkdinscrap/internal/logging"
	"github.com/jumperz11/Linkdinscrap/internal/models"
	"github.com/jumperz11/Linkdinscrap/internal/store"
)

// EngineAPI is the slice of the engine the server consumes.
type EngineAPI interface {
	Status() engine.Status
	StartRun(ctx context.Context, cfg models.RunConfig) (string, error)
	RequestStop()
}

// TriggerAPI re-registers schedules when the rule changes.
type TriggerAPI interface {
	Apply(rule models.TriggerRule) error
	Rule() models.TriggerRule
}

// RunDefaults is the mutable run configuration the control surface edits.
type RunDefaults struct {
	Keywords       string `json:"keywords"`
	ScoreThreshold int    `json:"score_threshold"`
	MaxProfiles    int    `json:"max_profiles"`
	MaxDurationMin int    `json:"max_duration_minutes"`
	MinDelayMs     int    `json:"min_delay_ms"`
	MaxDelayMs     int    `json:"max_delay_ms"`
	EnableConnect  bool   `json:"enable_connect"`
	EnableFollow   bool   `json:"enable_follow"`
}

func (d RunDefaults) runConfig(keywords string) models.RunConfig {
	kw := keywords
	if kw == "" {
		kw = d.Keywords
	}
	return models.RunConfig{
		Keywords:       kw,
		ScoreThreshold: d.ScoreThreshold,
		MaxProfiles:    d.MaxProfiles,
		MaxDuration:    time.Duration(d.MaxDurationMin) * time.Minute,
		MinDelay:       time.Duration(d.MinDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(d.MaxDelayMs) * time.Millisecond,
		EnableConnect:  d.EnableConnect,
		EnableFollow:   d.EnableFollow,
	}
}

type Options struct {
	Engine   EngineAPI
	Trigger  TriggerAPI
	Store    *store.Store
	Recorder *logging.Recorder
	Defaults RunDefaults
	Port     int
	Log      *slog.Logger
}

type Server struct {
	engine   EngineAPI
	trigger  TriggerAPI
	store    *store.Store
	recorder *logging.Recorder
	log      *slog.Logger
	port     int

	mu       sync.Mutex
	defaults RunDefaults
}

func New(opts Options) *Server {
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	return &Server{
		engine:   opts.Engine,
		trigger:  opts.Trigger,
		store:    opts.Store,
		recorder: opts.Recorder,
		defaults: opts.Defaults,
		port:     opts.Port,
		log:      opts.Log.With("module", "server"),
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.registerRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("control surface listening", "port", s.port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) runDefaults() RunDefaults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults
}

func (s *Server) setRunDefaults(d RunDefaults) {
	s.mu.Lock()
	s.defaults = d
	s.mu.Unlock()
}
