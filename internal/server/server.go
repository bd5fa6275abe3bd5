/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server bundles the HTTP surface and the recognition pipeline's
// background workers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_nowplaying/internal/arbiter"
	"github.com/friendsincode/muninn_nowplaying/internal/artwork"
	"github.com/friendsincode/muninn_nowplaying/internal/capture"
	"github.com/friendsincode/muninn_nowplaying/internal/config"
	"github.com/friendsincode/muninn_nowplaying/internal/events"
	"github.com/friendsincode/muninn_nowplaying/internal/inline"
	"github.com/friendsincode/muninn_nowplaying/internal/normalize"
	"github.com/friendsincode/muninn_nowplaying/internal/player"
	"github.com/friendsincode/muninn_nowplaying/internal/recognize"
	"github.com/friendsincode/muninn_nowplaying/internal/scheduler"
	"github.com/friendsincode/muninn_nowplaying/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server

	bus     *events.Bus
	engine  *player.StaticEngine
	arb     *arbiter.Arbitrator
	sched   *scheduler.Scheduler
	inline  *inline.Listener
	artwork artwork.Fetcher

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.TracingMiddleware("muninn-nowplaying-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket connections
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 so the websocket handler manages its own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.MetricsBind != "" {
		metricsRouter := chi.NewRouter()
		metricsRouter.Handle("/metrics", telemetry.Handler())
		srv.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           metricsRouter,
			ReadHeaderTimeout: 15 * time.Second,
		}
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	var terms []string
	if s.cfg.JunkTermsFile != "" {
		loaded, err := arbiter.LoadTerms(s.cfg.JunkTermsFile)
		if err != nil {
			return fmt.Errorf("load junk terms: %w", err)
		}
		terms = loaded
		s.logger.Info().Int("terms", len(terms)).Str("path", s.cfg.JunkTermsFile).Msg("junk term denylist loaded")
	}
	junk := arbiter.NewJunkFilter(s.cfg.AppDisplayName, terms)

	s.engine = player.NewStaticEngine(s.cfg.StreamURL)
	s.arb = arbiter.New(s.cfg.RecognitionCooldown, junk, s.bus, s.logger)
	s.inline = inline.NewListener(s.arb, s.bus, s.logger)
	s.artwork = artwork.NoopFetcher{}

	// Resolve cover art off the arbitration lock; the fetch is best-effort
	// and its result only decorates display surfaces.
	s.arb.OnChange(func(np arbiter.NowPlaying) {
		go s.fetchArtwork(np)
	})

	capturer := capture.NewCapturer(s.cfg.UserAgent, s.logger)
	normalizer := normalize.New(s.cfg.FFmpegBin, s.logger)
	recognizer := recognize.NewClient(s.cfg.RecognitionURL, s.cfg.UserAgent, s.cfg.RecognitionTimeout, s.logger)

	s.sched = scheduler.New(scheduler.Config{
		SampleDuration:      s.cfg.SampleDuration,
		MinSuccessInterval:  s.cfg.MinSuccessInterval,
		BackoffFloor:        s.cfg.BackoffFloor,
		BackoffCeiling:      s.cfg.BackoffCeiling,
		NoMatchBackoffFloor: s.cfg.NoMatchBackoffFloor,
	}, s.engine, capturer, normalizer, recognizer, s.arb, s.bus, s.logger)

	return nil
}

// fetchArtwork resolves cover art for an applied change.
func (s *Server) fetchArtwork(np arbiter.NowPlaying) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	art, err := s.artwork.Fetch(ctx, np.Artist, np.Title)
	if err != nil {
		s.logger.Warn().Err(err).Str("artist", np.Artist).Str("title", np.Title).Msg("artwork fetch failed")
		return
	}
	if art == nil {
		return
	}
	s.logger.Debug().Str("url", art.URL).Msg("artwork resolved")
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer exposes the dedicated metrics listener, nil when disabled.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// StartBackgroundWorkers launches the recognition scheduler.
func (s *Server) StartBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.sched.Run(ctx)
	}()
}

// Close stops background workers.
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
		s.bgWG.Wait()
		s.bgCancel = nil
	}
	return nil
}
