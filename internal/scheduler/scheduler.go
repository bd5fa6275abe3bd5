/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler owns the recognition polling loop: it decides when to
// attempt an identification, guarantees at most one attempt in flight,
// absorbs every capture/normalize/upload failure into backoff state, and
// forwards successful identifications to the arbitrator.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_nowplaying/internal/arbiter"
	"github.com/friendsincode/muninn_nowplaying/internal/capture"
	"github.com/friendsincode/muninn_nowplaying/internal/events"
	"github.com/friendsincode/muninn_nowplaying/internal/normalize"
	"github.com/friendsincode/muninn_nowplaying/internal/recognize"
	"github.com/friendsincode/muninn_nowplaying/internal/telemetry"
)

// Player supplies playback state from the host audio engine.
type Player interface {
	IsPlaying() bool
	StreamURL() string
}

// Capturer grabs a raw snippet from the stream.
type Capturer interface {
	Capture(ctx context.Context, streamURL string, duration time.Duration) (*capture.Snippet, error)
}

// Normalizer converts a snippet for upload.
type Normalizer interface {
	Normalize(ctx context.Context, snippet *capture.Snippet) (*normalize.NormalizedAudio, error)
}

// Recognizer submits audio for identification.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath string) recognize.Outcome
}

// Submitter receives identified candidates.
type Submitter interface {
	Submit(c arbiter.Candidate)
}

// Config holds the scheduling policy knobs.
type Config struct {
	TickInterval        time.Duration
	SampleDuration      time.Duration
	MinSuccessInterval  time.Duration
	BackoffFloor        time.Duration
	BackoffCeiling      time.Duration
	NoMatchBackoffFloor time.Duration
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.SampleDuration <= 0 {
		c.SampleDuration = 10 * time.Second
	}
	if c.MinSuccessInterval <= 0 {
		c.MinSuccessInterval = 60 * time.Second
	}
	if c.BackoffFloor <= 0 {
		c.BackoffFloor = 60 * time.Second
	}
	if c.BackoffCeiling <= 0 {
		c.BackoffCeiling = 600 * time.Second
	}
	if c.NoMatchBackoffFloor <= 0 {
		c.NoMatchBackoffFloor = 5 * time.Second
	}
}

// Status is a diagnostic snapshot for display surfaces.
type Status struct {
	InFlight      bool          `json:"is_recognizing"`
	LastAttemptAt time.Time     `json:"last_attempt_at"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastError     string        `json:"last_error"`
	Backoff       time.Duration `json:"backoff"`
}

// Scheduler drives periodic recognition attempts.
type Scheduler struct {
	cfg        Config
	player     Player
	capturer   Capturer
	normalizer Normalizer
	recognizer Recognizer
	submitter  Submitter
	bus        *events.Bus
	logger     zerolog.Logger
	now        func() time.Time

	mu               sync.Mutex
	inFlight         bool
	lastSuccessAt    time.Time
	lastFailureAt    time.Time
	backoff          time.Duration
	lastAttemptAt    time.Time
	lastError        string
	lastForwardedKey string
}

// New creates a scheduler.
func New(cfg Config, player Player, capturer Capturer, normalizer Normalizer, recognizer Recognizer, submitter Submitter, bus *events.Bus, logger zerolog.Logger) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:        cfg,
		player:     player,
		capturer:   capturer,
		normalizer: normalizer,
		recognizer: recognizer,
		submitter:  submitter,
		bus:        bus,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
	}
}

// Run ticks until the context is cancelled. Cancellation abandons future
// ticks; an attempt already underway finishes on a detached context and
// its outcome is discarded if the stream is no longer playing.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().Dur("tick", s.cfg.TickInterval).Msg("recognition scheduler started")
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("recognition scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Status returns a diagnostic snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		InFlight:      s.inFlight,
		LastAttemptAt: s.lastAttemptAt,
		LastSuccessAt: s.lastSuccessAt,
		LastError:     s.lastError,
		Backoff:       s.backoff,
	}
}

// tick applies the scheduling policy and, when due, begins one attempt.
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()

	if s.inFlight || !s.player.IsPlaying() {
		s.mu.Unlock()
		return
	}

	now := s.now()
	if !s.lastSuccessAt.IsZero() && now.Sub(s.lastSuccessAt) < s.cfg.MinSuccessInterval {
		s.mu.Unlock()
		return
	}
	if s.backoff > 0 && !s.lastFailureAt.IsZero() && now.Sub(s.lastFailureAt) < s.backoff {
		s.mu.Unlock()
		return
	}

	s.inFlight = true
	s.lastAttemptAt = now
	streamURL := s.player.StreamURL()
	attemptID := uuid.NewString()
	s.mu.Unlock()

	telemetry.RecognitionInFlight.Set(1)
	s.bus.Publish(events.EventRecognitionState, events.Payload{"recognizing": true, "attempt": attemptID})

	// Detached so a stop mid-attempt lets the transcode/upload complete.
	go s.attempt(context.WithoutCancel(ctx), attemptID, streamURL)
}

// attempt runs one capture → normalize → recognize chain.
func (s *Scheduler) attempt(ctx context.Context, attemptID, streamURL string) {
	logger := s.logger.With().Str("attempt", attemptID).Logger()

	snippet, err := s.capturer.Capture(ctx, streamURL, s.cfg.SampleDuration)
	if err != nil {
		logger.Warn().Err(err).Msg("snippet capture failed")
		s.finish(attemptID, recognize.Outcome{Kind: recognize.OutcomeTransientFailure, Reason: err.Error()}, "capture_error")
		return
	}
	defer snippet.Remove()

	uploadPath := snippet.Path
	normalized, err := s.normalizer.Normalize(ctx, snippet)
	if err != nil {
		// Last resort: the recognition service sometimes accepts what
		// our strategies could not open.
		logger.Warn().Err(err).Msg("normalization exhausted, uploading raw snippet")
	} else {
		uploadPath = normalized.Path
		defer normalized.Remove()
	}

	outcome := s.recognizer.Recognize(ctx, uploadPath)
	s.finish(attemptID, outcome, string(outcome.Kind))
}

// finish records the outcome, updates backoff state, and forwards an
// identification when it differs from the last forwarded pair.
func (s *Scheduler) finish(attemptID string, outcome recognize.Outcome, metricLabel string) {
	s.mu.Lock()

	s.inFlight = false
	now := s.now()

	var forward *arbiter.Candidate

	switch outcome.Kind {
	case recognize.OutcomeIdentified:
		s.backoff = 0
		s.lastSuccessAt = now
		s.lastError = ""
		key := outcome.Artist + "\x00" + outcome.Title
		if s.player.IsPlaying() && key != s.lastForwardedKey {
			s.lastForwardedKey = key
			forward = &arbiter.Candidate{
				Artist:     outcome.Artist,
				Title:      outcome.Title,
				Source:     arbiter.SourceRecognition,
				ObservedAt: now,
			}
		}

	case recognize.OutcomeNoMatch:
		// Expected, frequent, low-cost outcome: take the server's hint
		// each time, never compound it.
		hint := time.Duration(outcome.RetryHintMS) * time.Millisecond
		if hint < s.cfg.NoMatchBackoffFloor {
			hint = s.cfg.NoMatchBackoffFloor
		}
		s.backoff = hint
		s.lastFailureAt = now
		s.lastError = "no current match"

	default:
		next := s.backoff * 2
		if next < s.cfg.BackoffFloor {
			next = s.cfg.BackoffFloor
		}
		if next > s.cfg.BackoffCeiling {
			next = s.cfg.BackoffCeiling
		}
		s.backoff = next
		s.lastFailureAt = now
		s.lastError = outcome.Reason
		if s.lastError == "" {
			s.lastError = string(outcome.Kind)
		}
	}

	backoff := s.backoff
	s.mu.Unlock()

	telemetry.RecognitionAttemptsTotal.WithLabelValues(metricLabel).Inc()
	telemetry.RecognitionBackoffSeconds.Set(backoff.Seconds())
	telemetry.RecognitionInFlight.Set(0)

	s.bus.Publish(events.EventRecognitionState, events.Payload{"recognizing": false, "attempt": attemptID})
	s.bus.Publish(events.EventRecognitionOutcome, events.Payload{
		"attempt": attemptID,
		"outcome": string(outcome.Kind),
	})

	s.logger.Debug().
		Str("attempt", attemptID).
		Str("outcome", string(outcome.Kind)).
		Dur("backoff", backoff).
		Msg("recognition attempt finished")

	if forward != nil {
		s.submitter.Submit(*forward)
	}
}
