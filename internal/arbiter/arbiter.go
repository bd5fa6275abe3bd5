/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package arbiter merges metadata candidates from the recognition
// scheduler and the inline metadata channel into the single authoritative
// now-playing value. Rules run as an ordered guard chain; candidates that
// fail a guard are dropped, never errors.
package arbiter

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_nowplaying/internal/events"
	"github.com/friendsincode/muninn_nowplaying/internal/telemetry"
)

// Source identifies where a metadata candidate came from.
type Source string

const (
	// SourceInline is the in-stream metadata channel: low trust,
	// frequently absent, stale, or promotional text.
	SourceInline Source = "inline"

	// SourceRecognition is the fingerprint recognition service: high trust.
	SourceRecognition Source = "recognition"
)

// Candidate is one proposed (artist, title) pair.
type Candidate struct {
	Artist     string
	Title      string
	Source     Source
	ObservedAt time.Time
}

// NowPlaying is the authoritative value consumed by displays and the
// artwork fetch.
type NowPlaying struct {
	Artist    string    `json:"artist"`
	Title     string    `json:"title"`
	Source    Source    `json:"source"`
	AppliedAt time.Time `json:"applied_at"`
}

// ChangeFunc is invoked on every applied change.
type ChangeFunc func(NowPlaying)

// Arbitrator owns the authoritative now-playing value. Submit may be
// called concurrently from the scheduler and the inline channel; the
// internal mutex serializes arbitration so rule ordering holds.
type Arbitrator struct {
	cooldown time.Duration
	junk     *JunkFilter
	bus      *events.Bus
	logger   zerolog.Logger
	now      func() time.Time

	mu                sync.Mutex
	current           NowPlaying
	lastAppliedKey    string
	lastRecognitionAt time.Time
	callbacks         []ChangeFunc
}

// New creates an arbitrator. cooldown is the window after a recognition
// success during which inline candidates are suppressed.
func New(cooldown time.Duration, junk *JunkFilter, bus *events.Bus, logger zerolog.Logger) *Arbitrator {
	return &Arbitrator{
		cooldown: cooldown,
		junk:     junk,
		bus:      bus,
		logger:   logger.With().Str("component", "arbiter").Logger(),
		now:      time.Now,
	}
}

// OnChange registers a callback invoked with every applied change.
// Callbacks run under the arbitration lock so notifications keep apply
// order; they must not call back into the Arbitrator.
func (a *Arbitrator) OnChange(fn ChangeFunc) {
	a.mu.Lock()
	a.callbacks = append(a.callbacks, fn)
	a.mu.Unlock()
}

// Current returns the authoritative now-playing value.
func (a *Arbitrator) Current() NowPlaying {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// LastRecognitionAt returns when a recognition candidate was last applied.
func (a *Arbitrator) LastRecognitionAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRecognitionAt
}

// Submit runs the candidate through the arbitration rules and applies it
// if it survives.
func (a *Arbitrator) Submit(c Candidate) {
	artist := strings.TrimSpace(c.Artist)
	title := strings.TrimSpace(c.Title)

	a.mu.Lock()
	defer a.mu.Unlock()

	if artist == "" && title == "" {
		a.drop("empty", c)
		return
	}

	if c.Source == SourceInline {
		if junk, rule := a.junk.IsJunk(artist, title); junk {
			a.drop("junk_"+rule, c)
			return
		}

		if !a.lastRecognitionAt.IsZero() && a.now().Sub(a.lastRecognitionAt) < a.cooldown {
			a.drop("cooldown", c)
			return
		}
	}

	key := identityKey(artist, title)
	if key == a.lastAppliedKey && c.Source != SourceRecognition {
		// Recognition candidates reapply even when textually identical:
		// they re-confirm freshness and re-trigger downstream refresh.
		a.drop("identical", c)
		return
	}

	applied := NowPlaying{
		Artist:    artist,
		Title:     title,
		Source:    c.Source,
		AppliedAt: a.now(),
	}
	a.current = applied
	a.lastAppliedKey = key
	if c.Source == SourceRecognition {
		a.lastRecognitionAt = applied.AppliedAt
	}

	telemetry.NowPlayingChangesTotal.WithLabelValues(string(c.Source)).Inc()
	a.logger.Info().
		Str("artist", artist).
		Str("title", title).
		Str("source", string(c.Source)).
		Msg("now playing changed")

	a.bus.Publish(events.EventNowPlaying, events.Payload{
		"artist": artist,
		"title":  title,
		"source": string(c.Source),
	})
	for _, fn := range a.callbacks {
		fn(applied)
	}
}

// drop is a deliberate no-op, logged at most.
func (a *Arbitrator) drop(rule string, c Candidate) {
	telemetry.ArbitrationDropsTotal.WithLabelValues(rule).Inc()
	a.logger.Debug().
		Str("rule", rule).
		Str("source", string(c.Source)).
		Str("artist", c.Artist).
		Str("title", c.Title).
		Msg("candidate dropped")
}
