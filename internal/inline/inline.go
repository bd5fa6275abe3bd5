/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package inline turns the stream's embedded now-playing text into
// arbitration candidates. Inline text is free-form and frequently wrong,
// so everything here is best-effort parsing; the arbitrator decides
// whether the result is worth showing.
package inline

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_nowplaying/internal/arbiter"
	"github.com/friendsincode/muninn_nowplaying/internal/events"
)

// Arbiter is the subset of the arbitrator the listener needs.
type Arbiter interface {
	Submit(c arbiter.Candidate)
	Current() arbiter.NowPlaying
}

// separators in match order. The typographic dashes come first so an
// "Artist – Title" feed is not split on a hyphen inside the title.
var separators = []string{" — ", " – ", " - "}

// Listener parses inline metadata updates and hands candidates to the
// arbitrator.
type Listener struct {
	arb    Arbiter
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// NewListener creates an inline metadata listener.
func NewListener(arb Arbiter, bus *events.Bus, logger zerolog.Logger) *Listener {
	return &Listener{
		arb:    arb,
		bus:    bus,
		logger: logger.With().Str("component", "inline").Logger(),
		now:    time.Now,
	}
}

// Handle processes one raw inline update, typically an ICY StreamTitle
// value. Blank updates are ignored.
func (l *Listener) Handle(raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}

	l.bus.Publish(events.EventInlineMetadata, events.Payload{"raw": raw})

	artist, title := Split(raw)
	if artist == "" {
		// Title-only update: keep whatever artist is currently showing
		// rather than blanking the display.
		artist = l.arb.Current().Artist
	}

	l.logger.Debug().Str("raw", raw).Str("artist", artist).Str("title", title).Msg("inline metadata received")

	l.arb.Submit(arbiter.Candidate{
		Artist:     artist,
		Title:      title,
		Source:     arbiter.SourceInline,
		ObservedAt: l.now(),
	})
}

// Split breaks an inline string into artist and title on the first
// recognized dash separator. When no separator is present the whole
// string is returned as the title with an empty artist.
func Split(raw string) (artist, title string) {
	for _, sep := range separators {
		if idx := strings.Index(raw, sep); idx >= 0 {
			artist = strings.TrimSpace(raw[:idx])
			title = strings.TrimSpace(raw[idx+len(sep):])
			return artist, title
		}
	}
	return "", strings.TrimSpace(raw)
}
