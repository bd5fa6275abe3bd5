/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package player abstracts the playback source the recognition loop
// observes. The service itself does not decode audio; it only needs to
// know whether the stream is live and where to sample it.
package player

import "sync"

// Engine reports playback state.
type Engine interface {
	IsPlaying() bool
	StreamURL() string
}

// StaticEngine is an Engine for a single configured stream. Playback
// state is toggled externally, e.g. by a health checker or an operator
// endpoint.
type StaticEngine struct {
	mu      sync.RWMutex
	url     string
	playing bool
}

// NewStaticEngine creates an engine for streamURL, initially playing.
func NewStaticEngine(streamURL string) *StaticEngine {
	return &StaticEngine{url: streamURL, playing: true}
}

// IsPlaying reports whether the stream is considered live.
func (e *StaticEngine) IsPlaying() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.playing
}

// StreamURL returns the configured stream URL.
func (e *StaticEngine) StreamURL() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.url
}

// SetPlaying updates the playback state.
func (e *StaticEngine) SetPlaying(playing bool) {
	e.mu.Lock()
	e.playing = playing
	e.mu.Unlock()
}
