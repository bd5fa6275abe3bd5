/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package artwork defines the hook for resolving cover art once a track
// has been identified. Resolution backends live behind the Fetcher
// interface so a provider can be added without touching the pipeline.
package artwork

import "context"

// Art is a resolved cover image reference.
type Art struct {
	URL    string
	Width  int
	Height int
}

// Fetcher resolves artwork for an identified track. Implementations
// should return (nil, nil) when no artwork exists.
type Fetcher interface {
	Fetch(ctx context.Context, artist, title string) (*Art, error)
}

// NoopFetcher never finds artwork.
type NoopFetcher struct{}

// Fetch always reports no artwork.
func (NoopFetcher) Fetch(context.Context, string, string) (*Art, error) {
	return nil, nil
}
