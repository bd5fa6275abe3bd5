/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package capture grabs short raw audio samples from a live stream for
// identification. It handles both continuous byte streams and segmented
// (HLS-style) playlists behind one entry point.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_nowplaying/internal/telemetry"
)

var (
	// ErrEmptySnippet indicates the capture window produced no audio bytes.
	ErrEmptySnippet = errors.New("capture produced no audio data")

	// ErrNoSegments indicates a playlist manifest with no resolvable segment URIs.
	ErrNoSegments = errors.New("playlist manifest contains no segments")
)

const (
	// prefixSniffBytes is how much of the response body is inspected to
	// distinguish a playlist manifest from raw audio.
	prefixSniffBytes = 4096

	// trailingSegmentCount favors the freshest segments plus a couple of
	// preceding ones, to maximize the chance of a decodable clip.
	trailingSegmentCount = 3

	dialGrace       = 15 * time.Second
	manifestTimeout = 10 * time.Second
	segmentTimeout  = 15 * time.Second
	maxManifestSize = 1 << 20
)

// Snippet is one captured raw audio sample, persisted to a temp file.
// The current recognition attempt owns it; callers remove Path when done.
type Snippet struct {
	SourceURL   string
	Path        string
	ContentType string
	Segmented   bool
	Size        int64
}

// Remove deletes the snippet's backing file.
func (s *Snippet) Remove() {
	if s != nil && s.Path != "" {
		_ = os.Remove(s.Path)
	}
}

// Capturer fetches snippets from live streams.
type Capturer struct {
	client    *http.Client
	userAgent string
	logger    zerolog.Logger
}

// NewCapturer creates a capturer. The HTTP client carries no global
// timeout; each phase applies its own deadline.
func NewCapturer(userAgent string, logger zerolog.Logger) *Capturer {
	return &Capturer{
		client:    &http.Client{},
		userAgent: userAgent,
		logger:    logger.With().Str("component", "capture").Logger(),
	}
}

// Capture records roughly duration worth of raw audio from streamURL.
// It sniffs the first few KB of the response to route between continuous
// and segmented capture. Errors are reported, never retried here; retry
// policy belongs to the scheduler.
func (c *Capturer) Capture(ctx context.Context, streamURL string, duration time.Duration) (*Snippet, error) {
	start := time.Now()
	defer func() {
		telemetry.SnippetCaptureDuration.Observe(time.Since(start).Seconds())
	}()

	reqCtx, cancel := context.WithTimeout(ctx, duration+dialGrace)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("stream returned HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")

	prefix := make([]byte, prefixSniffBytes)
	n, _ := io.ReadFull(resp.Body, prefix)
	prefix = prefix[:n]

	if isPlaylistContentType(contentType) || hasManifestSignature(prefix) {
		resp.Body.Close()
		cancel()
		c.logger.Debug().Str("url", streamURL).Str("content_type", contentType).Msg("playlist manifest detected, switching to segmented capture")
		return c.captureSegmented(ctx, streamURL, 0)
	}

	return c.captureContinuous(resp.Body, prefix, streamURL, contentType, duration, cancel)
}

// captureContinuous accumulates raw bytes from an open body until the
// capture window elapses or the connection ends.
func (c *Capturer) captureContinuous(body io.Reader, prefix []byte, streamURL, contentType string, duration time.Duration, cancel context.CancelFunc) (*Snippet, error) {
	out, err := os.CreateTemp("", "muninn-snippet-*"+extForContentType(contentType))
	if err != nil {
		return nil, fmt.Errorf("create snippet file: %w", err)
	}
	defer out.Close()

	// End the read when the window closes; the body read unblocks via cancel.
	timer := time.AfterFunc(duration, cancel)
	defer timer.Stop()

	written, err := io.Copy(out, io.MultiReader(bytes.NewReader(prefix), body))
	if written == 0 {
		_ = os.Remove(out.Name())
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		return nil, ErrEmptySnippet
	}

	telemetry.SnippetCaptureBytesTotal.Add(float64(written))
	c.logger.Debug().Str("url", streamURL).Int64("bytes", written).Msg("continuous capture complete")

	return &Snippet{
		SourceURL:   streamURL,
		Path:        out.Name(),
		ContentType: contentType,
		Segmented:   false,
		Size:        written,
	}, nil
}

// captureSegmented re-fetches the manifest as text, resolves the trailing
// segment URIs and concatenates their bodies into one file. A manifest
// whose freshest entry is itself a playlist (master manifest) is followed
// one level down.
func (c *Capturer) captureSegmented(ctx context.Context, manifestURL string, depth int) (*Snippet, error) {
	manifest, err := c.fetchText(ctx, manifestURL, manifestTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	uris := parsePlaylist(manifest)
	if len(uris) == 0 {
		return nil, ErrNoSegments
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest URL: %w", err)
	}

	if depth == 0 && strings.Contains(strings.ToLower(uris[len(uris)-1]), ".m3u8") {
		variant, err := resolveURI(base, uris[len(uris)-1])
		if err != nil {
			return nil, fmt.Errorf("resolve variant playlist: %w", err)
		}
		return c.captureSegmented(ctx, variant, depth+1)
	}

	segments := trailingSegments(uris, trailingSegmentCount)

	ext := extForSegment(segments[0])
	out, err := os.CreateTemp("", "muninn-snippet-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create snippet file: %w", err)
	}
	defer out.Close()

	var total int64
	for _, seg := range segments {
		segURL, err := resolveURI(base, seg)
		if err != nil {
			c.logger.Warn().Err(err).Str("segment", seg).Msg("skipping unresolvable segment URI")
			continue
		}
		n, err := c.fetchInto(ctx, out, segURL, segmentTimeout)
		if err != nil {
			c.logger.Warn().Err(err).Str("segment", segURL).Msg("segment fetch failed")
			continue
		}
		total += n
	}

	if total == 0 {
		_ = os.Remove(out.Name())
		return nil, ErrEmptySnippet
	}

	telemetry.SnippetCaptureBytesTotal.Add(float64(total))
	c.logger.Debug().Str("url", manifestURL).Int("segments", len(segments)).Int64("bytes", total).Msg("segmented capture complete")

	return &Snippet{
		SourceURL:   manifestURL,
		Path:        out.Name(),
		ContentType: contentTypeForSegment(ext),
		Segmented:   true,
		Size:        total,
	}, nil
}

func (c *Capturer) fetchText(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Capturer) fetchInto(ctx context.Context, w io.Writer, rawURL string, timeout time.Duration) (int64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return io.Copy(w, resp.Body)
}

// extForContentType maps a declared audio content type to a file extension
// the normalizer can work from.
func extForContentType(contentType string) string {
	ct := strings.ToLower(contentType)
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = ct[:idx]
	}
	ct = strings.TrimSpace(ct)

	switch {
	case strings.Contains(ct, "aac"):
		return ".aac"
	case strings.Contains(ct, "mpeg") || strings.Contains(ct, "mp3"):
		return ".mp3"
	case strings.Contains(ct, "mp4") || strings.Contains(ct, "m4a"):
		return ".m4a"
	case strings.Contains(ct, "wav"):
		return ".wav"
	default:
		return ".bin"
	}
}

// contentTypeForSegment maps a segment extension back to the content
// type stamped on the concatenated snippet.
func contentTypeForSegment(ext string) string {
	switch ext {
	case ".aac":
		return "audio/aac"
	case ".ts":
		return "video/mp2t"
	case ".mp3":
		return "audio/mpeg"
	default:
		return "audio/mp4"
	}
}

func extForSegment(uri string) string {
	trimmed := uri
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	lower := strings.ToLower(trimmed)
	for _, ext := range []string{".aac", ".ts", ".m4s", ".mp4", ".mp3"} {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ".ts"
}
