/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recognize submits normalized audio to a fingerprint-matching
// endpoint and interprets its heterogeneous response shapes: direct JSON,
// nested JSON, an explicit no-match hint, or a textual payload describing
// a second HTTP call to perform.
package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// OutcomeKind tags the variants of a recognition outcome.
type OutcomeKind string

const (
	OutcomeIdentified       OutcomeKind = "identified"
	OutcomeNoMatch          OutcomeKind = "no_match"
	OutcomeTransientFailure OutcomeKind = "transient_failure"
	OutcomeParseFailure     OutcomeKind = "parse_failure"
)

// Outcome is the tagged result of one recognition attempt.
type Outcome struct {
	Kind OutcomeKind

	// Identified
	Artist string
	Title  string

	// NoMatch: server-provided retry hint, 0 when absent.
	RetryHintMS int

	// TransientFailure
	Reason string
}

func identified(artist, title string) Outcome {
	return Outcome{Kind: OutcomeIdentified, Artist: artist, Title: title}
}

func noMatch(retryMS int) Outcome {
	return Outcome{Kind: OutcomeNoMatch, RetryHintMS: retryMS}
}

func transient(reason string) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Reason: reason}
}

func parseFailure() Outcome {
	return Outcome{Kind: OutcomeParseFailure}
}

// Client talks to the fingerprint recognition endpoint.
type Client struct {
	endpoint  string
	userAgent string
	client    *http.Client
	logger    zerolog.Logger
}

// NewClient creates a recognition client. The timeout is generous because
// remote matching is itself slow.
func NewClient(endpoint, userAgent string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 35 * time.Second
	}
	return &Client{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With().Str("component", "recognize").Logger(),
	}
}

// Recognize uploads the audio file and interprets the response.
func (c *Client) Recognize(ctx context.Context, audioPath string) Outcome {
	body, contentType, err := buildMultipart(audioPath)
	if err != nil {
		return transient(fmt.Sprintf("build upload: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return transient(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return transient(fmt.Sprintf("upload: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transient(fmt.Sprintf("recognition endpoint returned HTTP %d", resp.StatusCode))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return transient(fmt.Sprintf("read response: %v", err))
	}

	return c.interpret(ctx, payload)
}

// interpret applies the response-shape precedence: JSON track search,
// explicit no-match shape, then the textual indirection descriptor.
func (c *Client) interpret(ctx context.Context, payload []byte) Outcome {
	var value any
	if err := json.Unmarshal(payload, &value); err == nil {
		if artist, title, ok := findTrack(value); ok {
			return identified(artist, title)
		}
		if retryMS, ok := noMatchHint(value); ok {
			return noMatch(retryMS)
		}
		// JSON, but no shape we know.
		return parseFailure()
	}

	desc, ok := parseCallDescriptor(string(payload))
	if !ok {
		return parseFailure()
	}

	c.logger.Debug().Str("url", desc.URL).Msg("response described a second call, following indirection")
	return c.followIndirection(ctx, desc)
}

// followIndirection performs the embedded second call and re-applies the
// JSON search to its response.
func (c *Client) followIndirection(ctx context.Context, desc callDescriptor) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, desc.URL, strings.NewReader(desc.Payload))
	if err != nil {
		return transient(fmt.Sprintf("create indirect request: %v", err))
	}
	for key, val := range desc.Headers {
		req.Header.Set(key, val)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return transient(fmt.Sprintf("indirect call: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return transient(fmt.Sprintf("indirect endpoint returned HTTP %d", resp.StatusCode))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return transient(fmt.Sprintf("read indirect response: %v", err))
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return parseFailure()
	}
	if artist, title, ok := findTrack(value); ok {
		return identified(artist, title)
	}
	if retryMS, ok := noMatchHint(value); ok {
		return noMatch(retryMS)
	}
	return parseFailure()
}

func buildMultipart(audioPath string) (io.Reader, string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}
