/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package normalize converts captured snippets into one of the small set
// of encodings the recognition service reliably accepts. Strategies are
// tried in order; only total exhaustion surfaces an error, and the caller
// then falls back to uploading the raw snippet.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/friendsincode/muninn_nowplaying/internal/capture"
)

// ErrAllStrategiesFailed indicates every transcoding strategy was exhausted.
var ErrAllStrategiesFailed = errors.New("all normalization strategies failed")

// Encoding identifies the output format of a normalization pass.
type Encoding string

const (
	EncodingPCMWav      Encoding = "pcm_wav"
	EncodingAACM4A      Encoding = "aac_m4a"
	EncodingPassthrough Encoding = "passthrough"
)

// NormalizedAudio is the single output of a successful normalization.
// It is owned by the current recognition attempt and discarded after upload.
type NormalizedAudio struct {
	Path     string
	Encoding Encoding
}

// Remove deletes the normalized file.
func (n *NormalizedAudio) Remove() {
	if n != nil && n.Path != "" {
		_ = os.Remove(n.Path)
	}
}

// Strategy is one transcoding approach. Run writes the converted audio to
// outPath and returns an error if the input defeats this approach.
type Strategy struct {
	Name     string
	Encoding Encoding
	OutExt   string
	Run      func(ctx context.Context, inPath, outPath string) error
}

// Normalizer tries an ordered list of strategies against a snippet.
type Normalizer struct {
	strategies []Strategy
	logger     zerolog.Logger
}

// New creates a normalizer with the default ffmpeg strategy chain:
// strict PCM/WAV, then strict AAC/M4A, then a tolerant AAC export for
// containers the strict invocations cannot open.
func New(ffmpegBin string, logger zerolog.Logger) *Normalizer {
	return NewWithStrategies(defaultStrategies(ffmpegBin), logger)
}

// NewWithStrategies creates a normalizer with an explicit strategy chain.
func NewWithStrategies(strategies []Strategy, logger zerolog.Logger) *Normalizer {
	return &Normalizer{
		strategies: strategies,
		logger:     logger.With().Str("component", "normalize").Logger(),
	}
}

// Normalize runs the strategy chain against the snippet. A strategy's own
// failure never escapes; it is logged and the next strategy runs. The
// returned file is the only output artifact; failed attempts' partial
// files are removed before falling through.
func (n *Normalizer) Normalize(ctx context.Context, snippet *capture.Snippet) (*NormalizedAudio, error) {
	for _, strat := range n.strategies {
		out, err := os.CreateTemp("", "muninn-normalized-*"+strat.OutExt)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		outPath := out.Name()
		out.Close()

		if err := strat.Run(ctx, snippet.Path, outPath); err != nil {
			n.logger.Warn().Err(err).Str("strategy", strat.Name).Msg("normalization strategy failed, falling through")
			_ = os.Remove(outPath)
			continue
		}

		info, err := os.Stat(outPath)
		if err != nil || info.Size() == 0 {
			n.logger.Warn().Str("strategy", strat.Name).Msg("strategy produced no output, falling through")
			_ = os.Remove(outPath)
			continue
		}

		n.logger.Debug().Str("strategy", strat.Name).Int64("bytes", info.Size()).Msg("normalization complete")
		return &NormalizedAudio{Path: outPath, Encoding: strat.Encoding}, nil
	}

	return nil, ErrAllStrategiesFailed
}
