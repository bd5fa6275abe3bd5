/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package normalize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

const transcodeTimeout = 30 * time.Second

// defaultStrategies builds the production ffmpeg chain. All outputs are
// mono 44.1kHz, matching the recognition service's documented happy path.
func defaultStrategies(ffmpegBin string) []Strategy {
	return []Strategy{
		{
			Name:     "pcm_wav",
			Encoding: EncodingPCMWav,
			OutExt:   ".wav",
			Run: func(ctx context.Context, in, out string) error {
				return runFFmpeg(ctx, ffmpegBin,
					"-i", in,
					"-vn",
					"-ac", "1",
					"-ar", "44100",
					"-c:a", "pcm_s16le",
					"-f", "wav",
					out,
				)
			},
		},
		{
			Name:     "aac_m4a",
			Encoding: EncodingAACM4A,
			OutExt:   ".m4a",
			Run: func(ctx context.Context, in, out string) error {
				return runFFmpeg(ctx, ffmpegBin,
					"-i", in,
					"-vn",
					"-ac", "1",
					"-ar", "44100",
					"-c:a", "aac",
					"-b:a", "64k",
					"-f", "ipod",
					out,
				)
			},
		},
		{
			// Coarser, more format-tolerant export for containers the
			// strict invocations reject.
			Name:     "aac_m4a_tolerant",
			Encoding: EncodingAACM4A,
			OutExt:   ".m4a",
			Run: func(ctx context.Context, in, out string) error {
				return runFFmpeg(ctx, ffmpegBin,
					"-err_detect", "ignore_err",
					"-fflags", "+genpts+discardcorrupt",
					"-i", in,
					"-vn",
					"-ac", "1",
					"-ar", "44100",
					"-c:a", "aac",
					"-b:a", "64k",
					"-movflags", "+faststart",
					"-f", "ipod",
					out,
				)
			},
		},
	}
}

func runFFmpeg(ctx context.Context, bin string, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	cmd := exec.CommandContext(runCtx, bin, full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (%s)", bin, err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := bytes.Split(bytes.TrimSpace([]byte(s)), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
