/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	// Stream being watched
	StreamURL string
	UserAgent string

	// Recognition endpoint
	RecognitionURL     string
	RecognitionTimeout time.Duration

	// Scheduling policy
	SampleDuration      time.Duration
	MinSuccessInterval  time.Duration
	BackoffFloor        time.Duration
	BackoffCeiling      time.Duration
	NoMatchBackoffFloor time.Duration
	RecognitionCooldown time.Duration

	// Transcoding
	FFmpegBin string

	// Junk filtering for the inline metadata channel
	AppDisplayName string
	JunkTermsFile  string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("MUNINN_ENV", "development"),
		HTTPBind:    getEnv("MUNINN_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("MUNINN_HTTP_PORT", 8090),
		MetricsBind: getEnv("MUNINN_METRICS_BIND", "127.0.0.1:9100"),

		StreamURL: getEnv("MUNINN_STREAM_URL", ""),
		UserAgent: getEnv("MUNINN_USER_AGENT", "Muninn-NowPlaying/1.0"),

		RecognitionURL:     getEnv("MUNINN_RECOGNITION_URL", ""),
		RecognitionTimeout: getEnvDuration("MUNINN_RECOGNITION_TIMEOUT", 35*time.Second),

		SampleDuration:      getEnvDuration("MUNINN_SAMPLE_DURATION", 10*time.Second),
		MinSuccessInterval:  getEnvDuration("MUNINN_MIN_SUCCESS_INTERVAL", 60*time.Second),
		BackoffFloor:        getEnvDuration("MUNINN_BACKOFF_FLOOR", 60*time.Second),
		BackoffCeiling:      getEnvDuration("MUNINN_BACKOFF_CEILING", 600*time.Second),
		NoMatchBackoffFloor: getEnvDuration("MUNINN_NOMATCH_BACKOFF_FLOOR", 5*time.Second),
		RecognitionCooldown: getEnvDuration("MUNINN_RECOGNITION_COOLDOWN", 300*time.Second),

		FFmpegBin: getEnv("MUNINN_FFMPEG_BIN", "ffmpeg"),

		AppDisplayName: getEnv("MUNINN_APP_DISPLAY_NAME", "Muninn"),
		JunkTermsFile:  getEnv("MUNINN_JUNK_TERMS_FILE", ""),

		TracingEnabled:    getEnvBool("MUNINN_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("MUNINN_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("MUNINN_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.StreamURL == "" {
		return nil, fmt.Errorf("MUNINN_STREAM_URL must be provided")
	}
	if _, err := url.ParseRequestURI(cfg.StreamURL); err != nil {
		return nil, fmt.Errorf("MUNINN_STREAM_URL is not a valid URL: %w", err)
	}

	if cfg.RecognitionURL == "" {
		return nil, fmt.Errorf("MUNINN_RECOGNITION_URL must be provided")
	}
	if _, err := url.ParseRequestURI(cfg.RecognitionURL); err != nil {
		return nil, fmt.Errorf("MUNINN_RECOGNITION_URL is not a valid URL: %w", err)
	}

	if cfg.SampleDuration <= 0 {
		return nil, fmt.Errorf("MUNINN_SAMPLE_DURATION must be positive")
	}
	if cfg.BackoffFloor > cfg.BackoffCeiling {
		return nil, fmt.Errorf("MUNINN_BACKOFF_FLOOR (%s) exceeds MUNINN_BACKOFF_CEILING (%s)",
			cfg.BackoffFloor, cfg.BackoffCeiling)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvDuration accepts Go duration syntax ("90s", "2m") or a bare number of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
