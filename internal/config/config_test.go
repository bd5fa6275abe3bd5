package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MUNINN_STREAM_URL", "http://radio.example.com/live.aac")
	t.Setenv("MUNINN_RECOGNITION_URL", "http://recognizer.example.com/v1/identify")
}

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MUNINN_ENV", "development")
	t.Setenv("MUNINN_APP_DISPLAY_NAME", "Radio Thing")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StreamURL != "http://radio.example.com/live.aac" {
		t.Fatalf("unexpected stream URL: %q", cfg.StreamURL)
	}
	if cfg.AppDisplayName != "Radio Thing" {
		t.Fatalf("unexpected display name: %q", cfg.AppDisplayName)
	}
}

func TestLoadRequiresStreamAndRecognitionURLs(t *testing.T) {
	t.Setenv("MUNINN_STREAM_URL", "")
	t.Setenv("MUNINN_RECOGNITION_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without stream URL")
	}

	t.Setenv("MUNINN_STREAM_URL", "http://radio.example.com/live.aac")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail without recognition URL")
	}
}

func TestLoadAppliesSchedulingDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SampleDuration != 10*time.Second {
		t.Fatalf("unexpected sample duration: %s", cfg.SampleDuration)
	}
	if cfg.MinSuccessInterval != 60*time.Second {
		t.Fatalf("unexpected success interval: %s", cfg.MinSuccessInterval)
	}
	if cfg.BackoffFloor != 60*time.Second || cfg.BackoffCeiling != 600*time.Second {
		t.Fatalf("unexpected backoff bounds: %s/%s", cfg.BackoffFloor, cfg.BackoffCeiling)
	}
	if cfg.NoMatchBackoffFloor != 5*time.Second {
		t.Fatalf("unexpected no-match floor: %s", cfg.NoMatchBackoffFloor)
	}
	if cfg.RecognitionCooldown != 300*time.Second {
		t.Fatalf("unexpected cooldown: %s", cfg.RecognitionCooldown)
	}
}

func TestLoadParsesDurationsAsSecondsOrGoSyntax(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MUNINN_SAMPLE_DURATION", "15")
	t.Setenv("MUNINN_MIN_SUCCESS_INTERVAL", "2m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SampleDuration != 15*time.Second {
		t.Fatalf("bare seconds not parsed: %s", cfg.SampleDuration)
	}
	if cfg.MinSuccessInterval != 2*time.Minute {
		t.Fatalf("duration syntax not parsed: %s", cfg.MinSuccessInterval)
	}
}

func TestLoadRejectsInvertedBackoffBounds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MUNINN_BACKOFF_FLOOR", "700s")
	t.Setenv("MUNINN_BACKOFF_CEILING", "600s")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail with floor above ceiling")
	}
}
