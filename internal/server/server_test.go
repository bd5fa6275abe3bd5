/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/muninn_nowplaying/internal/arbiter"
	"github.com/friendsincode/muninn_nowplaying/internal/artwork"
	"github.com/friendsincode/muninn_nowplaying/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Environment:         "test",
		HTTPBind:            "127.0.0.1",
		HTTPPort:            0,
		StreamURL:           "http://stream.example/live",
		UserAgent:           "Muninn-NowPlaying/1.0",
		RecognitionURL:      "http://recognition.example/v1/identify",
		RecognitionTimeout:  35 * time.Second,
		SampleDuration:      10 * time.Second,
		MinSuccessInterval:  60 * time.Second,
		BackoffFloor:        60 * time.Second,
		BackoffCeiling:      600 * time.Second,
		NoMatchBackoffFloor: 5 * time.Second,
		RecognitionCooldown: 300 * time.Second,
		FFmpegBin:           "ffmpeg",
		AppDisplayName:      "Muninn",
	}
	srv, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestNowPlayingEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.arb.Submit(arbiter.Candidate{Artist: "Elza Soares", Title: "Maria da Vila Matilde", Source: arbiter.SourceRecognition})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/nowplaying", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var np arbiter.NowPlaying
	if err := json.Unmarshal(rec.Body.Bytes(), &np); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if np.Artist != "Elza Soares" || np.Source != arbiter.SourceRecognition {
		t.Fatalf("unexpected now playing: %+v", np)
	}
}

func TestInlineEndpointJSON(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"raw":"Elza Soares - Mulher do Fim do Mundo"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/inline", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if got := srv.arb.Current(); got.Title != "Mulher do Fim do Mundo" || got.Source != arbiter.SourceInline {
		t.Fatalf("inline candidate not applied: %+v", got)
	}
}

func TestInlineEndpointPlainText(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/inline", strings.NewReader("Emicida - AmarElo"))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if got := srv.arb.Current(); got.Artist != "Emicida" {
		t.Fatalf("inline candidate not applied: %+v", got)
	}
}

func TestInlineEndpointRejectsEmpty(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/inline", strings.NewReader("   "))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPlaybackToggle(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/playback", strings.NewReader(`{"playing":false}`))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if srv.engine.IsPlaying() {
		t.Fatal("expected playback to be off")
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/playback", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing flag should be 400, got %d", rec.Code)
	}
}

type recordingFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *recordingFetcher) Fetch(_ context.Context, artist, title string) (*artwork.Art, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, artist+" - "+title)
	return nil, nil
}

func (f *recordingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestArtworkFetchRunsOnAppliedChange(t *testing.T) {
	srv := newTestServer(t)
	fetcher := &recordingFetcher{}
	srv.artwork = fetcher

	srv.arb.Submit(arbiter.Candidate{Artist: "Marisa Monte", Title: "Amor I Love You", Source: arbiter.SourceRecognition})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if fetcher.count() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("artwork fetch did not run for the applied change")
}

func TestNowPlayingWSFramesShareOneShape(t *testing.T) {
	srv := newTestServer(t)
	srv.arb.Submit(arbiter.Candidate{Artist: "Gilberto Gil", Title: "Aquele Abraço", Source: arbiter.SourceRecognition})

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/nowplaying/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "done")

	readFrame := func() arbiter.NowPlaying {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var frame struct {
			Type       string             `json:"type"`
			NowPlaying arbiter.NowPlaying `json:"now_playing"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Type != "now_playing" {
			t.Fatalf("unexpected frame type %q", frame.Type)
		}
		if frame.NowPlaying.AppliedAt.IsZero() {
			t.Fatalf("frame missing applied_at: %s", data)
		}
		return frame.NowPlaying
	}

	first := readFrame()
	if first.Artist != "Gilberto Gil" {
		t.Fatalf("unexpected initial frame: %+v", first)
	}

	srv.arb.Submit(arbiter.Candidate{Artist: "Caetano Veloso", Title: "Alegria, Alegria", Source: arbiter.SourceRecognition})

	second := readFrame()
	if second.Artist != "Caetano Veloso" || second.Source != arbiter.SourceRecognition {
		t.Fatalf("unexpected update frame: %+v", second)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Playing || st.StreamURL != "http://stream.example/live" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.IsRecognizing {
		t.Fatal("no attempt should be in flight")
	}
}
