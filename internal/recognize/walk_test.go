package recognize

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad test JSON: %v", err)
	}
	return v
}

func TestFindTrackPrecedence(t *testing.T) {
	// Top-level pair wins over a nested track.
	v := decode(t, `{"title": "A", "artist": "B", "track": {"title": "X", "subtitle": "Y"}}`)
	artist, title, ok := findTrack(v)
	if !ok || artist != "B" || title != "A" {
		t.Fatalf("top-level pair not preferred: %q/%q ok=%v", artist, title, ok)
	}
}

func TestFindTrackSubtitleThenArtist(t *testing.T) {
	v := decode(t, `{"track": {"title": "T", "artist": "From Artist"}}`)
	artist, _, ok := findTrack(v)
	if !ok || artist != "From Artist" {
		t.Fatalf("artist field fallback failed: %q ok=%v", artist, ok)
	}

	v = decode(t, `{"track": {"title": "T", "subtitle": "From Subtitle", "artist": "ignored"}}`)
	artist, _, ok = findTrack(v)
	if !ok || artist != "From Subtitle" {
		t.Fatalf("subtitle must take precedence: %q", artist)
	}
}

func TestFindTrackDeepMatchesRecursion(t *testing.T) {
	v := decode(t, `{"matches": [{"matches": [{"track": {"title": "Deep", "subtitle": "Nested"}}]}]}`)
	artist, title, ok := findTrack(v)
	if !ok || artist != "Nested" || title != "Deep" {
		t.Fatalf("deep recursion failed: %q/%q ok=%v", artist, title, ok)
	}
}

func TestFindTrackRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[1,2,3]`, `"text"`, `42`, `null`, `{}`} {
		if _, _, ok := findTrack(decode(t, raw)); ok {
			t.Errorf("findTrack matched %s", raw)
		}
	}
}

func TestNoMatchHintShape(t *testing.T) {
	if _, ok := noMatchHint(decode(t, `{"matches": [], "retryms": 3000}`)); !ok {
		t.Fatal("canonical no-match shape not recognized")
	}
	if _, ok := noMatchHint(decode(t, `{"matches": [{"x": 1}], "retryms": 3000}`)); ok {
		t.Fatal("non-empty matches must not be a no-match")
	}
	if _, ok := noMatchHint(decode(t, `{"matches": []}`)); ok {
		t.Fatal("missing retryms must not be a no-match")
	}
}

func TestParseCallDescriptor(t *testing.T) {
	body := `please run:
curl -X POST 'https://api.example.com/v2/detect' -H 'X-Token: t0k3n' -H 'Content-Type: application/json' --data '{"signature": "abc"}'`

	desc, ok := parseCallDescriptor(body)
	if !ok {
		t.Fatal("descriptor not parsed")
	}
	if desc.URL != "https://api.example.com/v2/detect" {
		t.Fatalf("unexpected URL: %s", desc.URL)
	}
	if desc.Headers["X-Token"] != "t0k3n" {
		t.Fatalf("unexpected headers: %+v", desc.Headers)
	}
	if desc.Payload != `{"signature": "abc"}` {
		t.Fatalf("unexpected payload: %s", desc.Payload)
	}
}

func TestParseCallDescriptorRequiresURLAndPayload(t *testing.T) {
	if _, ok := parseCallDescriptor(`curl 'https://api.example.com/x'`); ok {
		t.Fatal("descriptor without payload must not parse")
	}
	if _, ok := parseCallDescriptor(`--data '{"a": 1}'`); ok {
		t.Fatal("descriptor without URL must not parse")
	}
}
