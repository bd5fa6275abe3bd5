/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recognize

import "strings"

// findTrack recursively searches a decoded JSON value for a title/artist
// pair. Precedence: top-level {title, artist}, then {track: {title,
// subtitle|artist}}, then recursion into a "matches" array. Both fields
// must be non-empty after trimming.
func findTrack(value any) (artist, title string, ok bool) {
	obj, isMap := value.(map[string]any)
	if !isMap {
		return "", "", false
	}

	if title := trimmedString(obj["title"]); title != "" {
		if artist := trimmedString(obj["artist"]); artist != "" {
			return artist, title, true
		}
	}

	if track, isMap := obj["track"].(map[string]any); isMap {
		title := trimmedString(track["title"])
		artist := trimmedString(track["subtitle"])
		if artist == "" {
			artist = trimmedString(track["artist"])
		}
		if title != "" && artist != "" {
			return artist, title, true
		}
	}

	if matches, isSlice := obj["matches"].([]any); isSlice {
		for _, entry := range matches {
			if artist, title, ok := findTrack(entry); ok {
				return artist, title, true
			}
		}
	}

	return "", "", false
}

// noMatchHint recognizes the well-known "nothing recognizable right now"
// shape {"matches": [], "retryms": N}.
func noMatchHint(value any) (retryMS int, ok bool) {
	obj, isMap := value.(map[string]any)
	if !isMap {
		return 0, false
	}

	matches, hasMatches := obj["matches"].([]any)
	if !hasMatches || len(matches) != 0 {
		return 0, false
	}

	if retry, isNum := obj["retryms"].(float64); isNum {
		return int(retry), true
	}
	return 0, false
}

func trimmedString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
