/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package capture

import (
	"bufio"
	"bytes"
	"net/url"
	"strings"
)

var manifestSignature = []byte("#EXTM3U")

// hasManifestSignature reports whether the body prefix looks like an
// M3U playlist manifest.
func hasManifestSignature(prefix []byte) bool {
	return bytes.Contains(prefix, manifestSignature)
}

// isPlaylistContentType reports whether the declared content type names a
// segment-list format.
func isPlaylistContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "mpegurl") ||
		strings.Contains(ct, "x-scpls") ||
		strings.Contains(ct, "vnd.apple.mpegurl")
}

// parsePlaylist extracts segment URIs from a line-oriented manifest,
// ignoring comment and directive lines.
func parsePlaylist(manifest string) []string {
	var uris []string
	scanner := bufio.NewScanner(strings.NewReader(manifest))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		uris = append(uris, line)
	}
	return uris
}

// trailingSegments returns the last n entries, freshest last.
func trailingSegments(uris []string, n int) []string {
	if len(uris) <= n {
		return uris
	}
	return uris[len(uris)-n:]
}

// resolveURI resolves a possibly-relative segment URI against the
// manifest's base URL.
func resolveURI(base *url.URL, uri string) (string, error) {
	ref, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
