/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package arbiter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// identityKey computes the normalized identity of an (artist, title) pair:
// case- and diacritic-insensitive, whitespace-collapsed. Two candidates
// with the same key name the same song for arbitration purposes.
func identityKey(artist, title string) string {
	return foldField(artist) + "\x00" + foldField(title)
}

func foldField(s string) string {
	folded, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
