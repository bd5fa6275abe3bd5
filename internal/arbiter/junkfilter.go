/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package arbiter

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Inline metadata is frequently the station's own promotional text rather
// than song information. The filter drops candidates that look like
// branding, contact prompts, or filler before they can clobber good data.
//
// The default term list targets Portuguese-language broadcast filler; it
// is configuration data, not logic, and stations in other locales should
// supply their own via a terms file.
var defaultJunkTerms = []string{
	"tocando agora",
	"ao vivo",
	"no ar",
	"voce esta ouvindo",
	"a melhor radio",
	"sua radio",
	"participe",
	"promocao",
	"pedidos",
	"mande sua mensagem",
	"siga",
	"instagram",
	"facebook",
	"whatsapp",
	"wpp",
	"twitter",
	"curta nossa pagina",
}

var (
	urlPattern   = regexp.MustCompile(`(?i)(https?://|www\.|\.com\b|\.net\b|\.org\b|\.br\b|\.fm\b)`)
	phonePattern = regexp.MustCompile(`\(?\d{2,3}\)?[\s.-]?\d{4,5}[\s.-]?\d{4}`)
)

// JunkFilter flags inline-channel candidates that carry no song information.
type JunkFilter struct {
	appName  string
	termsRes []*regexp.Regexp
}

// NewJunkFilter builds a filter. terms nil means the default denylist.
// appName is the host application's display name, which stations sometimes
// echo back through the inline channel.
func NewJunkFilter(appName string, terms []string) *JunkFilter {
	if terms == nil {
		terms = defaultJunkTerms
	}
	res := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		// Whole token or word-boundary affix.
		res = append(res, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(foldField(term))+`\b`))
	}
	return &JunkFilter{appName: strings.ToLower(appName), termsRes: res}
}

// LoadTerms reads a junk-term denylist from a YAML file of the form
// `terms: [...]`.
func LoadTerms(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read junk terms file: %w", err)
	}
	var doc struct {
		Terms []string `yaml:"terms"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse junk terms file: %w", err)
	}
	if len(doc.Terms) == 0 {
		return nil, fmt.Errorf("junk terms file %s contains no terms", path)
	}
	return doc.Terms, nil
}

// IsJunk reports whether a candidate is junk, with the rule that flagged it.
func (f *JunkFilter) IsJunk(artist, title string) (bool, string) {
	combined := artist + " " + title

	if urlPattern.MatchString(combined) {
		return true, "url"
	}

	if f.appName != "" && strings.Contains(strings.ToLower(combined), f.appName) {
		return true, "app_name"
	}

	for _, field := range []string{artist, title} {
		if trimmed := strings.TrimSpace(field); trimmed != "" && len([]rune(trimmed)) < 2 {
			return true, "too_short"
		}
	}

	folded := foldField(combined)
	for _, re := range f.termsRes {
		if re.MatchString(folded) {
			return true, "denylist"
		}
	}

	if phonePattern.MatchString(combined) {
		return true, "phone_number"
	}

	return false, ""
}
