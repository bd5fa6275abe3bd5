/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recognize

import "regexp"

// Some deployments of the recognition service answer the upload with a
// plain-text payload describing the real matching call: a curl-style
// command with a quoted URL, header pairs, and a quoted JSON body. The
// client performs that call itself rather than shelling out.
type callDescriptor struct {
	URL     string
	Headers map[string]string
	Payload string
}

var (
	commandURLPattern = regexp.MustCompile(`curl[^'"]*['"](https?://[^'"]+)['"]`)
	headerPattern     = regexp.MustCompile(`-H\s+['"]([^:'"]+):\s*([^'"]*)['"]`)
	dataPattern       = regexp.MustCompile(`(?s)(?:--data(?:-raw|-binary)?|-d)\s+['"](\{.*?\})['"]`)
)

// parseCallDescriptor extracts the embedded HTTP-call descriptor from a
// textual response body. Both the URL and the JSON payload must be
// present for the descriptor to be usable.
func parseCallDescriptor(body string) (callDescriptor, bool) {
	urlMatch := commandURLPattern.FindStringSubmatch(body)
	if urlMatch == nil {
		return callDescriptor{}, false
	}

	dataMatch := dataPattern.FindStringSubmatch(body)
	if dataMatch == nil {
		return callDescriptor{}, false
	}

	headers := make(map[string]string)
	for _, m := range headerPattern.FindAllStringSubmatch(body, -1) {
		headers[m[1]] = m[2]
	}

	return callDescriptor{
		URL:     urlMatch[1],
		Headers: headers,
		Payload: dataMatch[1],
	}, true
}
