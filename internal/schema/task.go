package schema

import (
	"regexp"
	"strings"
)

// TaskPreview is the short view of a tracker task shown before syncing
type TaskPreview struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
	IconURL string `json:"icon_url,omitempty"`
}

var browsePrefix = regexp.MustCompile(`(?i)^.*browse/`)

// NormalizeTaskKey accepts a bare key, a browse URL or a comma separated list
// and returns the first key, trimmed and upper-cased
func NormalizeTaskKey(input string) string {
	key := strings.TrimSpace(input)
	key = browsePrefix.ReplaceAllString(key, "")
	if i := strings.IndexByte(key, ','); i >= 0 {
		key = key[:i]
	}
	// Drop any query string or fragment left over from a pasted URL
	if i := strings.IndexAny(key, "?#/"); i >= 0 {
		key = key[:i]
	}
	return strings.ToUpper(strings.TrimSpace(key))
}

// SplitTaskKeys parses a comma separated list of keys or browse URLs,
// dropping blanks and duplicates while keeping input order
func SplitTaskKeys(input string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(input, ",") {
		key := NormalizeTaskKey(part)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys
}
