package patent

import (
	"fmt"
	"strings"
)

const pathMarker = "patent"

var languageSuffixes = map[string]struct{}{
	"zh": {},
	"en": {},
	"de": {},
	"jp": {},
}

// ResolveIdentifier derives the stable patent identifier from a task URL.
// Equivalent URLs that differ only by language suffix or query string resolve
// to the same identifier.
func ResolveIdentifier(rawURL string) (string, error) {
	parts := make([]string, 0, 8)
	for _, p := range strings.Split(rawURL, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %q has no path segments", ErrParse, rawURL)
	}

	candidate := parts[len(parts)-1]
	for i, p := range parts {
		if p == pathMarker {
			if i+1 < len(parts) {
				candidate = parts[i+1]
			}
			break
		}
	}
	if _, ok := languageSuffixes[strings.ToLower(stripQuery(candidate))]; ok && len(parts) >= 2 {
		candidate = parts[len(parts)-2]
	}

	id := stripQuery(candidate)
	if id == "" {
		return "", fmt.Errorf("%w: %q yields an empty identifier", ErrParse, rawURL)
	}
	return id, nil
}

func stripQuery(segment string) string {
	if idx := strings.IndexByte(segment, '?'); idx >= 0 {
		return segment[:idx]
	}
	return segment
}
