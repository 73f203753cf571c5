package compositor

import (
	"fmt"
	"net/url"
	"strings"
)

// IsPlaylistURL reports whether rawURL looks like a streaming-playlist
// resource (an HLS media or master playlist). Such URLs cannot be displayed
// directly; they are loaded through the player harness page instead.
func IsPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".m3u8") || strings.HasSuffix(p, ".m3u")
}

// HarnessURL parameterizes the player harness page with a stream URL,
// returning the URL the content host should actually load.
func HarnessURL(harness, stream string) (string, error) {
	u, err := url.Parse(harness)
	if err != nil {
		return "", fmt.Errorf("parse harness URL: %w", err)
	}
	q := u.Query()
	q.Set("src", stream)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resolveLoadURL validates a content ref and returns the URL to navigate to:
// the content URL itself, or the harness page for playlist resources when a
// harness is configured.
func resolveLoadURL(content ContentRef, harness string) (string, error) {
	u, err := url.Parse(content.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidContent, u.Scheme)
	}
	if harness != "" && IsPlaylistURL(content.URL) {
		return HarnessURL(harness, content.URL)
	}
	return content.URL, nil
}
