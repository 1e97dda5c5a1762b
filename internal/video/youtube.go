// Package video talks to the platforms recipes are ingested from: reference
// parsing, existence checks and transcript extraction.
package video

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidRef = errors.New("invalid video reference")

	youtubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ParseYouTubeRef accepts a bare video id or any common YouTube URL form
// (watch, shorts, embed, live, youtu.be) and returns the 11-character id.
func ParseYouTubeRef(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRef)
	}
	if youtubeID.MatchString(raw) {
		return raw, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := strings.Trim(u.Path, "/")

	var id string
	switch host {
	case "youtu.be":
		id, _, _ = strings.Cut(path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		first, rest, _ := strings.Cut(path, "/")
		switch first {
		case "watch":
			id = u.Query().Get("v")
		case "shorts", "embed", "live", "v":
			id, _, _ = strings.Cut(rest, "/")
		}
	default:
		return "", fmt.Errorf("%w: unsupported host %q", ErrInvalidRef, host)
	}

	if !youtubeID.MatchString(id) {
		return "", fmt.Errorf("%w: no video id in %q", ErrInvalidRef, raw)
	}
	return id, nil
}

// YouTubeWatchURL is the canonical URL of a video id.
func YouTubeWatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
