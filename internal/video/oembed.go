package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"recipe-ingest-service/internal/entity"
)

const DefaultOEmbedURL = "https://www.youtube.com/oembed"

// OEmbedChecker answers existence checks with the platform's oEmbed endpoint.
type OEmbedChecker struct {
	endpoint string
	client   *http.Client
}

func NewOEmbedChecker(endpoint string, timeout time.Duration) *OEmbedChecker {
	if endpoint == "" {
		endpoint = DefaultOEmbedURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OEmbedChecker{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Exists returns false when the platform says the video is missing, private
// or not embeddable, and an error when it could not tell.
func (c *OEmbedChecker) Exists(ctx context.Context, kind entity.SourceKind, ref string) (bool, error) {
	if kind != entity.KindYouTube {
		return false, fmt.Errorf("no existence check for kind %q", kind)
	}

	q := url.Values{}
	q.Set("url", YouTubeWatchURL(ref))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build oembed request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("oembed request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("oembed returned status %d", resp.StatusCode)
	}
}
