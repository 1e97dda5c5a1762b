package video

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recipe-ingest-service/internal/apperr"
)

// TranscriptClient fetches caption text from a transcript service exposing
// GET {base}/transcripts/{videoID}.
type TranscriptClient struct {
	baseURL string
	client  *http.Client
}

func NewTranscriptClient(baseURL string, timeout time.Duration) *TranscriptClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TranscriptClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type transcriptResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

// ExtractText returns the transcript of a video. Failures are classified:
// ContentUnextractable when the video has no usable text, UpstreamUnavailable
// for everything else.
func (c *TranscriptClient) ExtractText(ctx context.Context, ref string) (string, error) {
	endpoint := c.baseURL + "/transcripts/" + url.PathEscape(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamUnavailable, "transcript request failed", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.UpstreamUnavailable, "transcript service unreachable", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", apperr.Newf(apperr.UpstreamUnavailable, "video %s not available", ref)
	case http.StatusUnprocessableEntity:
		return "", apperr.Newf(apperr.ContentUnextractable, "video %s has no transcript", ref)
	default:
		return "", apperr.Newf(apperr.UpstreamUnavailable, "transcript service returned status %d", resp.StatusCode)
	}

	var body transcriptResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&body); err != nil {
		return "", apperr.Wrap(apperr.UpstreamUnavailable, "transcript response unreadable", err)
	}

	text := strings.TrimSpace(body.Text)
	if text == "" && len(body.Segments) > 0 {
		parts := make([]string, 0, len(body.Segments))
		for _, s := range body.Segments {
			if t := strings.TrimSpace(s.Text); t != "" {
				parts = append(parts, t)
			}
		}
		text = strings.Join(parts, " ")
	}
	if text == "" {
		return "", apperr.Newf(apperr.ContentUnextractable, "video %s transcript is empty", ref)
	}
	return text, nil
}
