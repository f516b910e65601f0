package censor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const timeout = 5 * time.Second

// Remote asks a censorship service whether a text is acceptable. The service
// answers POST /check with 200 for clean text and 422 for banned text.
type Remote struct {
	url    string
	client *http.Client
}

func NewRemote(serviceURL string) *Remote {
	return &Remote{
		url:    strings.TrimRight(serviceURL, "/") + "/check",
		client: &http.Client{Timeout: timeout},
	}
}

type checkRequest struct {
	Text string `json:"text"`
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx whose id is forwarded to the service
// in the X-Request-Id header.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func (c *Remote) Banned(ctx context.Context, text string) (bool, error) {
	b, err := json.Marshal(checkRequest{Text: text})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return false, fmt.Errorf("error creating request to censorship service: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("error calling censorship service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return false, nil
	case http.StatusUnprocessableEntity:
		return true, nil
	default:
		return false, fmt.Errorf("censorship service returned status %d", resp.StatusCode)
	}
}
