package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"
)

const userAgent = "pwnedmirror/1.0 (+https://github.com/calvinalkan/pwnedmirror)"

// retryDelays is the bounded retry schedule applied after a transient
// failure: immediate, immediate, then one longer backoff before giving up.
var retryDelays = []time.Duration{0, 0, 30 * time.Second}

// Upstream fetches prefix ranges from the Have-I-Been-Pwned-compatible
// range endpoint over HTTPS, using the system trust store.
type Upstream struct {
	baseURL string
	client  *http.Client
}

// NewUpstream creates an Upstream client against baseURL (e.g.
// "https://api.pwnedpasswords.com/range").
func NewUpstream(baseURL string) *Upstream {
	return &Upstream{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

func (u *Upstream) GetRange(ctx context.Context, prefix string) (string, error) {
	var lastErr error

	attempts := append([]time.Duration{0}, retryDelays...)

	for i, delay := range attempts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		text, err := u.fetchOnce(ctx, prefix)
		if err == nil {
			return text, nil
		}

		lastErr = err
	}

	return "", fmt.Errorf("%w: prefix %s: %w", ErrUnavailable, prefix, lastErr)
}

func (u *Upstream) fetchOnce(ctx context.Context, prefix string) (string, error) {
	url := u.baseURL + "/" + prefix

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response body: %w", err)
	}

	return normalizeLineEndings(string(body)), nil
}

var _ Provider = (*Upstream)(nil)
