package networking

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/terravista/authkit/pkg/logger"
)

// maxAttempts bounds retries against rate-limited auth server endpoints.
const maxAttempts = 3

// errRateLimited marks a 429 response so the retry policy can tell it apart
// from terminal failures.
var errRateLimited = errors.New("rate limited by auth server")

// RetryingClient wraps an HTTPClient and retries requests that are answered
// with HTTP 429, up to maxAttempts total attempts with exponential backoff.
// All other statuses and transport errors are returned as-is on the first
// attempt. Requests with a body must carry GetBody so the body can be
// replayed.
type RetryingClient struct {
	client          HTTPClient
	initialInterval time.Duration
}

// NewRetryingClient returns a RetryingClient over the given client.
// If client is nil, a default client is built.
func NewRetryingClient(client HTTPClient) *RetryingClient {
	if client == nil {
		client, _ = NewHttpClientBuilder().Build()
	}
	return &RetryingClient{
		client:          client,
		initialInterval: 500 * time.Millisecond,
	}
}

// Do sends the request, retrying on HTTP 429.
func (c *RetryingClient) Do(req *http.Request) (*http.Response, error) {
	attempt := 0
	operation := func() (*http.Response, error) {
		attempt++
		r := req
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(fmt.Errorf("failed to rewind request body: %w", err))
			}
			r = req.Clone(req.Context())
			r.Body = body
		}

		resp, err := c.client.Do(r)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			logger.Debugw("auth server rate limited request, backing off",
				"url", req.URL.String(), "attempt", attempt)
			return nil, errRateLimited
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval

	resp, err := backoff.Retry(req.Context(), operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		if errors.Is(err, errRateLimited) {
			return nil, fmt.Errorf("%s: HTTP %d after %d attempts: %w",
				req.URL.String(), http.StatusTooManyRequests, attempt, err)
		}
		return nil, err
	}
	return resp, nil
}
