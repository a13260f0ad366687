package compute

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ProbeReady polls url until it answers with a non-5xx status, backing off
// exponentially, for at most maxWait.
func ProbeReady(ctx context.Context, client *http.Client, url string, maxWait time.Duration) error {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 20 * time.Second
	b.MaxElapsedTime = maxWait
	return probe(ctx, client, url, b)
}

func probe(ctx context.Context, client *http.Client, url string, b backoff.BackOff) error {
	attempts := 0
	op := func() error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("readiness probe returned %d", resp.StatusCode)
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("instance not ready at %s after %d attempts: %w", url, attempts, err)
	}
	return nil
}
