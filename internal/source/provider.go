package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/praevisio/vigilance/internal/domain/entity"
	"github.com/praevisio/vigilance/pkg/fetch"
)

// HTTPClient allows injecting fake transports in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider is implemented once per external data source.
// Fetch performs exactly one network call and never retries.
type Provider interface {
	Domain() entity.Domain
	Fetch(ctx context.Context) (any, error)
	Fallback(ctx context.Context) any
}

const maxBodySize = 8 << 20

func getJSON(ctx context.Context, client HTTPClient, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetch.NewErrMalformedResponse(fmt.Errorf("failed to build request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "praevisio-vigilance")

	resp, err := client.Do(req)
	if err != nil {
		return fetch.NewErrTransientSource(fmt.Errorf("failed to call %s: %w", url, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return fetch.NewErrTransientSource(fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	case resp.StatusCode >= http.StatusBadRequest:
		return fetch.NewErrMalformedResponse(fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fetch.NewErrTransientSource(fmt.Errorf("failed to read body from %s: %w", url, err))
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fetch.NewErrMalformedResponse(fmt.Errorf("failed to unmarshal body from %s: %w", url, err))
	}

	return nil
}
