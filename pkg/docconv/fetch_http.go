package docconv

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// HTTPFetcher downloads documents over http and https.
type HTTPFetcher struct {
	client  *http.Client
	maxSize int64
}

func NewHTTPFetcher(client *http.Client, maxSize int64) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &HTTPFetcher{client: client, maxSize: maxSize}
}

func (h *HTTPFetcher) Supports(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

func (h *HTTPFetcher) Fetch(ctx context.Context, location string) (*Source, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to parse document url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to download %s", location)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download document %q, status code: %d", location, resp.StatusCode)
	}

	data, err := readLimited(resp.Body, location, h.maxSize)
	if err != nil {
		return nil, err
	}

	return &Source{
		Location:    location,
		Name:        nameFromURL(u),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *HTTPFetcher) Type() string {
	return "http"
}
