// Package source fetches project file contents as tarballs, used once per
// container creation to seed the workspace mount.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxTarballBytes caps the archive size accepted from the provider.
const maxTarballBytes = 256 * 1024 * 1024

type Client struct {
	http    *http.Client
	baseURL string
}

func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 2 * time.Minute},
		baseURL: baseURL,
	}
}

// FetchTarball downloads the project archive for owner/repo using the
// caller's pre-validated access token.
func (c *Client) FetchTarball(ctx context.Context, token, owner, repo string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/tarball", c.baseURL, owner, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("tarball request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/x-tar")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tarball: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch tarball: provider returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTarballBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read tarball: %w", err)
	}
	if len(data) > maxTarballBytes {
		return nil, fmt.Errorf("tarball exceeds %d bytes", maxTarballBytes)
	}

	return data, nil
}
