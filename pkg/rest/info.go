package rest

import (
	"context"
	"fmt"
	"net/http"
)

// ManagerInfo is the payload of the versioned info endpoint.
type ManagerInfo struct {
	Version       string `json:"version"`
	AuthServerURL string `json:"authServerUrl"`
}

// FetchInfo probes {managerURL}/api/master/info. Missing fields decode as empty strings.
func (c *Client) FetchInfo(ctx context.Context) (*ManagerInfo, error) {
	infoURL := c.managerURL + "/api/master/info"

	var info ManagerInfo
	if err := c.getJSON(ctx, infoURL, "", &info); err != nil {
		return nil, fmt.Errorf("failed to contact the manager: %w", err)
	}
	return &info, nil
}

// Reachable performs a HEAD request against url. Any HTTP response counts as reachable;
// only transport failures (DNS, refused, timeout) are reported. The request bypasses the
// auth interceptor, so session credentials never reach third-party health endpoints.
func (c *Client) Reachable(ctx context.Context, url string) error {
	resp, err := c.send(ctx, c.bare, http.MethodHead, url, "")
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
