package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// AssetInfos calls GET {apiBase}model/assetInfos.
func (c *Client) AssetInfos(ctx context.Context) ([]json.RawMessage, error) {
	var infos []json.RawMessage
	if err := c.getJSON(ctx, c.APIBaseURL()+"model/assetInfos", "", &infos); err != nil {
		return nil, err
	}
	return infos, nil
}

// MetaItemDescriptors calls GET {apiBase}model/metaItemDescriptors.
func (c *Client) MetaItemDescriptors(ctx context.Context) (map[string]json.RawMessage, error) {
	var descriptors map[string]json.RawMessage
	if err := c.getJSON(ctx, c.APIBaseURL()+"model/metaItemDescriptors", "", &descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// ValueDescriptors calls GET {apiBase}model/valueDescriptors.
func (c *Client) ValueDescriptors(ctx context.Context) (map[string]json.RawMessage, error) {
	var descriptors map[string]json.RawMessage
	if err := c.getJSON(ctx, c.APIBaseURL()+"model/valueDescriptors", "", &descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// ConsoleAppConfig fetches {managerURL}/consoleappconfig/{realm}.json.
func (c *Client) ConsoleAppConfig(ctx context.Context, realm string) (*ConsoleAppConfig, error) {
	url := c.managerURL + "/consoleappconfig/" + realm + ".json"

	resp, err := c.do(ctx, http.MethodGet, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: url}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config: %w", err)
	}

	var cfg ConsoleAppConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode app config: %w", err)
	}
	cfg.Raw = raw
	return &cfg, nil
}
