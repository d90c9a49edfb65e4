package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/config"
)

// EpicorClient issues authenticated calls to the ERP function library.
// Basic-Auth credentials and the API key never leave the server: clients only
// supply the business payload plus an env selector.
type EpicorClient struct {
	cfg        config.EpicorConfig
	basicAuth  string
	httpClient *http.Client
}

// NewEpicorClient creates a client for the configured ERP targets.
func NewEpicorClient(cfg config.EpicorConfig) *EpicorClient {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
	return &EpicorClient{
		cfg:       cfg,
		basicAuth: creds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Forward POSTs payload to the named function on the env-selected ERP base URL
// and returns the upstream status code and body verbatim. A transport failure
// (no HTTP response at all) is returned as an error with status 0.
func (c *EpicorClient) Forward(ctx context.Context, env, function string, payload interface{}) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	url := c.cfg.URLFor(env) + "/" + function
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.basicAuth)
	req.Header.Set("Company", c.cfg.Company)
	req.Header.Set("x-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("epicor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read epicor response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
