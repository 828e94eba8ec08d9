// Package chain is the read-only boundary to external contracts. Protocol
// adapters use it for balance and APY lookups; it never mutates anything.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astrobalance/vaultgate/internal/pkg/apperrors"
)

// Client queries external contracts through a REST gateway.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SmartQuery posts req as JSON to the contract's smart-query endpoint and
// decodes the response into resp.
func (c *Client) SmartQuery(ctx context.Context, contract string, req any, resp any) error {
	if c.baseURL == "" {
		return apperrors.New(apperrors.ErrUpstream, "chain rest endpoint not configured", nil)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return apperrors.New(apperrors.ErrUpstream, "encode smart query", err)
	}

	url := fmt.Sprintf("%s/contracts/%s/smart", c.baseURL, contract)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.New(apperrors.ErrUpstream, "build smart query request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return apperrors.New(apperrors.ErrUpstream, "smart query failed", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return apperrors.New(apperrors.ErrUpstream,
			fmt.Sprintf("smart query %s returned %d: %s", contract, httpResp.StatusCode, string(raw)), nil)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return apperrors.New(apperrors.ErrUpstream, "decode smart query response", err)
	}
	return nil
}
