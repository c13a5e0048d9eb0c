// Package epay talks to the epay mobile money gateway. Both operators are
// served by the same host with an x-api-key header and form encoded bodies.
package epay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/covera/internal/config"
	"github.com/smallbiznis/covera/internal/payment/domain"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.Config) *Client {
	timeout := cfg.Epay.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Epay.BaseURL, "/"),
		apiKey:  cfg.Epay.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, fallbackRef string) (domain.CollectionResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.CollectionResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CollectionResponse{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.CollectionResponse{}, fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.CollectionResponse{}, fmt.Errorf("%w: http %d: %s", domain.ErrGatewayRejected, resp.StatusCode, truncate(string(body), 200))
	}

	var out domain.CollectionResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return domain.CollectionResponse{}, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayRejected, err)
		}
	}
	if out.Status == "" {
		out.Status = "unknown"
	}
	if out.TransactionReference == "" {
		out.TransactionReference = fallbackRef
	}
	if out.Message == "" {
		out.Message = "Paiement initié"
	}
	return out, nil
}

func validate(req domain.CollectionRequest) error {
	if req.Amount <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidAmount, req.Amount)
	}
	if strings.TrimSpace(req.Phone) == "" {
		return fmt.Errorf("%w: empty", domain.ErrInvalidPhone)
	}
	if strings.TrimSpace(req.Reference) == "" {
		return errors.New("missing reference")
	}
	return nil
}

func amount(v int64) string {
	return strconv.FormatInt(v, 10)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
