// Package polygonscan is a thin client for the Polygonscan block-explorer
// API, used to pull the complete ERC-20 transfer history of a market's AMM
// address.
package polygonscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chainedmetrics/kpimarkets/internal/domain"
)

// Client queries the Polygonscan "account/tokentx" endpoint.
type Client struct {
	baseURL      string
	apiKey       string
	maxRetries   int
	retryBackoff time.Duration
	httpClient   *http.Client
}

// NewClient creates a Polygonscan client.
//
// baseURL is the explorer API root, e.g. "https://api.polygonscan.com/api".
func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int, retryBackoff time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       strings.TrimSpace(apiKey),
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// apiResponse is the explorer's standard response envelope. Status is "1" on
// success and "0" on failure; an empty result set also reports "0" with the
// message "No transactions found".
type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// rawTransfer mirrors one entry of the tokentx result array. Numeric fields
// arrive as decimal strings.
type rawTransfer struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	ContractAddress string `json:"contractAddress"`
	Value           string `json:"value"`
}

// TokenTransfers returns every ERC-20 transfer touching the given address in
// ascending time order, as reported by the explorer. The explorer keeps all
// events of one transaction adjacent in this ordering, which downstream
// grouping relies on.
func (c *Client) TokenTransfers(ctx context.Context, address string) ([]domain.TransferEvent, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", address)
	q.Set("startblock", "0")
	q.Set("endblock", "99999999")
	q.Set("sort", "asc")
	q.Set("apikey", c.apiKey)

	body, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("polygonscan: fetch token transfers: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("polygonscan: decode response: %w", err)
	}

	if resp.Status != "1" {
		// An address with no history is not an error.
		if strings.Contains(resp.Message, "No transactions found") {
			return nil, nil
		}
		return nil, fmt.Errorf("polygonscan: api error: %s: %w", resp.Message, domain.ErrUpstreamUnavailable)
	}

	var raw []rawTransfer
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("polygonscan: decode result: %w", err)
	}

	events := make([]domain.TransferEvent, 0, len(raw))
	for _, r := range raw {
		ts, err := strconv.ParseInt(r.TimeStamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("polygonscan: bad timestamp %q in tx %s: %w", r.TimeStamp, r.Hash, err)
		}
		// Token values are base units of up-to-18-decimal tokens and
		// routinely exceed int64, so parse with arbitrary precision.
		value, ok := new(big.Int).SetString(r.Value, 10)
		if !ok {
			return nil, fmt.Errorf("polygonscan: bad value %q in tx %s", r.Value, r.Hash)
		}

		events = append(events, domain.TransferEvent{
			TxHash:          strings.ToLower(r.Hash),
			From:            strings.ToLower(r.From),
			To:              strings.ToLower(r.To),
			ContractAddress: strings.ToLower(r.ContractAddress),
			Value:           value,
			Timestamp:       ts,
		})
	}

	return events, nil
}

// get issues a GET with retries on transport errors and 5xx responses.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryBackoff * time.Duration(attempt)):
			}
		}

		body, retryable, err := c.getOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, lastErr)
}

func (c *Client) getOnce(ctx context.Context, rawURL string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, false, nil
}
