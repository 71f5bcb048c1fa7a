package bluelytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultURL is the public latest-quotes endpoint.
const DefaultURL = "https://api.bluelytics.com.ar/v2/latest"

// Client fetches the blue-market USD sell quote.
type Client struct {
	url    string
	client *http.Client
}

// NewClient constructs a client. An empty url selects DefaultURL.
func NewClient(url string, timeout time.Duration) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultURL
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, errors.New("bluelytics: invalid url")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{url: url, client: &http.Client{Timeout: timeout}}, nil
}

type quote struct {
	ValueAvg  json.Number `json:"value_avg"`
	ValueSell json.Number `json:"value_sell"`
	ValueBuy  json.Number `json:"value_buy"`
}

type latestResponse struct {
	Oficial quote `json:"oficial"`
	Blue    quote `json:"blue"`
}

// Fetch returns blue.value_sell.
func (c *Client) Fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decimal.Zero, fmt.Errorf("bluelytics: http %d", resp.StatusCode)
	}
	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("bluelytics: decode: %w", err)
	}
	if payload.Blue.ValueSell == "" {
		return decimal.Zero, errors.New("bluelytics: missing blue.value_sell")
	}
	value, err := decimal.NewFromString(payload.Blue.ValueSell.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("bluelytics: parse value_sell: %w", err)
	}
	return value, nil
}
