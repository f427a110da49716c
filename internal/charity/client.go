package charity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Nonprofit is one charity record as returned by the partners search API.
type Nonprofit struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Website     string `json:"website"`
	LogoURL     string `json:"logoUrl,omitempty"`
	EIN         string `json:"ein,omitempty"`
	Slug        string `json:"slug,omitempty"`
}

type searchResponse struct {
	Nonprofits []Nonprofit `json:"nonprofits"`
}

// Client is a read-only client for the charity search API. No retry,
// pagination, or rate-limit handling; callers get whatever one request
// returns.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Search returns the nonprofits matching a category or free-text cause.
func (c *Client) Search(ctx context.Context, category string) ([]Nonprofit, error) {
	endpoint := fmt.Sprintf("%s/search/%s?apiKey=%s", c.baseURL, url.PathEscape(category), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("search error %d: %s", resp.StatusCode, string(data))
	}

	var result searchResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Nonprofits, nil
}

// Filter returns the nonprofits whose name contains query,
// case-insensitively. An empty query returns the input unchanged.
func Filter(nonprofits []Nonprofit, query string) []Nonprofit {
	if query == "" {
		return nonprofits
	}
	query = strings.ToLower(query)
	filtered := make([]Nonprofit, 0, len(nonprofits))
	for _, n := range nonprofits {
		if strings.Contains(strings.ToLower(n.Name), query) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}
