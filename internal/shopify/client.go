package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tiffinstash/ops-front/internal/config"
	"github.com/tiffinstash/ops-front/internal/log"
)

// pageDelay spaces out paginated requests to stay under Shopify's API
// cost budget.
const pageDelay = 500 * time.Millisecond

// Client fetches orders from the Shopify admin GraphQL API. Returns nil
// from NewClient when no credential path is configured, which callers
// treat as "order export disabled".
type Client struct {
	cfg        config.ShopifyConfig
	tokens     *TokenSource
	httpClient *http.Client
	pageDelay  time.Duration
}

// NewClient creates an order export client, or nil when unconfigured
func NewClient(cfg config.ShopifyConfig) *Client {
	if !cfg.Configured() {
		return nil
	}
	return &Client{
		cfg:        cfg,
		tokens:     NewTokenSource(cfg),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageDelay:  pageDelay,
	}
}

// DateFilter builds the orders search query for a date range. Dates are
// YYYY-MM-DD; each bound lands at 21:00 in the shop timezone because the
// kitchen's order cutoff for a delivery day is 9 pm the evening before.
func (c *Client) DateFilter(startDate, endDate string) (string, error) {
	loc, err := time.LoadLocation(c.cfg.Timezone)
	if err != nil {
		return "", fmt.Errorf("loading timezone %s: %w", c.cfg.Timezone, err)
	}

	start, err := time.ParseInLocation("2006-01-02", startDate, loc)
	if err != nil {
		return "", fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.ParseInLocation("2006-01-02", endDate, loc)
	if err != nil {
		return "", fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	// Wall-clock 21:00, not midnight plus 21 hours: they differ on DST
	// transition days.
	startCutoff := time.Date(start.Year(), start.Month(), start.Day(), 21, 0, 0, 0, loc)
	endCutoff := time.Date(end.Year(), end.Month(), end.Day(), 21, 0, 0, 0, loc)

	return fmt.Sprintf("created_at:>='%s' AND created_at:<='%s'",
		startCutoff.Format(time.RFC3339), endCutoff.Format(time.RFC3339)), nil
}

// FetchOrders retrieves all orders matching the date range, following
// cursor pagination until the last page.
func (c *Client) FetchOrders(ctx context.Context, startDate, endDate string) ([]Order, error) {
	filter, err := c.DateFilter(startDate, endDate)
	if err != nil {
		return nil, err
	}

	var orders []Order
	var cursor string

	for {
		page, err := c.fetchPage(ctx, filter, cursor)
		if err != nil {
			return nil, err
		}

		for _, edge := range page.Data.Orders.Edges {
			orders = append(orders, edge.Node.toOrder())
		}

		if !page.Data.Orders.PageInfo.HasNextPage {
			break
		}
		cursor = page.Data.Orders.PageInfo.EndCursor

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pageDelay):
		}
	}

	log.LogInfoWithFields("shopify", "Fetched orders", map[string]any{
		"count":      len(orders),
		"start_date": startDate,
		"end_date":   endDate,
	})
	return orders, nil
}

func (c *Client) fetchPage(ctx context.Context, filter, cursor string) (*ordersResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving access token: %w", err)
	}

	variables := map[string]any{"query": filter}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	body, err := json.Marshal(graphqlRequest{Query: ordersQuery, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encoding graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GraphQLURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling shopify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("shopify returned status %d", resp.StatusCode)
	}

	var page ordersResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding orders response: %w", err)
	}
	if len(page.Errors) > 0 {
		return nil, fmt.Errorf("shopify graphql error: %s", page.Errors[0].Message)
	}
	return &page, nil
}
