package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiffinstash/ops-front/internal/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.ShopifyConfig{
		ShopURL:     server.URL,
		APIVersion:  "2026-01",
		AccessToken: "shpat_static",
		Timezone:    "US/Eastern",
	}
	c := NewClient(cfg)
	require.NotNil(t, c)
	c.pageDelay = time.Millisecond
	return c
}

func orderPage(ids []string, hasNext bool, endCursor string) map[string]any {
	edges := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, map[string]any{
			"node": map[string]any{
				"id":        id,
				"name":      "#" + id,
				"createdAt": "2026-08-20T14:00:00Z",
				"email":     "customer@example.com",
				"customer":  map[string]any{"displayName": "Pat Customer"},
				"shippingAddress": map[string]any{
					"phone":    "4165550100",
					"address1": "1 Main St",
					"city":     "Toronto",
					"zip":      "M5V 1A1",
				},
				"lineItems": map[string]any{
					"edges": []map[string]any{
						{"node": map[string]any{
							"title":    "Weekly Tiffin",
							"sku":      "TIFFIN-WK",
							"quantity": 2,
							"customAttributes": []map[string]any{
								{"key": "Delivery Time", "value": "Dinner"},
							},
						}},
					},
				},
			},
		})
	}
	return map[string]any{
		"data": map[string]any{
			"orders": map[string]any{
				"edges": edges,
				"pageInfo": map[string]any{
					"hasNextPage": hasNext,
					"endCursor":   endCursor,
				},
			},
		},
	}
}

func TestNewClientUnconfigured(t *testing.T) {
	assert.Nil(t, NewClient(config.ShopifyConfig{}))
	assert.Nil(t, NewClient(config.ShopifyConfig{ShopURL: "https://shop.example.com"}))
}

func TestDateFilter(t *testing.T) {
	c := &Client{cfg: config.ShopifyConfig{Timezone: "US/Eastern"}}

	filter, err := c.DateFilter("2026-08-10", "2026-08-12")
	require.NoError(t, err)

	// Bounds land at 21:00 Eastern (EDT in August)
	assert.Equal(t,
		"created_at:>='2026-08-10T21:00:00-04:00' AND created_at:<='2026-08-12T21:00:00-04:00'",
		filter)
}

func TestDateFilterDSTTransitions(t *testing.T) {
	c := &Client{cfg: config.ShopifyConfig{Timezone: "US/Eastern"}}

	// Spring forward (2026-03-08): the day is 23 hours long, but the
	// cutoff is still 21:00 wall clock, now in EDT
	filter, err := c.DateFilter("2026-03-08", "2026-03-08")
	require.NoError(t, err)
	assert.Equal(t,
		"created_at:>='2026-03-08T21:00:00-04:00' AND created_at:<='2026-03-08T21:00:00-04:00'",
		filter)

	// Fall back (2026-11-01): 25-hour day, cutoff at 21:00 EST
	filter, err = c.DateFilter("2026-11-01", "2026-11-01")
	require.NoError(t, err)
	assert.Equal(t,
		"created_at:>='2026-11-01T21:00:00-05:00' AND created_at:<='2026-11-01T21:00:00-05:00'",
		filter)
}

func TestDateFilterRejectsBadInput(t *testing.T) {
	c := &Client{cfg: config.ShopifyConfig{Timezone: "US/Eastern"}}

	_, err := c.DateFilter("10/08/2026", "2026-08-12")
	assert.Error(t, err)
	_, err = c.DateFilter("2026-08-10", "not-a-date")
	assert.Error(t, err)

	c = &Client{cfg: config.ShopifyConfig{Timezone: "Mars/Olympus"}}
	_, err = c.DateFilter("2026-08-10", "2026-08-12")
	assert.Error(t, err)
}

func TestFetchOrdersPaginates(t *testing.T) {
	var requests []graphqlRequest

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2026-01/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_static", r.Header.Get("X-Shopify-Access-Token"))

		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		var page map[string]any
		if req.Variables["cursor"] == nil {
			page = orderPage([]string{"gid://shopify/Order/1", "gid://shopify/Order/2"}, true, "cursor-a")
		} else {
			page = orderPage([]string{"gid://shopify/Order/3"}, false, "")
		}
		_ = json.NewEncoder(w).Encode(page)
	}))

	orders, err := c.FetchOrders(context.Background(), "2026-08-10", "2026-08-11")
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, "gid://shopify/Order/1", orders[0].ID)
	assert.Equal(t, "Pat Customer", orders[0].CustomerName)
	require.Len(t, orders[0].LineItems, 1)
	assert.Equal(t, "TIFFIN-WK", orders[0].LineItems[0].SKU)
	assert.Equal(t, "Dinner", orders[0].LineItems[0].CustomAttributes["Delivery Time"])

	// Second request carries the cursor from the first page
	require.Len(t, requests, 2)
	assert.Nil(t, requests[0].Variables["cursor"])
	assert.Equal(t, "cursor-a", requests[1].Variables["cursor"])
	assert.Contains(t, requests[0].Variables["query"], "created_at:>=")
}

func TestFetchOrdersGraphQLError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{"message": "Throttled"}},
		})
	}))

	_, err := c.FetchOrders(context.Background(), "2026-08-10", "2026-08-11")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Throttled")
}

func TestFetchOrdersHTTPError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))

	_, err := c.FetchOrders(context.Background(), "2026-08-10", "2026-08-11")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchOrdersContextCancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Endless pagination; cancellation is the only way out
		_ = json.NewEncoder(w).Encode(orderPage([]string{fmt.Sprintf("gid://shopify/Order/%d", time.Now().UnixNano())}, true, "next"))
		cancel()
	}))
	c.pageDelay = time.Minute

	_, err := c.FetchOrders(ctx, "2026-08-10", "2026-08-11")
	assert.ErrorIs(t, err, context.Canceled)
}
