package shopify

// ordersQuery pages through orders newest-last. Page sizes are fixed:
// 50 orders per page, 20 line items per order (tiffin subscriptions
// never come close to 20 lines).
const ordersQuery = `
query ($cursor: String, $query: String) {
  orders(first: 50, after: $cursor, query: $query) {
    edges {
      node {
        id
        name
        createdAt
        email
        note
        customer {
          displayName
        }
        shippingAddress {
          phone
          address1
          address2
          city
          zip
        }
        lineItems(first: 20) {
          edges {
            node {
              title
              sku
              quantity
              customAttributes {
                key
                value
              }
            }
          }
        }
      }
    }
    pageInfo {
      hasNextPage
      endCursor
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type ordersResponse struct {
	Data struct {
		Orders struct {
			Edges []struct {
				Node orderNode `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"orders"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type orderNode struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	Email     string `json:"email"`
	Note      string `json:"note"`
	Customer  *struct {
		DisplayName string `json:"displayName"`
	} `json:"customer"`
	ShippingAddress *ShippingAddress `json:"shippingAddress"`
	LineItems       struct {
		Edges []struct {
			Node struct {
				Title            string `json:"title"`
				SKU              string `json:"sku"`
				Quantity         int    `json:"quantity"`
				CustomAttributes []struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"customAttributes"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
}

// toOrder flattens a GraphQL order node into the export model
func (n orderNode) toOrder() Order {
	order := Order{
		ID:              n.ID,
		Name:            n.Name,
		CreatedAt:       n.CreatedAt,
		Email:           n.Email,
		Note:            n.Note,
		ShippingAddress: n.ShippingAddress,
	}
	if n.Customer != nil {
		order.CustomerName = n.Customer.DisplayName
	}

	for _, edge := range n.LineItems.Edges {
		item := edge.Node
		attrs := make(map[string]string, len(item.CustomAttributes))
		for _, attr := range item.CustomAttributes {
			attrs[attr.Key] = attr.Value
		}
		order.LineItems = append(order.LineItems, LineItem{
			Title:            item.Title,
			SKU:              item.SKU,
			Quantity:         item.Quantity,
			CustomAttributes: attrs,
		})
	}
	return order
}
