package shopify

// ShippingAddress is the subset of the order's shipping address the
// export needs.
type ShippingAddress struct {
	Phone    string `json:"phone"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
}

// LineItem is a single purchasable line on an order. CustomAttributes
// carries the Globo product-option fields (delivery city, delivery time,
// start date) keyed by their storefront labels.
type LineItem struct {
	Title            string            `json:"title"`
	SKU              string            `json:"sku"`
	Quantity         int               `json:"quantity"`
	CustomAttributes map[string]string `json:"custom_attributes"`
}

// Order is a Shopify order flattened out of its GraphQL shape.
type Order struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	CustomerName    string           `json:"customer_name"`
	CreatedAt       string           `json:"created_at"`
	Email           string           `json:"email"`
	Note            string           `json:"note"`
	ShippingAddress *ShippingAddress `json:"shipping_address"`
	LineItems       []LineItem       `json:"line_items"`
}
