package deliveries

import (
	"errors"
	"time"
)

// Order status values. NULL status is treated as active for historical
// rows imported before the column existed.
const (
	StatusActive    = "ACTIVE"
	StatusPaused    = "PAUSED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

var (
	// ErrOrderNotFound is returned when no delivery row matches the
	// order id (and SKU, when given).
	ErrOrderNotFound = errors.New("order not found")

	// ErrSkipCapacityFull is returned when a subscription has used all
	// of its skip slots.
	ErrSkipCapacityFull = errors.New("skip capacity full for this order")

	// ErrRowChanged is returned when a master-data edit no longer
	// matches the row it was based on.
	ErrRowChanged = errors.New("row changed since it was loaded")
)

// Delivery is one deliverable line of a subscription order. An order
// with multiple SKUs has one row per SKU.
type Delivery struct {
	ID                 int64      `json:"id"`
	OrderID            string     `json:"order_id"`
	SKU                string     `json:"sku"`
	OrderDate          *time.Time `json:"order_date"`
	CustomerName       string     `json:"customer_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	HouseUnit          string     `json:"house_unit"`
	Address1           string     `json:"address1"`
	DeliveryCity       string     `json:"delivery_city"`
	City               string     `json:"city"`
	Zip                string     `json:"zip"`
	Seller             string     `json:"seller"`
	MealType           string     `json:"meal_type"`
	DeliveryTime       string     `json:"delivery_time"`
	Quantity           int        `json:"quantity"`
	DriverInstructions string     `json:"driver_instructions"`
	SellerInstructions string     `json:"seller_instructions"`
	TSNotes            string     `json:"ts_notes"`
	Status             *string    `json:"status"`
	Skips              []string   `json:"skips"`
	SkipCap            int        `json:"skip_cap"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SkipRequest marks one delivery date as skipped for an order line.
// SKU is optional; without it the first matching order row is used.
type SkipRequest struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku,omitempty"`
	SkipDate string `json:"skip_date"`
}

// OrderUpdate carries the team-lead edits for an order line. Nil fields
// are left untouched.
type OrderUpdate struct {
	OrderID      string  `json:"order_id"`
	SKU          string  `json:"sku,omitempty"`
	TSNotes      *string `json:"ts_notes"`
	DeliveryTime *string `json:"delivery_time"`
	MealType     *string `json:"meal_type"`
	Status       *string `json:"status"`
}

// MasterRowUpdate is an optimistic edit against the master table: the
// original values act as the row fingerprint and the update only lands
// if the row still matches them.
type MasterRowUpdate struct {
	OrderID  string            `json:"order_id"`
	SKU      string            `json:"sku,omitempty"`
	Original map[string]string `json:"original_row"`
	Updates  map[string]string `json:"updates"`
}

// UploadStats summarizes a bulk master-data upload
type UploadStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// SellerSummary is the per-seller rollup shown on the seller dashboard
type SellerSummary struct {
	Seller   string `json:"seller"`
	MealType string `json:"meal_type"`
	Orders   int    `json:"orders"`
	Quantity int    `json:"quantity"`
}
