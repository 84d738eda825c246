package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tiffinstash/ops-front/internal/shopify"
)

// csvColumns is the column set the downstream routing sheets expect.
// Order matters; the sheet formulas reference columns by position.
var csvColumns = []string{
	"ORDER ID",
	"DATE",
	"NAME",
	"Shipping address phone numeric",
	"phone_edit",
	"EMAIL",
	"HOUSE UNIT NO",
	"ADDRESS LINE 1",
	"Select Delivery City",
	"Shipping address city",
	"ZIP",
	"SKU",
	"Delivery Instructions (for drivers)",
	"Order Instructions (for sellers)",
	"Delivery Time",
	"Dinner Delivery",
	"Lunch Delivery",
	"Lunch Delivery Time",
	"Lunch Time",
	"Delivery between",
	"deliverytime_edit",
	"QUANTITY",
	"Select Start Date",
	"Delivery city",
}

// clean substitutes "0" for missing values. The routing sheets treat 0
// as "not provided" and break on empty cells.
func clean(val string) string {
	if val == "" {
		return "0"
	}
	return val
}

// WriteCSV writes orders as CSV, one row per line item.
func WriteCSV(w io.Writer, orders []shopify.Order) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, order := range orders {
		for _, item := range order.LineItems {
			if err := cw.Write(orderRow(order, item)); err != nil {
				return fmt.Errorf("writing csv row: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// orderRow flattens one order line item into a CSV row in csvColumns order
func orderRow(order shopify.Order, item shopify.LineItem) []string {
	var phone, address1, address2, city, zip string
	if shipping := order.ShippingAddress; shipping != nil {
		phone = shipping.Phone
		address1 = shipping.Address1
		address2 = shipping.Address2
		city = shipping.City
		zip = shipping.Zip
	}
	globo := item.CustomAttributes

	return []string{
		clean(order.ID),
		clean(order.CreatedAt),
		clean(order.Name),
		clean(phone),
		clean(phone),
		clean(order.Email),
		clean(address2),
		clean(address1),
		clean(globo["Select Delivery City"]),
		clean(city),
		clean(zip),
		clean(item.SKU),
		clean(globo["Delivery Instructions (for drivers)"]),
		clean(order.Note),
		clean(globo["Delivery Time"]),
		clean(globo["Dinner Delivery"]),
		clean(globo["Lunch Delivery"]),
		clean(globo["Lunch Delivery Time"]),
		clean(globo["Lunch Time"]),
		clean(globo["Delivery between"]),
		clean(globo["deliverytime_edit"]),
		clean(strconv.Itoa(item.Quantity)),
		clean(globo["Select Start Date"]),
		clean(globo["Delivery city"]),
	}
}
