package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tiffinstash/ops-front/internal/log"
)

// editableColumns is the allowlist for free-form master-data edits.
// Keys are the JSON field names, which match the column names; anything
// else in an update payload is ignored rather than interpolated.
var editableColumns = map[string]bool{
	"order_date":          true,
	"customer_name":       true,
	"email":               true,
	"phone":               true,
	"house_unit":          true,
	"address1":            true,
	"delivery_city":       true,
	"city":                true,
	"zip":                 true,
	"seller":              true,
	"meal_type":           true,
	"delivery_time":       true,
	"quantity":            true,
	"driver_instructions": true,
	"seller_instructions": true,
	"ts_notes":            true,
	"status":              true,
}

const deliveryColumns = `id, order_id, sku, order_date, customer_name, email, phone,
	house_unit, address1, delivery_city, city, zip, seller, meal_type, delivery_time,
	quantity, driver_instructions, seller_instructions, ts_notes, status, skips,
	skip_cap, created_at, updated_at`

// defaultListLimit caps the deliveries page query
const defaultListLimit = 1000

// Store manages delivery rows in Postgres.
type Store struct {
	db DB
}

// NewStore creates a delivery store
func NewStore(db DB) *Store {
	return &Store{db: db}
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.OrderID, &d.SKU, &d.OrderDate, &d.CustomerName, &d.Email,
		&d.Phone, &d.HouseUnit, &d.Address1, &d.DeliveryCity, &d.City, &d.Zip,
		&d.Seller, &d.MealType, &d.DeliveryTime, &d.Quantity, &d.DriverInstructions,
		&d.SellerInstructions, &d.TSNotes, &d.Status, &d.Skips, &d.SkipCap,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// List returns delivery rows ordered by order id. limit <= 0 applies the
// default cap.
func (s *Store) List(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_orders ORDER BY order_id, sku LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

// GetOrder returns all line rows for an order
func (s *Store) GetOrder(ctx context.Context, orderID string) ([]Delivery, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_orders WHERE order_id = $1 ORDER BY sku`, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	defer rows.Close()

	deliveries, err := collectDeliveries(rows)
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, ErrOrderNotFound
	}
	return deliveries, nil
}

// SkipOrder consumes one skip slot for an order line and records the
// skipped date. Returns the slot number used (1-based).
func (s *Store) SkipOrder(ctx context.Context, req SkipRequest) (int, error) {
	query := `UPDATE delivery_orders
		SET skips = array_append(skips, $2), updated_at = now()
		WHERE id = (
			SELECT id FROM delivery_orders
			WHERE order_id = $1 AND cardinality(skips) < skip_cap`
	args := []any{req.OrderID, req.SkipDate}
	if req.SKU != "" {
		query += ` AND sku = $3`
		args = append(args, req.SKU)
	}
	query += ` ORDER BY id LIMIT 1)
		RETURNING cardinality(skips)`

	var slot int
	err := s.db.QueryRow(ctx, query, args...).Scan(&slot)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing order from one with no slots left
		exists, existsErr := s.orderExists(ctx, req.OrderID, req.SKU)
		if existsErr != nil {
			return 0, existsErr
		}
		if !exists {
			return 0, ErrOrderNotFound
		}
		return 0, ErrSkipCapacityFull
	}
	if err != nil {
		return 0, fmt.Errorf("skip order %s: %w", req.OrderID, err)
	}

	log.LogInfoWithFields("deliveries", "Skip recorded", map[string]any{
		"order_id":  req.OrderID,
		"skip_date": req.SkipDate,
		"slot":      slot,
	})
	return slot, nil
}

func (s *Store) orderExists(ctx context.Context, orderID, sku string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM delivery_orders WHERE order_id = $1`
	args := []any{orderID}
	if sku != "" {
		query += ` AND sku = $2`
		args = append(args, sku)
	}
	query += `)`

	var exists bool
	if err := s.db.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order %s: %w", orderID, err)
	}
	return exists, nil
}

// UpdateOrder applies the team-lead edits to an order line. Nil fields
// are untouched; an update with no fields set is a no-op.
func (s *Store) UpdateOrder(ctx context.Context, update OrderUpdate) error {
	var setParts []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.TSNotes != nil {
		add("ts_notes", *update.TSNotes)
	}
	if update.DeliveryTime != nil {
		add("delivery_time", *update.DeliveryTime)
	}
	if update.MealType != nil {
		add("meal_type", *update.MealType)
	}
	if update.Status != nil {
		add("status", *update.Status)
	}
	if len(setParts) == 0 {
		return nil
	}

	args = append(args, update.OrderID)
	query := fmt.Sprintf(`UPDATE delivery_orders SET %s, updated_at = now() WHERE order_id = $%d`,
		strings.Join(setParts, ", "), len(args))
	if update.SKU != "" {
		args = append(args, update.SKU)
		query += fmt.Sprintf(` AND sku = $%d`, len(args))
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update order %s: %w", update.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ListMaster returns the editable master rows: everything not completed
// or cancelled. NULL status counts as active.
func (s *Store) ListMaster(ctx context.Context) ([]Delivery, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_orders
		WHERE status IN ($1, $2) OR status IS NULL
		ORDER BY order_id, sku`, StatusActive, StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("list master data: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

// UpdateMasterRow applies a free-form edit with optimistic concurrency:
// the WHERE clause matches every original value, so an edit based on
// stale data affects zero rows and fails with ErrRowChanged.
func (s *Store) UpdateMasterRow(ctx context.Context, update MasterRowUpdate) error {
	var setParts []string
	var args []any

	for column, raw := range update.Updates {
		if !editableColumns[column] {
			continue
		}
		value, err := columnValue(column, raw)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", column, err)
		}
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if len(setParts) == 0 {
		return nil
	}

	args = append(args, update.OrderID)
	whereParts := []string{fmt.Sprintf("order_id = $%d", len(args))}
	if update.SKU != "" {
		args = append(args, update.SKU)
		whereParts = append(whereParts, fmt.Sprintf("sku = $%d", len(args)))
	}

	// Fingerprint match on the values the client loaded. Text comparison
	// via coalesce keeps NULL and '' interchangeable, matching how the
	// grid presents them.
	for column, original := range update.Original {
		if !editableColumns[column] {
			continue
		}
		args = append(args, original)
		whereParts = append(whereParts, fmt.Sprintf("coalesce(%s::text, '') = $%d", column, len(args)))
	}

	query := fmt.Sprintf(`UPDATE delivery_orders SET %s, updated_at = now() WHERE %s`,
		strings.Join(setParts, ", "), strings.Join(whereParts, " AND "))

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update master row %s: %w", update.OrderID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRowChanged
	}
	return nil
}

// UploadMaster bulk-upserts master rows keyed by (order_id, sku). Rows
// identical to what is already stored are skipped; failures are counted
// and do not abort the rest of the batch.
func (s *Store) UploadMaster(ctx context.Context, rows []map[string]string) (UploadStats, error) {
	var stats UploadStats

	for _, row := range rows {
		orderID := row["order_id"]
		if orderID == "" {
			stats.Errors++
			continue
		}
		sku := row["sku"]

		outcome, err := s.upsertMasterRow(ctx, orderID, sku, row)
		if err != nil {
			stats.Errors++
			log.LogWarnWithFields("deliveries", "Failed to upsert master row", map[string]any{
				"order_id": orderID,
				"error":    err.Error(),
			})
			continue
		}
		switch outcome {
		case upsertInserted:
			stats.Inserted++
		case upsertUpdated:
			stats.Updated++
		case upsertSkipped:
			stats.Skipped++
		}
	}

	log.LogInfoWithFields("deliveries", "Master upload finished", map[string]any{
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
		"skipped":  stats.Skipped,
		"errors":   stats.Errors,
	})
	return stats, nil
}

type upsertOutcome int

const (
	upsertInserted upsertOutcome = iota
	upsertUpdated
	upsertSkipped
)

func (s *Store) upsertMasterRow(ctx context.Context, orderID, sku string, row map[string]string) (upsertOutcome, error) {
	existing, err := s.getLine(ctx, orderID, sku)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	columns := make([]string, 0, len(row))
	for column := range row {
		if editableColumns[column] {
			columns = append(columns, column)
		}
	}

	if existing != nil {
		if rowMatches(existing, row, columns) {
			return upsertSkipped, nil
		}

		// No fingerprint here: the upload is authoritative and overwrites
		update := MasterRowUpdate{OrderID: orderID, SKU: sku, Updates: map[string]string{}}
		for _, column := range columns {
			update.Updates[column] = normalizeValue(column, row[column])
		}
		if err := s.UpdateMasterRow(ctx, update); err != nil && !errors.Is(err, ErrRowChanged) {
			return 0, err
		}
		return upsertUpdated, nil
	}

	insertCols := []string{"order_id", "sku"}
	args := []any{orderID, sku}
	for _, column := range columns {
		value, err := columnValue(column, normalizeValue(column, row[column]))
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", column, err)
		}
		insertCols = append(insertCols, column)
		args = append(args, value)
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`INSERT INTO delivery_orders (%s) VALUES (%s)`,
		strings.Join(insertCols, ", "), strings.Join(placeholders, ", "))

	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("insert master row: %w", err)
	}
	return upsertInserted, nil
}

func (s *Store) getLine(ctx context.Context, orderID, sku string) (*Delivery, error) {
	return scanDelivery(s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_orders WHERE order_id = $1 AND sku = $2`,
		orderID, sku))
}

// Sellers aggregates quantities per seller and meal type for rows that
// are still in rotation.
func (s *Store) Sellers(ctx context.Context) ([]SellerSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT seller, meal_type, count(*), coalesce(sum(quantity), 0)
		FROM delivery_orders
		WHERE seller <> '' AND (status IN ($1, $2) OR status IS NULL)
		GROUP BY seller, meal_type
		ORDER BY seller, meal_type`, StatusActive, StatusPaused)
	if err != nil {
		return nil, fmt.Errorf("aggregate sellers: %w", err)
	}
	defer rows.Close()

	var summaries []SellerSummary
	for rows.Next() {
		var sum SellerSummary
		if err := rows.Scan(&sum.Seller, &sum.MealType, &sum.Orders, &sum.Quantity); err != nil {
			return nil, fmt.Errorf("scan seller summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seller summaries: %w", err)
	}
	return summaries, nil
}

func collectDeliveries(rows pgx.Rows) ([]Delivery, error) {
	var deliveries []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

// columnValue converts a raw string to the column's Go type so pgx binds
// the right parameter type.
func columnValue(column, raw string) (any, error) {
	switch column {
	case "quantity":
		if raw == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, err
		}
		return n, nil
	case "order_date":
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "status":
		if raw == "" {
			return nil, nil
		}
		return raw, nil
	default:
		return raw, nil
	}
}

// normalizeValue fixes up spreadsheet-origin values before storage. The
// routing sheets emit dates like "30-Jan"; Postgres wants ISO dates.
func normalizeValue(column, raw string) string {
	if column != "order_date" {
		return raw
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2-Jan", raw); err == nil {
		return time.Date(time.Now().Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	return raw
}

// rowMatches reports whether every incoming value equals what is stored,
// comparing as display text so "10" and 10 agree.
func rowMatches(existing *Delivery, row map[string]string, columns []string) bool {
	for _, column := range columns {
		if fieldText(existing, column) != normalizeValue(column, row[column]) {
			return false
		}
	}
	return true
}

func fieldText(d *Delivery, column string) string {
	switch column {
	case "order_date":
		if d.OrderDate == nil {
			return ""
		}
		return d.OrderDate.Format("2006-01-02")
	case "customer_name":
		return d.CustomerName
	case "email":
		return d.Email
	case "phone":
		return d.Phone
	case "house_unit":
		return d.HouseUnit
	case "address1":
		return d.Address1
	case "delivery_city":
		return d.DeliveryCity
	case "city":
		return d.City
	case "zip":
		return d.Zip
	case "seller":
		return d.Seller
	case "meal_type":
		return d.MealType
	case "delivery_time":
		return d.DeliveryTime
	case "quantity":
		return strconv.Itoa(d.Quantity)
	case "driver_instructions":
		return d.DriverInstructions
	case "seller_instructions":
		return d.SellerInstructions
	case "ts_notes":
		return d.TSNotes
	case "status":
		if d.Status == nil {
			return ""
		}
		return *d.Status
	default:
		return ""
	}
}
