package models

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Category is a node of the product category tree; roots have no parent.
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	ParentID    *int64 `db:"parent_id" json:"parent_id"`
	Description string `db:"description" json:"description"`
}

// Product represents a product in the catalog
type Product struct {
	ID         int64           `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	CategoryID int64           `db:"category_id" json:"category_id"`
	Cost       decimal.Decimal `db:"cost" json:"cost"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Inventory  int             `db:"inventory_count" json:"inventory_count"`
	IsActive   bool            `db:"is_active" json:"is_active"`
}

// User represents a customer account
type User struct {
	ID            int64           `db:"id" json:"id"`
	SignupAt      time.Time       `db:"signup_date" json:"signup_date"`
	LastActiveAt  time.Time       `db:"last_active" json:"last_active"`
	LifetimeValue decimal.Decimal `db:"lifetime_value" json:"lifetime_value"`
	IsActive      bool            `db:"is_active" json:"is_active"`
}

// Order represents a customer order
type Order struct {
	ID            int64           `db:"id" json:"id"`
	UserID        int64           `db:"user_id" json:"user_id"`
	OrderedAt     time.Time       `db:"order_date" json:"order_date"`
	Status        string          `db:"status" json:"status"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax           decimal.Decimal `db:"tax" json:"tax"`
	Shipping      decimal.Decimal `db:"shipping" json:"shipping"`
	Total         decimal.Decimal `db:"total" json:"total"`
	IsNewCustomer bool            `db:"is_new_customer" json:"is_new_customer"`
}

// OrderItem represents one product line of an order
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Discount  decimal.Decimal `db:"discount" json:"discount"`
	TaxAmount decimal.Decimal `db:"tax_amount" json:"tax_amount"`
}

// Revenue is quantity × unit price less the line discount.
func (i OrderItem) Revenue() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
}

// Event is a clickstream event; UserID is nil for anonymous sessions.
type Event struct {
	ID         int64          `db:"id" json:"id"`
	UserID     *int64         `db:"user_id" json:"user_id"`
	SessionID  string         `db:"session_id" json:"session_id"`
	EventType  string         `db:"event_type" json:"event_type"`
	OccurredAt time.Time      `db:"event_timestamp" json:"event_timestamp"`
	Payload    types.JSONText `db:"event_data" json:"event_data,omitempty"`
}

// PayloadString returns a string field of the event payload, or "" when the
// payload is empty, malformed, or the field is not a string.
func (e Event) PayloadString(key string) string {
	if len(e.Payload) == 0 {
		return ""
	}
	var data map[string]any
	if err := json.Unmarshal(e.Payload, &data); err != nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
	OrderStatusRefunded  = "refunded"
)

// Clickstream event types
const (
	EventProductView   = "product_view"
	EventAddToCart     = "add_to_cart"
	EventCheckoutStart = "checkout_start"
	EventPurchase      = "purchase"
)

// Payload keys
const (
	PayloadSource    = "source"
	PayloadDevice    = "device_type"
	PayloadProductID = "product_id"
)
