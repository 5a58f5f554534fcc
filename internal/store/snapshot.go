package store

import (
	"context"
	"fmt"
	"time"

	"commerce-analytics/internal/analytics"
	"commerce-analytics/internal/models"
	"commerce-analytics/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	categoryColumns = "id, name, parent_id, COALESCE(description, '') AS description"
	productColumns  = "id, name, category_id, cost, price, inventory_count, is_active"
	userColumns     = "id, signup_date, last_active, lifetime_value, is_active"
	orderColumns    = "id, user_id, order_date, status, subtotal, tax, shipping, total, is_new_customer"
	itemColumns     = "oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.discount, oi.tax_amount"
	eventColumns    = "id, user_id, session_id, event_type, event_timestamp, COALESCE(event_data, '{}') AS event_data"
)

// Categories retrieves the whole category tree
func (s *Store) Categories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.selectAll(ctx, &categories, "SELECT "+categoryColumns+" FROM categories ORDER BY id")
	return categories, err
}

// Products retrieves the whole catalog
func (s *Store) Products(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.selectAll(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	return products, err
}

// Users retrieves every user account
func (s *Store) Users(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	err := s.selectAll(ctx, &users, "SELECT "+userColumns+" FROM users ORDER BY id")
	return users, err
}

// OrdersInRange retrieves orders placed in [start, end)
func (s *Store) OrdersInRange(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.selectAll(ctx, &orders,
		"SELECT "+orderColumns+" FROM orders WHERE order_date >= ? AND order_date < ? ORDER BY order_date, id",
		start, end)
	return orders, err
}

// OrderItemsInRange retrieves the items of orders placed in [start, end)
func (s *Store) OrderItemsInRange(ctx context.Context, start, end time.Time) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.selectAll(ctx, &items,
		"SELECT "+itemColumns+" FROM order_items oi JOIN orders o ON o.id = oi.order_id"+
			" WHERE o.order_date >= ? AND o.order_date < ? ORDER BY oi.order_id, oi.id",
		start, end)
	return items, err
}

// EventsInRange retrieves clickstream events in [start, end)
func (s *Store) EventsInRange(ctx context.Context, start, end time.Time) ([]models.Event, error) {
	events := []models.Event{}
	err := s.selectAll(ctx, &events,
		"SELECT "+eventColumns+" FROM events WHERE event_timestamp >= ? AND event_timestamp < ? ORDER BY event_timestamp, id",
		start, end)
	return events, err
}

// LoadSnapshot reads the catalog and users in full and the orders, items and
// events of [start, end), so cohorts see every member regardless of the
// order window.
func (s *Store) LoadSnapshot(ctx context.Context, start, end time.Time) (*analytics.Snapshot, error) {
	ctx, span := util.StartSpan(ctx, "Store.LoadSnapshot")
	defer span.End()
	span.SetAttributes(
		attribute.String("window.start", start.UTC().Format(time.RFC3339)),
		attribute.String("window.end", end.UTC().Format(time.RFC3339)),
	)

	began := time.Now()
	defer func() {
		util.SnapshotLoadDuration.Observe(time.Since(began).Seconds())
	}()

	snap := &analytics.Snapshot{}
	var err error
	if snap.Categories, err = s.Categories(ctx); err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	if snap.Products, err = s.Products(ctx); err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	if snap.Users, err = s.Users(ctx); err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	if snap.Orders, err = s.OrdersInRange(ctx, start, end); err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	if snap.OrderItems, err = s.OrderItemsInRange(ctx, start, end); err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	if snap.Events, err = s.EventsInRange(ctx, start, end); err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	util.GetLogger().Debug("Snapshot loaded",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("orders", len(snap.Orders)),
		zap.Int("items", len(snap.OrderItems)),
		zap.Int("events", len(snap.Events)))
	return snap, nil
}
