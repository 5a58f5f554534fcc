package analytics

import (
	"sort"
	"strings"

	"commerce-analytics/internal/models"

	"github.com/shopspring/decimal"
)

// Snapshot is the read-only input of one analytical run. The engine never
// mutates it.
type Snapshot struct {
	Categories []models.Category
	Products   []models.Product
	Users      []models.User
	Orders     []models.Order
	OrderItems []models.OrderItem
	Events     []models.Event
}

// dataset is a validated, indexed view of a snapshot with excluded orders
// already dropped.
type dataset struct {
	categories map[int64]*models.Category
	products   map[int64]*models.Product
	users      map[int64]*models.User

	orders       []*models.Order // counted orders, input order
	orderByID    map[int64]*models.Order
	items        []*models.OrderItem // items of counted orders, input order
	itemsByOrder map[int64][]*models.OrderItem
	events       []*models.Event
}

// Validate checks duplicate identifiers, referential integrity and
// non-negative money, returning the first DataIntegrityError found.
func (s *Snapshot) Validate() error {
	_, err := s.prepare(nil)
	return err
}

func (s *Snapshot) prepare(excluded []string) (*dataset, error) {
	ds := &dataset{
		categories:   make(map[int64]*models.Category, len(s.Categories)),
		products:     make(map[int64]*models.Product, len(s.Products)),
		users:        make(map[int64]*models.User, len(s.Users)),
		orderByID:    make(map[int64]*models.Order, len(s.Orders)),
		itemsByOrder: make(map[int64][]*models.OrderItem),
	}

	for i := range s.Categories {
		c := &s.Categories[i]
		if _, dup := ds.categories[c.ID]; dup {
			return nil, integrityError("category", c.ID, "duplicate id")
		}
		ds.categories[c.ID] = c
	}
	for _, c := range s.Categories {
		if c.ParentID != nil {
			if _, ok := ds.categories[*c.ParentID]; !ok {
				return nil, integrityError("category", c.ID, "parent %d not found", *c.ParentID)
			}
		}
	}

	for i := range s.Products {
		p := &s.Products[i]
		if _, dup := ds.products[p.ID]; dup {
			return nil, integrityError("product", p.ID, "duplicate id")
		}
		if _, ok := ds.categories[p.CategoryID]; !ok {
			return nil, integrityError("product", p.ID, "category %d not found", p.CategoryID)
		}
		if err := nonNegative("product", p.ID, map[string]decimal.Decimal{"cost": p.Cost, "price": p.Price}); err != nil {
			return nil, err
		}
		ds.products[p.ID] = p
	}

	for i := range s.Users {
		u := &s.Users[i]
		if _, dup := ds.users[u.ID]; dup {
			return nil, integrityError("user", u.ID, "duplicate id")
		}
		if u.LifetimeValue.IsNegative() {
			return nil, integrityError("user", u.ID, "negative lifetime_value %s", u.LifetimeValue)
		}
		ds.users[u.ID] = u
	}

	skip := make(map[string]bool, len(excluded))
	for _, st := range excluded {
		skip[strings.ToLower(st)] = true
	}

	seenOrders := make(map[int64]bool, len(s.Orders))
	for i := range s.Orders {
		o := &s.Orders[i]
		if seenOrders[o.ID] {
			return nil, integrityError("order", o.ID, "duplicate id")
		}
		seenOrders[o.ID] = true
		if _, ok := ds.users[o.UserID]; !ok {
			return nil, integrityError("order", o.ID, "user %d not found", o.UserID)
		}
		if err := nonNegative("order", o.ID, map[string]decimal.Decimal{
			"subtotal": o.Subtotal, "tax": o.Tax, "shipping": o.Shipping, "total": o.Total,
		}); err != nil {
			return nil, err
		}
		if skip[strings.ToLower(o.Status)] {
			continue
		}
		ds.orders = append(ds.orders, o)
		ds.orderByID[o.ID] = o
	}

	seenItems := make(map[int64]bool, len(s.OrderItems))
	for i := range s.OrderItems {
		it := &s.OrderItems[i]
		if it.ID != 0 {
			if seenItems[it.ID] {
				return nil, integrityError("order_item", it.ID, "duplicate id")
			}
			seenItems[it.ID] = true
		}
		if !seenOrders[it.OrderID] {
			return nil, integrityError("order_item", it.ID, "order %d not found", it.OrderID)
		}
		if _, ok := ds.products[it.ProductID]; !ok {
			return nil, integrityError("order_item", it.ID, "product %d not found", it.ProductID)
		}
		if it.Quantity <= 0 {
			return nil, integrityError("order_item", it.ID, "quantity %d must be positive", it.Quantity)
		}
		if err := nonNegative("order_item", it.ID, map[string]decimal.Decimal{
			"unit_price": it.UnitPrice, "discount": it.Discount, "tax_amount": it.TaxAmount,
		}); err != nil {
			return nil, err
		}
		if rev := it.Revenue(); rev.IsNegative() {
			return nil, integrityError("order_item", it.ID, "negative revenue %s: discount exceeds line value", rev)
		}
		if _, counted := ds.orderByID[it.OrderID]; !counted {
			continue
		}
		ds.items = append(ds.items, it)
		ds.itemsByOrder[it.OrderID] = append(ds.itemsByOrder[it.OrderID], it)
	}

	seenEvents := make(map[int64]bool, len(s.Events))
	for i := range s.Events {
		ev := &s.Events[i]
		if ev.ID != 0 {
			if seenEvents[ev.ID] {
				return nil, integrityError("event", ev.ID, "duplicate id")
			}
			seenEvents[ev.ID] = true
		}
		if ev.UserID != nil {
			if _, ok := ds.users[*ev.UserID]; !ok {
				return nil, integrityError("event", ev.ID, "user %d not found", *ev.UserID)
			}
		}
		ds.events = append(ds.events, ev)
	}

	return ds, nil
}

func nonNegative(entity string, id int64, fields map[string]decimal.Decimal) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if fields[name].IsNegative() {
			return integrityError(entity, id, "negative %s %s", name, fields[name])
		}
	}
	return nil
}

// prepare validates the snapshot under the engine's order status policy.
func (e *Engine) prepare(snap *Snapshot) (*dataset, error) {
	if snap == nil {
		snap = &Snapshot{}
	}
	return snap.prepare(e.cfg.ExcludedStatuses)
}

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}
