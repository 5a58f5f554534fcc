package analytics

import (
	"fmt"
	"time"

	"commerce-analytics/internal/models"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// asOf reports "as of 2024-06-30".
var asOf = time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func ref(v int64) *int64 { return &v }

func at(date string, clock ...string) time.Time {
	layout, value := dateLayout, date
	if len(clock) > 0 {
		layout, value = dateLayout+" 15:04", date+" "+clock[0]
	}
	t, err := time.ParseInLocation(layout, value, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

type line struct {
	product int64
	qty     int
	price   string
}

// fixture builds snapshots over a small catalog:
//
//	1 Electronics
//	  2 Phones   (10 Phone A, 11 Phone B)
//	  3 Laptops  (12 Laptop)
//	4 Books      (13 Novel)
type fixture struct {
	snap      Snapshot
	nextOrder int64
	nextItem  int64
	nextEvent int64
}

func newFixture() *fixture {
	return &fixture{snap: Snapshot{
		Categories: []models.Category{
			{ID: 1, Name: "Electronics"},
			{ID: 2, Name: "Phones", ParentID: ref(1)},
			{ID: 3, Name: "Laptops", ParentID: ref(1)},
			{ID: 4, Name: "Books"},
		},
		Products: []models.Product{
			{ID: 10, Name: "Phone A", CategoryID: 2, Cost: dec("50"), Price: dec("100"), Inventory: 5, IsActive: true},
			{ID: 11, Name: "Phone B", CategoryID: 2, Cost: dec("60"), Price: dec("150"), Inventory: 5, IsActive: true},
			{ID: 12, Name: "Laptop", CategoryID: 3, Cost: dec("400"), Price: dec("1000"), Inventory: 2, IsActive: false},
			{ID: 13, Name: "Novel", CategoryID: 4, Cost: dec("5"), Price: dec("20"), Inventory: 40, IsActive: true},
		},
	}}
}

func (f *fixture) user(userID int64, signup time.Time) *fixture {
	f.snap.Users = append(f.snap.Users, models.User{
		ID:           userID,
		SignupAt:     signup,
		LastActiveAt: signup,
		IsActive:     true,
	})
	return f
}

// order adds a delivered order; without lines the total is used as is.
func (f *fixture) order(userID int64, placed time.Time, total string, lines ...line) int64 {
	return f.orderWithStatus(userID, placed, total, models.OrderStatusDelivered, lines...)
}

func (f *fixture) orderWithStatus(userID int64, placed time.Time, total, status string, lines ...line) int64 {
	f.nextOrder++
	o := models.Order{
		ID:        f.nextOrder,
		UserID:    userID,
		OrderedAt: placed,
		Status:    status,
		Subtotal:  dec(total),
		Total:     dec(total),
	}
	f.snap.Orders = append(f.snap.Orders, o)
	for _, l := range lines {
		f.nextItem++
		f.snap.OrderItems = append(f.snap.OrderItems, models.OrderItem{
			ID:        f.nextItem,
			OrderID:   o.ID,
			ProductID: l.product,
			Quantity:  l.qty,
			UnitPrice: dec(l.price),
		})
	}
	return o.ID
}

func (f *fixture) event(userID *int64, eventType string, occurred time.Time, source string) {
	f.nextEvent++
	ev := models.Event{
		ID:         f.nextEvent,
		UserID:     userID,
		SessionID:  fmt.Sprintf("s-%d", f.nextEvent),
		EventType:  eventType,
		OccurredAt: occurred,
	}
	if source != "" {
		ev.Payload = types.JSONText(fmt.Sprintf(`{%q:%q}`, models.PayloadSource, source))
	}
	f.snap.Events = append(f.snap.Events, ev)
}
