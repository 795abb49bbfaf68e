package reservations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/tavola/internal/core"
)

// NewReference returns a short booking reference such as "BK-1F3A9C2E".
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK-" + strings.ToUpper(id[:8])
}

// Seed inserts a small dining room with customers, bookings, table
// assignments and orders inside one transaction. Bookings start on day.
func Seed(ctx context.Context, db *core.DB, day time.Time) error {
	at := func(hour, minute int) string {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC).Format(core.DatetimeLayout)
	}

	return db.Transactional(ctx, func(tx *core.DB) error {
		customers := make([]*core.Entity, 0, 3)
		for _, c := range []map[string]any{
			{"name": "Ada Lovelace", "email": "Ada@Example.com", "phone": "+44 20 7946 0018"},
			{"name": "Grace Hopper", "email": "grace@example.com"},
			{"name": "Linus Torvalds", "email": "linus@example.com"},
		} {
			e, err := tx.Create(ctx, Customer, c)
			if err != nil {
				return err
			}
			customers = append(customers, e)
		}

		tables := make([]*core.Entity, 0, 4)
		for _, t := range []map[string]any{
			{"label": "T1", "seats": 2, "area": "window"},
			{"label": "T2", "seats": 4, "area": "window"},
			{"label": "T3", "seats": 6, "area": "patio"},
			{"label": "T4", "seats": 8, "area": "hall"},
		} {
			e, err := tx.Create(ctx, Table, t)
			if err != nil {
				return err
			}
			tables = append(tables, e)
		}

		type plan struct {
			customer *core.Entity
			party    int
			status   string
			start    string
			tables   []*core.Entity
			items    []map[string]any
		}
		plans := []plan{
			{customers[0], 4, StatusConfirmed, at(19, 30), []*core.Entity{tables[0], tables[1]}, []map[string]any{
				{"name": "Risotto", "qty": 2, "price": 18.5},
				{"name": "Barolo", "qty": 1, "price": 62},
			}},
			{customers[0], 2, StatusPending, at(21, 0), nil, nil},
			{customers[1], 6, StatusConfirmed, at(20, 0), []*core.Entity{tables[2]}, []map[string]any{
				{"name": "Tasting menu", "qty": 6, "price": 45},
			}},
			{customers[2], 3, StatusSeated, at(18, 45), []*core.Entity{tables[1]}, nil},
		}

		for _, p := range plans {
			booking, err := tx.Create(ctx, Booking, map[string]any{
				"customer_id": p.customer.Key(),
				"reference":   NewReference(),
				"party_size":  p.party,
				"status":      p.status,
				"starts_at":   p.start,
			})
			if err != nil {
				return err
			}

			if len(p.tables) > 0 {
				rel, err := booking.BelongsToMany("tables")
				if err != nil {
					return err
				}
				rows := make([]core.PivotRow, len(p.tables))
				for i, t := range p.tables {
					rows[i] = core.PivotRow{ID: t.Key(), Attributes: map[string]any{"seat_label": t.String("area")}}
				}
				if _, err := rel.SyncPivot(ctx, rows, core.SyncOptions{}); err != nil {
					return err
				}
			}

			if len(p.items) == 0 {
				continue
			}
			var total float64
			for _, item := range p.items {
				total += float64(item["qty"].(int)) * toMoney(item["price"])
			}
			order, err := tx.Create(ctx, Order, map[string]any{
				"booking_id": booking.Key(),
				"status":     "open",
				"total":      total,
			})
			if err != nil {
				return err
			}
			for _, item := range p.items {
				item["order_id"] = order.Key()
				if _, err := tx.Create(ctx, OrderItem, item); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func toMoney(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	default:
		return 0
	}
}
