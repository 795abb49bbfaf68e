// Package reservations declares the restaurant booking entities on top of
// the core registry and implements the booking workflows used by the CLI:
// listing, cancellation, table assignment and daily statistics.
package reservations

import (
	"strings"

	"github.com/coregx/tavola/internal/core"
)

// Entity names.
const (
	Customer     = "customer"
	Booking      = "booking"
	Table        = "restaurant_table"
	BookingTable = "booking_table"
	Order        = "order"
	OrderItem    = "order_item"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusSeated    = "seated"
	StatusCancelled = "cancelled"
)

// Schemas returns fresh schemas for every reservation entity.
func Schemas() []*core.Schema {
	return []*core.Schema{
		core.MustSchema(Customer, "customers",
			core.WithFillable("name", "email", "phone"),
			core.WithMutator("email", func(_ *core.Entity, v any) (any, error) {
				s, _ := v.(string)
				return strings.ToLower(strings.TrimSpace(s)), nil
			}),
			core.WithRelation("bookings", core.HasMany(Booking, "customer_id", "")),
		),
		core.MustSchema(Booking, "bookings",
			core.WithFillable("customer_id", "reference", "party_size", "status", "starts_at", "notes"),
			core.WithCasts(map[string]core.CastType{
				"customer_id": core.CastInt,
				"party_size":  core.CastInt,
				"starts_at":   core.CastDatetime,
				"notes":       core.CastArray,
			}),
			core.WithRelation("customer", core.BelongsTo(Customer, "customer_id", "")),
			core.WithRelation("tables", core.BelongsToMany(Table, BookingTable, "booking_id", "restaurant_table_id", "seat_label")),
			core.WithRelation("orders", core.HasMany(Order, "booking_id", "")),
			core.WithRelation("latest_order", core.HasOne(Order, "booking_id", "")),
		),
		core.MustSchema(Table, "restaurant_tables",
			core.WithFillable("label", "seats", "area"),
			core.WithCasts(map[string]core.CastType{"seats": core.CastInt}),
			core.WithRelation("bookings", core.BelongsToMany(Booking, BookingTable, "restaurant_table_id", "booking_id", "seat_label")),
		),
		core.MustSchema(BookingTable, "booking_tables",
			core.WithoutTimestamps(),
			core.WithoutSoftDeletes(),
			core.WithFillable("booking_id", "restaurant_table_id", "seat_label"),
			core.WithCasts(map[string]core.CastType{"booking_id": core.CastInt, "restaurant_table_id": core.CastInt}),
		),
		core.MustSchema(Order, "orders",
			core.WithFillable("booking_id", "status", "total"),
			core.WithCasts(map[string]core.CastType{"booking_id": core.CastInt, "total": core.CastFloat}),
			core.WithRelation("booking", core.BelongsTo(Booking, "booking_id", "")),
			core.WithRelation("items", core.HasMany(OrderItem, "order_id", "")),
		),
		core.MustSchema(OrderItem, "order_items",
			core.WithoutSoftDeletes(),
			core.WithFillable("order_id", "name", "qty", "price"),
			core.WithCasts(map[string]core.CastType{"order_id": core.CastInt, "qty": core.CastInt, "price": core.CastFloat}),
			core.WithRelation("order", core.BelongsTo(Order, "order_id", "")),
		),
	}
}

// Register adds the reservation schemas to db.
func Register(db *core.DB) {
	db.Register(Schemas()...)
}
