package reservations

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/coregx/tavola/internal/core"
	"github.com/coregx/tavola/internal/logger"
)

var (
	// ErrUnknownTable is returned when a table label is not in the dining room.
	ErrUnknownTable = errors.New("unknown table")
	// ErrInsufficientSeats is returned when assigned tables cannot seat the party.
	ErrInsufficientSeats = errors.New("not enough seats for party")
	// ErrBookingCancelled is returned when a cancelled booking is modified.
	ErrBookingCancelled = errors.New("booking is cancelled")
)

// Service runs the booking workflows against a registered DB.
type Service struct {
	db  *core.DB
	log logger.Logger
}

// NewService returns a Service. A nil log discards messages.
func NewService(db *core.DB, log logger.Logger) *Service {
	if log == nil {
		log = &logger.NoopLogger{}
	}
	return &Service{db: db, log: log}
}

// ListFilter narrows ListBookings. Zero values do not filter.
type ListFilter struct {
	Status       string
	MinPartySize int
	Customer     string // substring of the customer name
	TableLabel   string
	Unassigned   bool // only bookings without tables
	WithOrders   bool // only bookings with at least one ordered item
	MinTables    int
	Page         int
	PerPage      int
}

// ListBookings returns a page of bookings ordered by start time, with
// customer, tables and ordered items loaded.
func (s *Service) ListBookings(ctx context.Context, f ListFilter) (*core.Page, error) {
	perPage := lo.Ternary(f.PerPage > 0, f.PerPage, 20)
	return s.listQuery(f).Paginate(ctx, perPage, f.Page)
}

// ExplainBookings returns the database plan of the ListBookings query.
func (s *Service) ExplainBookings(ctx context.Context, f ListFilter) (*core.QueryPlan, error) {
	return s.listQuery(f).Explain(ctx)
}

func (s *Service) listQuery(f ListFilter) *core.Builder {
	return s.db.Query(Booking).
		With("customer", "tables", "orders.items").
		When(f.Status != "", func(b *core.Builder) { b.Where("status", f.Status) }).
		When(f.MinPartySize > 0, func(b *core.Builder) { b.Where("party_size", ">=", f.MinPartySize) }).
		When(f.Customer != "", func(b *core.Builder) {
			b.WhereRelation("customer", "name", "LIKE", "%"+f.Customer+"%")
		}).
		When(f.TableLabel != "", func(b *core.Builder) {
			b.WhereHas("tables", func(t *core.Builder) { t.Where("label", f.TableLabel) })
		}).
		When(f.Unassigned, func(b *core.Builder) { b.DoesntHave("tables", nil) }).
		When(f.WithOrders, func(b *core.Builder) {
			b.WhereHas("orders.items", func(i *core.Builder) { i.Where("qty", ">", 0) })
		}).
		When(f.MinTables > 1, func(b *core.Builder) { b.WhereHasCount("tables", nil, ">=", f.MinTables) }).
		OrderBy("starts_at").
		OrderBy("id")
}

// CancelBooking marks the booking cancelled, releases its tables and soft
// deletes it.
func (s *Service) CancelBooking(ctx context.Context, id any) (*core.Entity, error) {
	var booking *core.Entity
	err := s.db.Transactional(ctx, func(tx *core.DB) error {
		b, err := tx.Query(Booking).FindOrFail(ctx, id)
		if err != nil {
			return err
		}
		if err := b.Update(ctx, map[string]any{"status": StatusCancelled}); err != nil {
			return err
		}
		tables, err := b.BelongsToMany("tables")
		if err != nil {
			return err
		}
		released, err := tables.DetachAll(ctx)
		if err != nil {
			return err
		}
		if err := b.Delete(ctx); err != nil {
			return err
		}
		s.log.Info("booking cancelled",
			"booking_id", b.Key(),
			"reference", b.String("reference"),
			"released_tables", released.Detached,
		)
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// AssignTables makes labels the exact table set of the booking. Every
// pivot row gets seatLabel. The tables must seat the whole party.
func (s *Service) AssignTables(ctx context.Context, bookingID any, labels []string, seatLabel string) (*core.SyncChanges, error) {
	labels = lo.Uniq(labels)

	var changes *core.SyncChanges
	err := s.db.Transactional(ctx, func(tx *core.DB) error {
		booking, err := tx.Query(Booking).FindOrFail(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking.String("status") == StatusCancelled {
			return fmt.Errorf("%w: %v", ErrBookingCancelled, bookingID)
		}

		tables, err := tx.Query(Table).WhereIn("label", labels).Get(ctx)
		if err != nil {
			return err
		}
		byLabel := lo.KeyBy(tables, func(t *core.Entity) string { return t.String("label") })
		if missing := lo.Filter(labels, func(l string, _ int) bool { _, ok := byLabel[l]; return !ok }); len(missing) > 0 {
			return fmt.Errorf("%w: %v", ErrUnknownTable, missing)
		}

		seats := lo.SumBy(tables, func(t *core.Entity) int64 { return t.Int("seats") })
		if party := booking.Int("party_size"); len(labels) > 0 && seats < party {
			return fmt.Errorf("%w: %d seats for %d guests", ErrInsufficientSeats, seats, party)
		}

		rel, err := booking.BelongsToMany("tables")
		if err != nil {
			return err
		}
		rows := lo.Map(labels, func(l string, _ int) core.PivotRow {
			return core.PivotRow{ID: byLabel[l].Key(), Attributes: map[string]any{"seat_label": seatLabel}}
		})
		changes, err = rel.SyncPivot(ctx, rows, core.SyncOptions{Detaching: true})
		if err != nil {
			return err
		}
		s.log.Info("tables assigned",
			"booking_id", booking.Key(),
			"attached", changes.Attached,
			"detached", changes.Detached,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Stats summarises the active bookings and their orders.
type Stats struct {
	Bookings     int64            `json:"bookings" yaml:"bookings"`
	ByStatus     map[string]int64 `json:"by_status" yaml:"by_status"`
	Covers       float64          `json:"covers" yaml:"covers"`
	AvgPartySize float64          `json:"avg_party_size" yaml:"avg_party_size"`
	LargestParty float64          `json:"largest_party" yaml:"largest_party"`
	Revenue      float64          `json:"revenue" yaml:"revenue"`
	ItemsSold    float64          `json:"items_sold" yaml:"items_sold"`
	Unassigned   int64            `json:"unassigned" yaml:"unassigned"`
	TablesInUse  []string         `json:"tables_in_use" yaml:"tables_in_use"`
}

// Stats computes booking and order aggregates. Soft-deleted rows are excluded.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	var (
		st  = &Stats{}
		err error
	)
	bookings := func() *core.Builder { return s.db.Query(Booking) }

	if st.Bookings, err = bookings().Count(ctx); err != nil {
		return nil, err
	}
	statuses, err := bookings().Pluck(ctx, "status")
	if err != nil {
		return nil, err
	}
	st.ByStatus = lo.MapValues(
		lo.CountValuesBy(statuses, func(v any) string { return fmt.Sprint(v) }),
		func(n int, _ string) int64 { return int64(n) },
	)

	active := func() *core.Builder { return bookings().Where("status", "!=", StatusCancelled) }
	if st.Covers, err = active().Sum(ctx, "party_size"); err != nil {
		return nil, err
	}
	if st.AvgPartySize, err = active().Avg(ctx, "party_size"); err != nil {
		return nil, err
	}
	if st.LargestParty, err = active().Max(ctx, "party_size"); err != nil {
		return nil, err
	}
	if st.Unassigned, err = active().DoesntHave("tables", nil).Count(ctx); err != nil {
		return nil, err
	}
	// Existence subqueries do not carry the related global scopes.
	live := func(b *core.Builder) { b.WhereNull(core.DeletedAtColumn) }
	if st.Revenue, err = s.db.Query(Order).WhereHas("booking", live).Sum(ctx, "total"); err != nil {
		return nil, err
	}
	if st.ItemsSold, err = s.db.Query(OrderItem).WhereHas("order.booking", live).Sum(ctx, "qty"); err != nil {
		return nil, err
	}

	labels, err := s.db.Query(Table).WhereHas("bookings", func(b *core.Builder) {
		b.Where("status", "!=", StatusCancelled).WhereNull(core.DeletedAtColumn)
	}).Pluck(ctx, "label")
	if err != nil {
		return nil, err
	}
	st.TablesInUse = lo.Map(labels, func(v any, _ int) string { return fmt.Sprint(v) })
	sort.Strings(st.TablesInUse)
	return st, nil
}
