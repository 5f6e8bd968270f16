// Package booking orchestrates the submit pipeline: structural validation,
// submit-time conflict re-validation, pricing, payload construction and
// persistence. Any failing step short-circuits the rest.
package booking

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"costamar/internal/catalog"
	"costamar/internal/conflict"
	"costamar/internal/events"
	"costamar/internal/metrics"
	"costamar/internal/models"
	"costamar/internal/pricing"
	"costamar/internal/selection"
)

// Persistence is the external create-or-update collaborator.
type Persistence interface {
	CreateBooking(ctx context.Context, b *models.Booking) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id int64, b *models.Booking) (*models.Booking, error)
}

// Coordinator runs the submission pipeline for one flow at a time.
type Coordinator struct {
	validator  *conflict.Validator
	calculator *pricing.Calculator
	store      Persistence
	catalog    *catalog.Catalog
	bus        *events.Bus
	logger     *zerolog.Logger
}

// NewCoordinator wires the pipeline.
func NewCoordinator(validator *conflict.Validator, calculator *pricing.Calculator, store Persistence, cat *catalog.Catalog, bus *events.Bus, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{
		validator:  validator,
		calculator: calculator,
		store:      store,
		catalog:    cat,
		bus:        bus,
		logger:     logger,
	}
}

// Submit validates, prices and persists the machine's draft. On success the
// availability cache is invalidated, the draft's flow is closed, and the
// persisted booking is returned.
func (c *Coordinator) Submit(ctx context.Context, machine *selection.Machine) (*models.Booking, error) {
	draft := machine.Draft()

	if err := c.validateDraft(draft); err != nil {
		return nil, err
	}

	// Fetch failures fail open inside the resolver, so an error here is a
	// malformed draft, not a backend outage.
	report, err := c.validator.ValidateBeforeSubmit(ctx, draft)
	if err != nil {
		return nil, err
	}
	if !report.OverallAvailable {
		metrics.IncSubmitConflict()
		c.logger.Info().
			Int("conflicts", len(report.Unavailable)).
			Msg("submission blocked by stale availability")
		return nil, &ConflictError{Report: report}
	}

	cost, err := c.calculator.ComputeCost(draft)
	if err != nil {
		return nil, err
	}

	payload := buildPayload(draft, cost)

	var persisted *models.Booking
	eventType := events.TypeBookingCreated
	kind := "created"
	if draft.EditingBookingID != 0 {
		persisted, err = c.store.UpdateBooking(ctx, draft.EditingBookingID, payload)
		eventType = events.TypeBookingUpdated
		kind = "updated"
	} else {
		persisted, err = c.store.CreateBooking(ctx, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Stale facts must not outlive the mutation they describe.
	c.validator.Resolver().Cache().InvalidateAll()
	machine.Abandon()

	metrics.IncBookingMutation(kind, string(persisted.Category))
	c.bus.Publish(eventType, persisted)
	c.logger.Info().
		Int64("booking_id", persisted.ID).
		Str("reference", persisted.Reference).
		Str("category", string(persisted.Category)).
		Int64("total_cost", persisted.TotalCost).
		Msg("booking persisted")

	return persisted, nil
}

// validateDraft checks structural preconditions: required fields, date
// ordering and capacity caps. It runs before conflict validation.
func (c *Coordinator) validateDraft(draft *selection.Draft) error {
	verr := &ValidationError{}

	if !draft.Category.Valid() {
		verr.add("category", "unknown reservation category")
		return verr
	}

	switch draft.Category {
	case models.CategoryRoom:
		if !draft.Range.Start.Before(draft.Range.EndExclusive) {
			verr.add("dates", "check-in must be before check-out")
		}
		if len(draft.Confirmed(selection.FieldRooms)) == 0 {
			verr.add("rooms", "select at least one room")
		}
	case models.CategoryCottage:
		if len(draft.SelectedDays) == 0 {
			verr.add("dates", "select at least one rental day")
		}
		if len(draft.Confirmed(selection.FieldCottages)) == 0 {
			verr.add("cottages", "select at least one cottage")
		}
	case models.CategoryFunctionHall:
		if !draft.Range.Start.Before(draft.Range.EndExclusive) {
			verr.add("dates", "event start must be before event end")
		}
		halls := draft.Confirmed(selection.FieldHall)
		if len(halls) != 1 {
			verr.add("hall", "select exactly one function hall")
		}
		if draft.GuestCount <= 0 {
			verr.add("guest_count", "guest count is required")
		}
		for id := range halls {
			inst, err := c.catalog.Lookup(id)
			if err != nil {
				verr.add("hall", err.Error())
				continue
			}
			if draft.GuestCount > inst.MaxCapacity {
				verr.add("guest_count", (&pricing.CapacityError{
					GuestCount:  draft.GuestCount,
					MaxCapacity: inst.MaxCapacity,
				}).Error())
			}
		}
	}

	if draft.PaymentMode == "" {
		verr.add("payment_mode", "payment mode is required")
	}

	return verr.orNil()
}
