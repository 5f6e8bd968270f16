package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"costamar/internal/availability"
	"costamar/internal/events"
	"costamar/internal/models"
)

// UndoDepth bounds the date-edit undo stack.
const UndoDepth = 10

// DroppedItem records a confirmed selection removed because a date change
// made it unavailable. The audit trail lets the UI tell the user exactly
// what was dropped instead of failing the date change.
type DroppedItem struct {
	Field      Field
	InstanceID string
}

// DateSnapshot captures the date state before a date-click mutation, for
// single-step undo.
type DateSnapshot struct {
	Range        models.DateRange
	SelectedDays []time.Time
	// EditingBound names which bound was being edited: "check_in",
	// "check_out" or "days".
	EditingBound string
}

func (s DateSnapshot) equal(other DateSnapshot) bool {
	if s.EditingBound != other.EditingBound {
		return false
	}
	if !s.Range.Start.Equal(other.Range.Start) || !s.Range.EndExclusive.Equal(other.Range.EndExclusive) {
		return false
	}
	if len(s.SelectedDays) != len(other.SelectedDays) {
		return false
	}
	for i := range s.SelectedDays {
		if !s.SelectedDays[i].Equal(other.SelectedDays[i]) {
			return false
		}
	}
	return true
}

// Machine governs how a draft's pending selections are toggled, confirmed
// or cancelled, and how date changes invalidate stale selections. All
// mutations run synchronously on the flow's goroutine.
type Machine struct {
	draft    *Draft
	resolver *availability.Resolver
	bus      *events.Bus
	logger   *zerolog.Logger

	undo        []DateSnapshot
	lastDropped []DroppedItem

	// epoch guards against late-arriving fetch results mutating a draft
	// that has since been discarded.
	epoch int64
	alive bool
}

// NewMachine creates a state machine owning the given draft.
func NewMachine(draft *Draft, resolver *availability.Resolver, bus *events.Bus, logger *zerolog.Logger) *Machine {
	return &Machine{draft: draft, resolver: resolver, bus: bus, logger: logger, alive: true}
}

// Draft returns the owned draft.
func (m *Machine) Draft() *Draft {
	return m.draft
}

// Epoch returns the current flow epoch. Callers holding an asynchronous
// fetch result must re-check Active before applying it.
func (m *Machine) Epoch() int64 {
	return m.epoch
}

// Active reports whether the flow that observed the given epoch is still
// the live one.
func (m *Machine) Active(epoch int64) bool {
	return m.alive && m.epoch == epoch
}

// Abandon discards the whole flow: pending state is dropped and any
// in-flight fetch result becomes a no-op.
func (m *Machine) Abandon() {
	for f := range m.draft.fields {
		m.draft.field(f).Pending = nil
	}
	m.alive = false
	m.epoch++
	m.bus.Publish(events.TypeSelectionCancelled, m.draft.Category)
}

// OpenField starts a tentative edit on a field. Opening with no prior
// pending edit seeds the pending set from the confirmed one; reopening an
// already-open field keeps the in-progress edit.
func (m *Machine) OpenField(f Field) {
	sel := m.draft.field(f)
	if sel.Pending == nil {
		sel.Pending = sel.Confirmed.Clone()
	}
}

// TogglePendingItem adds or removes an instance from the field's pending
// set. Confirmed items are never mutated directly.
func (m *Machine) TogglePendingItem(f Field, instanceID string) error {
	sel := m.draft.field(f)
	if sel.Pending == nil {
		return fmt.Errorf("field %s has no open selection", f)
	}
	if sel.Pending.Has(instanceID) {
		sel.Pending.Remove(instanceID)
	} else {
		sel.Pending.Add(instanceID)
	}
	return nil
}

// Controls computes the Confirm/Close visibility for a field. Recomputed
// after every toggle by the renderer.
func (m *Machine) Controls(f Field) Controls {
	sel := m.draft.field(f)
	if sel.Pending == nil {
		return Controls{}
	}
	if sel.Pending.Equal(sel.Confirmed) {
		return Controls{ShowClose: true}
	}
	return Controls{ShowConfirm: true}
}

// Confirm promotes the pending set to confirmed, closes the field and
// notifies subscribers so dependent totals (nights, guests, cost) are
// recomputed.
func (m *Machine) Confirm(f Field) {
	sel := m.draft.field(f)
	if sel.Pending == nil {
		return
	}
	sel.Confirmed = sel.Pending
	sel.Pending = nil
	m.bus.Publish(events.TypeSelectionConfirmed, struct {
		Field Field
		Items []string
	}{f, sel.Confirmed.Sorted()})
}

// Cancel discards the pending set without touching confirmed items and
// closes the field.
func (m *Machine) Cancel(f Field) {
	m.draft.field(f).Pending = nil
}

// Close is the implicit dismissal (outside click, "X"); it behaves exactly
// like Cancel.
func (m *Machine) Close(f Field) {
	m.Cancel(f)
}

// PushDateSnapshot records the current date state before a date-click
// mutation. Pushing a state identical to the top of the stack is a no-op.
func (m *Machine) PushDateSnapshot(editingBound string) {
	snap := DateSnapshot{
		Range:        m.draft.Range,
		SelectedDays: append([]time.Time(nil), m.draft.SelectedDays...),
		EditingBound: editingBound,
	}
	if n := len(m.undo); n > 0 && m.undo[n-1].equal(snap) {
		return
	}
	m.undo = append(m.undo, snap)
	if len(m.undo) > UndoDepth {
		m.undo = m.undo[len(m.undo)-UndoDepth:]
	}
}

// Undo restores the most recent date snapshot. Returns false if the stack
// is empty.
func (m *Machine) Undo() (DateSnapshot, bool) {
	n := len(m.undo)
	if n == 0 {
		return DateSnapshot{}, false
	}
	snap := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.draft.Range = snap.Range
	m.draft.SelectedDays = snap.SelectedDays
	return snap, true
}

// UndoDepthUsed returns how many snapshots the undo stack currently holds.
func (m *Machine) UndoDepthUsed() int {
	return len(m.undo)
}

// LastDropped returns the audit trail of the most recent date change:
// the confirmed items that had to be removed.
func (m *Machine) LastDropped() []DroppedItem {
	return m.lastDropped
}

// SetDateRange changes the governing check-in/check-out range. The affected
// category's cache is invalidated, availability is re-resolved, and any
// confirmed item no longer range-available is silently dropped, with an
// audit trail so the UI can warn the user. Dropping instead of blocking the
// date change favors forward progress over hard failure.
func (m *Machine) SetDateRange(ctx context.Context, newRange models.DateRange) error {
	epoch := m.epoch
	category := m.draft.Category

	m.resolver.Cache().InvalidateCategory(category)

	ra, err := m.resolver.ResolveRange(ctx, category, newRange, m.draft.EditingBookingID)
	if err != nil {
		return fmt.Errorf("resolve range: %w", err)
	}
	if !m.Active(epoch) {
		// The flow was abandoned while the fetch was in flight.
		return nil
	}

	m.draft.Range = newRange
	m.dropUnavailable(ra.RangeAvailable, rangeFields(category))
	m.bus.Publish(events.TypeDatesChanged, newRange)
	return nil
}

// SetSelectedDays changes a cottage draft's (possibly non-contiguous) usage
// days, with the same drop-and-audit policy as SetDateRange.
func (m *Machine) SetSelectedDays(ctx context.Context, days []time.Time) error {
	epoch := m.epoch
	normalized := normalizeDays(days)

	m.resolver.Cache().InvalidateCategory(models.CategoryCottage)

	ra, err := m.resolver.ResolveDates(ctx, models.CategoryCottage, normalized, m.draft.EditingBookingID)
	if err != nil {
		return fmt.Errorf("resolve days: %w", err)
	}
	if !m.Active(epoch) {
		return nil
	}

	m.draft.SelectedDays = normalized
	m.dropUnavailable(ra.RangeAvailable, []Field{FieldCottages})
	m.bus.Publish(events.TypeDatesChanged, normalized)
	return nil
}

// SetAddOnCottageDays records explicit rental days for add-on cottages.
func (m *Machine) SetAddOnCottageDays(days []time.Time) {
	m.draft.AddOnCottageDays = normalizeDays(days)
	m.draft.CottageDaysDefaulted = len(m.draft.AddOnCottageDays) == 0
}

func (m *Machine) dropUnavailable(rangeAvailable models.InstanceSet, fields []Field) {
	m.lastDropped = nil
	for _, f := range fields {
		sel := m.draft.field(f)
		for _, id := range sel.Confirmed.Sorted() {
			if rangeAvailable.Has(id) {
				continue
			}
			sel.Confirmed.Remove(id)
			delete(m.draft.Guests, id)
			m.lastDropped = append(m.lastDropped, DroppedItem{Field: f, InstanceID: id})
			m.logger.Info().
				Str("field", string(f)).
				Str("instance", id).
				Msg("dropped confirmed item no longer available for new dates")
		}
	}
	if len(m.lastDropped) > 0 {
		m.bus.Publish(events.TypeItemsDropped, append([]DroppedItem(nil), m.lastDropped...))
	}
}

// rangeFields lists the selection fields constrained by the main date range
// of the given primary category.
func rangeFields(category models.ResourceCategory) []Field {
	switch category {
	case models.CategoryFunctionHall:
		return []Field{FieldHall}
	default:
		return []Field{FieldRooms}
	}
}
