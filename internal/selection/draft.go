// Package selection holds the reservation-in-progress model and the state
// machine that governs tentative item selection.
package selection

import (
	"sort"
	"time"

	"costamar/internal/models"
)

// Field identifies one independently-editable selection list on the form.
type Field string

const (
	// FieldRooms is the primary room list of a room reservation.
	FieldRooms Field = "rooms"
	// FieldCottages is the primary cottage list of a cottage-only reservation.
	FieldCottages Field = "cottages"
	// FieldAddOnCottages is the cottage add-on list attached to a room stay.
	FieldAddOnCottages Field = "addon_cottages"
	// FieldHall is the function hall choice.
	FieldHall Field = "hall"
)

// Category returns the resource category the field selects from.
func (f Field) Category() models.ResourceCategory {
	switch f {
	case FieldCottages, FieldAddOnCottages:
		return models.CategoryCottage
	case FieldHall:
		return models.CategoryFunctionHall
	default:
		return models.CategoryRoom
	}
}

// ItemSelection is the confirmed item set of one field plus an optional
// tentative edit. Pending is nil when no edit is in progress.
type ItemSelection struct {
	Confirmed models.InstanceSet
	Pending   models.InstanceSet
}

// Controls says which of the Confirm/Close buttons a renderer should show
// for a field. Both hidden when no tentative edit is open; Confirm only when
// the pending set actually differs from the confirmed one.
type Controls struct {
	ShowConfirm bool
	ShowClose   bool
}

// Equipment lists the function-hall add-ons a user can attach to an event.
// ExtraSeating is the manual flat add-on; the auto-computed extra seating
// for over-capacity guest counts is derived at pricing time, not stored.
type Equipment struct {
	SoundSystem  bool
	Projector    bool
	Catering     bool
	ExtraSeating bool
	LEDLighting  bool
}

// Draft is a reservation in progress. It is owned exclusively by the single
// active booking flow; no two flows share a draft.
type Draft struct {
	Category models.ResourceCategory

	// Range covers room and function-hall reservations ([check-in, check-out)).
	Range models.DateRange
	// SelectedDays covers cottage reservations: sorted, unique, possibly
	// non-contiguous calendar days.
	SelectedDays []time.Time
	// AddOnCottageDays are the explicit rental days for cottages attached to
	// a room stay. Empty means the cottage day count defaults to the room
	// nights; CottageDaysDefaulted records that the default was applied.
	AddOnCottageDays     []time.Time
	CottageDaysDefaulted bool

	fields map[Field]*ItemSelection

	Guests           map[string]models.GuestAllocation
	GuestCount       int
	Equipment        Equipment
	PaymentMode      string
	EditingBookingID int64
	PackageID        string
	EventDetails     string
}

// NewDraft creates an empty draft for a category.
func NewDraft(category models.ResourceCategory) *Draft {
	return &Draft{
		Category: category,
		fields:   make(map[Field]*ItemSelection),
		Guests:   make(map[string]models.GuestAllocation),
	}
}

func (d *Draft) field(f Field) *ItemSelection {
	sel, ok := d.fields[f]
	if !ok {
		sel = &ItemSelection{Confirmed: make(models.InstanceSet)}
		d.fields[f] = sel
	}
	return sel
}

// Confirmed returns the confirmed item set of a field.
func (d *Draft) Confirmed(f Field) models.InstanceSet {
	return d.field(f).Confirmed
}

// Pending returns the tentative item set of a field, nil if none is open.
func (d *Draft) Pending(f Field) models.InstanceSet {
	return d.field(f).Pending
}

// AddConfirmed inserts items directly into a field's confirmed set,
// bypassing the pending cycle. Used when restoring a draft from a persisted
// booking; interactive edits go through the state machine instead.
func (d *Draft) AddConfirmed(f Field, ids ...string) {
	sel := d.field(f)
	for _, id := range ids {
		sel.Confirmed.Add(id)
	}
}

// SetGuests records the guest allocation for one instance.
func (d *Draft) SetGuests(instanceID string, alloc models.GuestAllocation) {
	d.Guests[instanceID] = alloc
}

// Nights returns the night count of the draft's date range.
func (d *Draft) Nights() int {
	return d.Range.Nights()
}

// CottageDayCount returns the number of rental days to price attached
// cottages at: the explicit add-on days if any were picked, otherwise the
// room nights.
func (d *Draft) CottageDayCount() int {
	if len(d.AddOnCottageDays) > 0 {
		return len(d.AddOnCottageDays)
	}
	return d.Nights()
}

// ValidationDates returns the calendar days the draft's items must be free
// on: the selected days for cottages, the expanded range otherwise.
func (d *Draft) ValidationDates() []time.Time {
	if d.Category.SingleDay() {
		return d.SelectedDays
	}
	return d.Range.Days()
}

// normalizeDays sorts, dedupes and date-normalizes a day list.
func normalizeDays(days []time.Time) []time.Time {
	seen := make(map[string]struct{}, len(days))
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		nd := models.DateOnly(d)
		k := models.DateKey(nd)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, nd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
