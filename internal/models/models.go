// Package models defines the core reservation data model shared by the
// availability, selection, pricing and booking packages.
package models

import (
	"fmt"
	"sort"
	"time"
)

// DateFormat is the canonical wire/storage format for calendar dates.
const DateFormat = "2006-01-02"

// ResourceCategory identifies a class of bookable resources.
type ResourceCategory string

const (
	CategoryRoom         ResourceCategory = "room"
	CategoryCottage      ResourceCategory = "cottage"
	CategoryFunctionHall ResourceCategory = "function_hall"
)

// Valid reports whether the category is one of the known values.
func (c ResourceCategory) Valid() bool {
	switch c {
	case CategoryRoom, CategoryCottage, CategoryFunctionHall:
		return true
	}
	return false
}

// SingleDay reports whether bookings in this category are made per calendar
// day rather than as a check-in/check-out range. Cottages may be reserved on
// a non-contiguous set of individual days.
func (c ResourceCategory) SingleDay() bool {
	return c == CategoryCottage
}

// DateOnly normalizes t to midnight UTC, discarding the time component.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date as YYYY-MM-DD for use as a map key.
func DateKey(t time.Time) string {
	return t.Format(DateFormat)
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DateRange is a half-open [Start, EndExclusive) span of calendar days.
// For single-day categories Start == EndExclusive == the usage date.
type DateRange struct {
	Start        time.Time
	EndExclusive time.Time
}

// NewDateRange normalizes both bounds to date-only values.
func NewDateRange(start, endExclusive time.Time) DateRange {
	return DateRange{Start: DateOnly(start), EndExclusive: DateOnly(endExclusive)}
}

// Days enumerates every calendar day in the range, oldest first.
// An empty or inverted range yields no days.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; d.Before(r.EndExclusive); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Nights is the number of nights covered by the range.
func (r DateRange) Nights() int {
	if !r.Start.Before(r.EndExclusive) {
		return 0
	}
	return int(r.EndExclusive.Sub(r.Start).Hours() / 24)
}

// IsZero reports whether both bounds are unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.EndExclusive.IsZero()
}

// Contains reports whether the range covers the given date.
func (r DateRange) Contains(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(r.Start) && d.Before(r.EndExclusive)
}

// InstanceSet is a set of instance IDs.
type InstanceSet map[string]struct{}

// NewInstanceSet builds a set from the given IDs.
func NewInstanceSet(ids ...string) InstanceSet {
	s := make(InstanceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s InstanceSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s InstanceSet) Add(id string) { s[id] = struct{}{} }

// Remove deletes id from the set.
func (s InstanceSet) Remove(id string) { delete(s, id) }

// Clone returns an independent copy of the set.
func (s InstanceSet) Clone() InstanceSet {
	c := make(InstanceSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold exactly the same IDs.
func (s InstanceSet) Equal(other InstanceSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Intersect returns the intersection of both sets.
func (s InstanceSet) Intersect(other InstanceSet) InstanceSet {
	out := make(InstanceSet)
	for id := range s {
		if other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the IDs in lexical order.
func (s InstanceSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AvailabilityDay holds the availability facts for one category on one date.
// Every catalog instance appears in exactly one of the two sets.
type AvailabilityDay struct {
	Date               time.Time
	AvailableInstances InstanceSet
	BookedInstances    InstanceSet
}

// RangeAvailability is the per-day availability over a date range plus the
// intersection set of instances free on every day.
type RangeAvailability struct {
	PerDay         map[string]AvailabilityDay // keyed by DateKey
	RangeAvailable InstanceSet
}

// GuestAllocation describes who occupies a single booked instance.
type GuestAllocation struct {
	Adults    int    `json:"adults"`
	Children  int    `json:"children"`
	GuestName string `json:"guest_name,omitempty"`
}

// Booking is a persisted reservation record.
type Booking struct {
	ID           int64                      `json:"id"`
	Reference    string                     `json:"reference"`
	Category     ResourceCategory           `json:"category"`
	CheckIn      time.Time                  `json:"check_in"`
	CheckOut     time.Time                  `json:"check_out"`
	UsageDates   []time.Time                `json:"usage_dates,omitempty"` // cottages: possibly non-contiguous
	InstanceIDs  []string                   `json:"instance_ids"`
	Guests       map[string]GuestAllocation `json:"guests,omitempty"`
	GuestCount   int                        `json:"guest_count,omitempty"` // function halls
	PaymentMode  string                     `json:"payment_mode"`
	TotalCost    int64                      `json:"total_cost"`
	Status       string                     `json:"status"` // pending, confirmed, cancelled
	EventDetails string                     `json:"event_details,omitempty"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// OccupiedDates returns every calendar day the booking holds its instances,
// as date-only values. Range bookings expand [CheckIn, CheckOut); single-day
// bookings return their usage dates.
func (b *Booking) OccupiedDates() []time.Time {
	if len(b.UsageDates) > 0 {
		out := make([]time.Time, len(b.UsageDates))
		for i, d := range b.UsageDates {
			out[i] = DateOnly(d)
		}
		return out
	}
	return NewDateRange(b.CheckIn, b.CheckOut).Days()
}

// HoldsInstanceOn reports whether the booking occupies the instance on date.
func (b *Booking) HoldsInstanceOn(instanceID string, date time.Time) bool {
	held := false
	for _, id := range b.InstanceIDs {
		if id == instanceID {
			held = true
			break
		}
	}
	if !held {
		return false
	}
	d := DateOnly(date)
	for _, od := range b.OccupiedDates() {
		if od.Equal(d) {
			return true
		}
	}
	return false
}

// InstanceConflict names one instance together with the dates it is taken.
type InstanceConflict struct {
	InstanceID       string      `json:"instance_id"`
	ConflictingDates []time.Time `json:"conflicting_dates"`
}

// ConflictReport is the result of submit-time re-validation.
type ConflictReport struct {
	Unavailable []InstanceConflict `json:"unavailable"`
	// OverallAvailable is true iff Unavailable is empty.
	OverallAvailable bool `json:"overall_available"`
}

// LineItem is a single priced entry in a cost breakdown.
type LineItem struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// CostBreakdown is the priced result for a finalized draft.
type CostBreakdown struct {
	LineItems []LineItem `json:"line_items"`
	Total     int64      `json:"total"`
}
