package booking

import (
	"time"

	"github.com/google/uuid"

	"costamar/internal/models"
	"costamar/internal/selection"
)

// buildPayload shapes the category-specific booking record from a validated
// draft and its computed cost. No partial payload is ever produced: the
// caller only reaches this step after validation and pricing both passed.
func buildPayload(draft *selection.Draft, cost models.CostBreakdown) *models.Booking {
	b := &models.Booking{
		Reference:   uuid.NewString(),
		Category:    draft.Category,
		PaymentMode: draft.PaymentMode,
		TotalCost:   cost.Total,
		Status:      "pending",
	}

	switch draft.Category {
	case models.CategoryRoom:
		b.CheckIn = draft.Range.Start
		b.CheckOut = draft.Range.EndExclusive
		b.InstanceIDs = draft.Confirmed(selection.FieldRooms).Sorted()
		b.InstanceIDs = append(b.InstanceIDs, draft.Confirmed(selection.FieldAddOnCottages).Sorted()...)
		b.Guests = copyGuests(draft.Guests)
		if days := draft.AddOnCottageDays; len(days) > 0 {
			b.UsageDates = append([]time.Time(nil), days...)
		}
	case models.CategoryCottage:
		b.UsageDates = append([]time.Time(nil), draft.SelectedDays...)
		if n := len(draft.SelectedDays); n > 0 {
			b.CheckIn = draft.SelectedDays[0]
			b.CheckOut = draft.SelectedDays[n-1].AddDate(0, 0, 1)
		}
		b.InstanceIDs = draft.Confirmed(selection.FieldCottages).Sorted()
		b.Guests = copyGuests(draft.Guests)
	case models.CategoryFunctionHall:
		b.CheckIn = draft.Range.Start
		b.CheckOut = draft.Range.EndExclusive
		b.InstanceIDs = draft.Confirmed(selection.FieldHall).Sorted()
		b.GuestCount = draft.GuestCount
		b.EventDetails = draft.EventDetails
	}

	return b
}

func copyGuests(guests map[string]models.GuestAllocation) map[string]models.GuestAllocation {
	if len(guests) == 0 {
		return nil
	}
	out := make(map[string]models.GuestAllocation, len(guests))
	for id, alloc := range guests {
		out[id] = alloc
	}
	return out
}
