package selection

import (
	"costamar/internal/catalog"
	"costamar/internal/models"
)

// NewDraftFromBooking builds a draft pre-populated from an existing booking
// for re-edit mode. The booking's own ID is carried as EditingBookingID so
// availability resolution excludes it from counting against itself.
func NewDraftFromBooking(b *models.Booking, cat *catalog.Catalog) *Draft {
	draft := NewDraft(b.Category)
	draft.EditingBookingID = b.ID
	draft.PaymentMode = b.PaymentMode
	draft.GuestCount = b.GuestCount
	draft.EventDetails = b.EventDetails

	switch b.Category {
	case models.CategoryCottage:
		draft.SelectedDays = normalizeDays(b.UsageDates)
	default:
		draft.Range = models.NewDateRange(b.CheckIn, b.CheckOut)
		if len(b.UsageDates) > 0 {
			draft.AddOnCottageDays = normalizeDays(b.UsageDates)
		}
	}

	for _, id := range b.InstanceIDs {
		inst, err := cat.Lookup(id)
		if err != nil {
			// Instances removed from the catalog since the booking was
			// made cannot be re-selected; they are simply not restored.
			continue
		}
		var f Field
		switch {
		case b.Category == models.CategoryCottage:
			f = FieldCottages
		case inst.Category == models.CategoryCottage:
			f = FieldAddOnCottages
		case inst.Category == models.CategoryFunctionHall:
			f = FieldHall
		default:
			f = FieldRooms
		}
		draft.AddConfirmed(f, id)
	}

	for id, alloc := range b.Guests {
		draft.Guests[id] = alloc
	}
	return draft
}

// NewDraftFromRecord restores a draft from a raw persisted record, possibly
// in a legacy shape. Normalization happens here at the boundary so the draft
// and state machine never see legacy field names.
func NewDraftFromRecord(raw map[string]any, cat *catalog.Catalog) (*Draft, error) {
	b, err := models.NormalizeRecord(raw)
	if err != nil {
		return nil, err
	}
	return NewDraftFromBooking(b, cat), nil
}
