// Package pricing computes deterministic cost breakdowns for finalized
// drafts. All rates come from configuration; identical input always yields
// an identical breakdown.
package pricing

import (
	"fmt"

	"costamar/internal/catalog"
	"costamar/internal/config"
	"costamar/internal/models"
	"costamar/internal/selection"
)

// CapacityError reports a function-hall guest count over the hard maximum.
// Guest counts above the recommended capacity are not errors; they add an
// auto-computed extra-seating line instead.
type CapacityError struct {
	GuestCount  int
	MaxCapacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("guest count %d exceeds hall maximum capacity %d", e.GuestCount, e.MaxCapacity)
}

// Calculator prices drafts from catalog and configured rates.
type Calculator struct {
	catalog *catalog.Catalog
	rates   *config.Config
}

// NewCalculator constructs a calculator.
func NewCalculator(cat *catalog.Catalog, cfg *config.Config) *Calculator {
	return &Calculator{catalog: cat, rates: cfg}
}

// ComputeCost prices the draft by reservation category. It never reads the
// clock or any state outside the draft, catalog and rates.
func (c *Calculator) ComputeCost(draft *selection.Draft) (models.CostBreakdown, error) {
	switch draft.Category {
	case models.CategoryRoom:
		return c.costRoom(draft)
	case models.CategoryCottage:
		return c.costCottage(draft)
	case models.CategoryFunctionHall:
		return c.costFunctionHall(draft)
	default:
		return models.CostBreakdown{}, fmt.Errorf("unknown reservation category %q", draft.Category)
	}
}

func (c *Calculator) costRoom(draft *selection.Draft) (models.CostBreakdown, error) {
	var out models.CostBreakdown

	nights := draft.Nights()
	roomCount := len(draft.Confirmed(selection.FieldRooms))
	roomTotal := int64(roomCount) * c.rates.Pricing.RoomNightlyRate * int64(nights)
	out.LineItems = append(out.LineItems, models.LineItem{
		Label:  fmt.Sprintf("%d room(s) × %d night(s)", roomCount, nights),
		Amount: roomTotal,
	})

	// Attached cottages are priced per rental day. When the user never
	// picked explicit cottage days the count defaults to the room nights;
	// the label carries the day count so the charge stays visible.
	addOns := draft.Confirmed(selection.FieldAddOnCottages)
	if len(addOns) > 0 {
		dayCount := draft.CottageDayCount()
		var perDay int64
		for _, id := range addOns.Sorted() {
			inst, err := c.catalog.Lookup(id)
			if err != nil {
				return models.CostBreakdown{}, err
			}
			perDay += inst.DayRate
		}
		out.LineItems = append(out.LineItems, models.LineItem{
			Label:  fmt.Sprintf("%d cottage(s) × %d day(s)", len(addOns), dayCount),
			Amount: perDay * int64(dayCount),
		})
	}

	out.Total = sum(out.LineItems)
	return out, nil
}

func (c *Calculator) costCottage(draft *selection.Draft) (models.CostBreakdown, error) {
	var out models.CostBreakdown

	dayCount := len(draft.SelectedDays)
	if dayCount == 0 {
		dayCount = 1
	}
	for _, id := range draft.Confirmed(selection.FieldCottages).Sorted() {
		inst, err := c.catalog.Lookup(id)
		if err != nil {
			return models.CostBreakdown{}, err
		}
		out.LineItems = append(out.LineItems, models.LineItem{
			Label:  fmt.Sprintf("%s × %d day(s)", inst.Name, dayCount),
			Amount: inst.DayRate * int64(dayCount),
		})
	}

	out.Total = sum(out.LineItems)
	return out, nil
}

func (c *Calculator) costFunctionHall(draft *selection.Draft) (models.CostBreakdown, error) {
	halls := draft.Confirmed(selection.FieldHall).Sorted()
	if len(halls) != 1 {
		return models.CostBreakdown{}, fmt.Errorf("function hall reservation needs exactly one hall, got %d", len(halls))
	}
	hall, err := c.catalog.Lookup(halls[0])
	if err != nil {
		return models.CostBreakdown{}, err
	}

	guests := draft.GuestCount
	if guests > hall.MaxCapacity {
		// Over the hard maximum is rejected, never silently priced.
		return models.CostBreakdown{}, &CapacityError{GuestCount: guests, MaxCapacity: hall.MaxCapacity}
	}

	var out models.CostBreakdown
	out.LineItems = append(out.LineItems, models.LineItem{
		Label:  hall.Name,
		Amount: hall.BasePrice,
	})

	eq := draft.Equipment
	if eq.SoundSystem {
		out.LineItems = append(out.LineItems, models.LineItem{Label: "Sound system", Amount: c.rates.Pricing.SoundSystem})
	}
	if eq.Projector {
		out.LineItems = append(out.LineItems, models.LineItem{Label: "Projector", Amount: c.rates.Pricing.Projector})
	}
	if eq.Catering {
		out.LineItems = append(out.LineItems, models.LineItem{
			Label:  fmt.Sprintf("Catering × %d guest(s)", guests),
			Amount: int64(guests) * c.rates.Pricing.CateringPerHead,
		})
	}

	// Extra seating above the recommended capacity is required, not
	// optional: one unit per started group of 10 extra guests.
	if guests > hall.RecommendedCapacity {
		units := (guests - hall.RecommendedCapacity + 9) / 10
		out.LineItems = append(out.LineItems, models.LineItem{
			Label:  fmt.Sprintf("Extra seating × %d unit(s)", units),
			Amount: int64(units) * c.rates.Pricing.ExtraSeatingPerUnit,
		})
	}

	// The manual extra-seating add-on stacks on top of the auto charge.
	if eq.ExtraSeating {
		out.LineItems = append(out.LineItems, models.LineItem{Label: "Additional seating", Amount: c.rates.Pricing.ExtraSeatingFlat})
	}
	if eq.LEDLighting {
		out.LineItems = append(out.LineItems, models.LineItem{Label: "LED lighting", Amount: c.rates.Pricing.LEDLighting})
	}

	out.Total = sum(out.LineItems)
	return out, nil
}

func sum(items []models.LineItem) int64 {
	var total int64
	for _, li := range items {
		total += li.Amount
	}
	return total
}
