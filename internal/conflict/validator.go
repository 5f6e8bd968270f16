// Package conflict re-validates a draft against live availability right
// before submission, because availability can change between browse time
// and submit time.
package conflict

import (
	"context"
	"fmt"
	"time"

	"costamar/internal/availability"
	"costamar/internal/models"
	"costamar/internal/selection"
)

// Validator diffs a draft's confirmed items against freshly resolved
// availability.
type Validator struct {
	resolver *availability.Resolver
}

// NewValidator constructs a validator over the given resolver.
func NewValidator(resolver *availability.Resolver) *Validator {
	return &Validator{resolver: resolver}
}

// Resolver returns the resolver the validator re-queries, so the submission
// coordinator can reach its cache for post-mutation invalidation.
func (v *Validator) Resolver() *availability.Resolver {
	return v.resolver
}

// ValidateBeforeSubmit re-resolves availability for the draft's final dates
// and reports, per instance, every date the instance is no longer free on.
// The draft's own booking (re-edit case) is excluded so it never conflicts
// with itself. A non-empty report must block submission.
func (v *Validator) ValidateBeforeSubmit(ctx context.Context, draft *selection.Draft) (models.ConflictReport, error) {
	report := models.ConflictReport{OverallAvailable: true}

	switch draft.Category {
	case models.CategoryRoom:
		if err := v.checkField(ctx, draft, selection.FieldRooms, draft.Range.Days(), &report); err != nil {
			return report, err
		}
		// Attached cottages are validated against their own rental days,
		// defaulting to the room range when none were chosen explicitly.
		cottageDays := draft.AddOnCottageDays
		if len(cottageDays) == 0 {
			cottageDays = draft.Range.Days()
		}
		if err := v.checkField(ctx, draft, selection.FieldAddOnCottages, cottageDays, &report); err != nil {
			return report, err
		}
	case models.CategoryCottage:
		// Exactly the user-selected rental days, never the span between
		// the first and last day.
		if err := v.checkField(ctx, draft, selection.FieldCottages, draft.SelectedDays, &report); err != nil {
			return report, err
		}
	case models.CategoryFunctionHall:
		if err := v.checkField(ctx, draft, selection.FieldHall, draft.Range.Days(), &report); err != nil {
			return report, err
		}
	default:
		return report, fmt.Errorf("unknown reservation category %q", draft.Category)
	}

	report.OverallAvailable = len(report.Unavailable) == 0
	return report, nil
}

func (v *Validator) checkField(ctx context.Context, draft *selection.Draft, field selection.Field, dates []time.Time, report *models.ConflictReport) error {
	confirmed := draft.Confirmed(field)
	if len(confirmed) == 0 || len(dates) == 0 {
		return nil
	}

	ra, err := v.resolver.ResolveDates(ctx, field.Category(), dates, draft.EditingBookingID)
	if err != nil {
		return fmt.Errorf("resolve %s availability: %w", field, err)
	}

	for _, id := range confirmed.Sorted() {
		var conflicting []time.Time
		for _, d := range dates {
			day, ok := ra.PerDay[models.DateKey(d)]
			if !ok || !day.AvailableInstances.Has(id) {
				conflicting = append(conflicting, models.DateOnly(d))
			}
		}
		if len(conflicting) > 0 {
			report.Unavailable = append(report.Unavailable, models.InstanceConflict{
				InstanceID:       id,
				ConflictingDates: conflicting,
			})
		}
	}
	return nil
}
