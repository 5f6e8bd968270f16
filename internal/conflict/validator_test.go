package conflict

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costamar/internal/availability"
	"costamar/internal/cache"
	"costamar/internal/catalog"
	"costamar/internal/config"
	"costamar/internal/models"
	"costamar/internal/selection"
)

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// holdingSource simulates backend occupancy per booking, honoring the
// exclusion ID.
type holdingSource struct {
	holdings []holding
}

type holding struct {
	bookingID  int64
	instanceID string
	dates      []string
}

func (f *holdingSource) FetchAvailability(_ context.Context, _ models.ResourceCategory, start, endExclusive time.Time, excludeBookingID int64) (map[string]models.AvailabilityDay, error) {
	out := make(map[string]models.AvailabilityDay)
	for d := start; d.Before(endExclusive); d = d.AddDate(0, 0, 1) {
		k := models.DateKey(d)
		booked := make(models.InstanceSet)
		for _, h := range f.holdings {
			if h.bookingID == excludeBookingID {
				continue
			}
			for _, hd := range h.dates {
				if hd == k {
					booked.Add(h.instanceID)
				}
			}
		}
		out[k] = models.AvailabilityDay{Date: d, BookedInstances: booked}
	}
	return out, nil
}

func newValidator(t *testing.T, source availability.Source) *Validator {
	t.Helper()
	logger := zerolog.New(io.Discard)
	resolver := availability.NewResolver(source, cache.New(), catalog.FromConfig(config.Default()), &logger)
	return NewValidator(resolver)
}

func TestValidateBeforeSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("AllAvailable", func(t *testing.T) {
		v := newValidator(t, &holdingSource{})
		draft := selection.NewDraft(models.CategoryRoom)
		draft.Range = models.NewDateRange(date("2025-06-01"), date("2025-06-03"))
		draft.AddConfirmed(selection.FieldRooms, "room-01", "room-02")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.True(t, report.OverallAvailable)
		assert.Empty(t, report.Unavailable)
	})

	t.Run("ReportsInstanceAndDates", func(t *testing.T) {
		v := newValidator(t, &holdingSource{holdings: []holding{
			{bookingID: 1, instanceID: "room-02", dates: []string{"2025-06-02"}},
		}})
		draft := selection.NewDraft(models.CategoryRoom)
		draft.Range = models.NewDateRange(date("2025-06-01"), date("2025-06-03"))
		draft.AddConfirmed(selection.FieldRooms, "room-01", "room-02")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.False(t, report.OverallAvailable)
		require.Len(t, report.Unavailable, 1)
		assert.Equal(t, "room-02", report.Unavailable[0].InstanceID)
		require.Len(t, report.Unavailable[0].ConflictingDates, 1)
		assert.Equal(t, "2025-06-02", models.DateKey(report.Unavailable[0].ConflictingDates[0]))
	})

	t.Run("CottageNonContiguousDays", func(t *testing.T) {
		// Family Cottage booked by someone else on 06-03 only; the user
		// selected 06-01, 06-03 and 06-05.
		v := newValidator(t, &holdingSource{holdings: []holding{
			{bookingID: 8, instanceID: "family-cottage", dates: []string{"2025-06-03"}},
		}})
		draft := selection.NewDraft(models.CategoryCottage)
		draft.SelectedDays = []time.Time{date("2025-06-01"), date("2025-06-03"), date("2025-06-05")}
		draft.AddConfirmed(selection.FieldCottages, "family-cottage")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.False(t, report.OverallAvailable)
		require.Len(t, report.Unavailable, 1)
		require.Len(t, report.Unavailable[0].ConflictingDates, 1)
		assert.Equal(t, "2025-06-03", models.DateKey(report.Unavailable[0].ConflictingDates[0]))
	})

	t.Run("CottageInBetweenDaysDoNotCount", func(t *testing.T) {
		// Booked on 06-02 and 06-04, which sit inside the min/max span but
		// are not selected days: no conflict.
		v := newValidator(t, &holdingSource{holdings: []holding{
			{bookingID: 8, instanceID: "family-cottage", dates: []string{"2025-06-02", "2025-06-04"}},
		}})
		draft := selection.NewDraft(models.CategoryCottage)
		draft.SelectedDays = []time.Time{date("2025-06-01"), date("2025-06-03"), date("2025-06-05")}
		draft.AddConfirmed(selection.FieldCottages, "family-cottage")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.True(t, report.OverallAvailable)
	})

	t.Run("EditedBookingDoesNotConflictWithItself", func(t *testing.T) {
		v := newValidator(t, &holdingSource{holdings: []holding{
			{bookingID: 42, instanceID: "room-01", dates: []string{"2025-06-01", "2025-06-02"}},
		}})
		draft := selection.NewDraft(models.CategoryRoom)
		draft.Range = models.NewDateRange(date("2025-06-01"), date("2025-06-03"))
		draft.EditingBookingID = 42
		draft.AddConfirmed(selection.FieldRooms, "room-01")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.True(t, report.OverallAvailable)
	})

	t.Run("FunctionHallRechecked", func(t *testing.T) {
		v := newValidator(t, &holdingSource{holdings: []holding{
			{bookingID: 3, instanceID: "grand-pavilion", dates: []string{"2025-06-01"}},
		}})
		draft := selection.NewDraft(models.CategoryFunctionHall)
		draft.Range = models.NewDateRange(date("2025-06-01"), date("2025-06-02"))
		draft.AddConfirmed(selection.FieldHall, "grand-pavilion")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.False(t, report.OverallAvailable)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		v := newValidator(t, &holdingSource{})
		draft := selection.NewDraft("villa")

		_, err := v.ValidateBeforeSubmit(ctx, draft)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown reservation category")
	})

	t.Run("AddOnCottagesValidatedOnTheirOwnDays", func(t *testing.T) {
		// Cottage booked on 06-02; the add-on rents it only on 06-01, so
		// the room booking's wider range must not flag it.
		v := newValidator(t, &holdingSource{holdings: []holding{
			{bookingID: 2, instanceID: "garden-cottage", dates: []string{"2025-06-02"}},
		}})
		draft := selection.NewDraft(models.CategoryRoom)
		draft.Range = models.NewDateRange(date("2025-06-01"), date("2025-06-03"))
		draft.AddOnCottageDays = []time.Time{date("2025-06-01")}
		draft.AddConfirmed(selection.FieldRooms, "room-01")
		draft.AddConfirmed(selection.FieldAddOnCottages, "garden-cottage")

		report, err := v.ValidateBeforeSubmit(ctx, draft)
		require.NoError(t, err)
		assert.True(t, report.OverallAvailable)
	})
}
