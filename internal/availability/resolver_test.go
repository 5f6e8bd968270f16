package availability

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costamar/internal/cache"
	"costamar/internal/catalog"
	"costamar/internal/config"
	"costamar/internal/models"
)

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeSource simulates the backend: it derives per-day booked sets from a
// list of holdings, honoring the exclusion ID the way a real backend would.
type fakeSource struct {
	holdings []holding
	err      error
	calls    int
}

type holding struct {
	bookingID  int64
	instanceID string
	dates      []string
}

func (f *fakeSource) FetchAvailability(_ context.Context, category models.ResourceCategory, start, endExclusive time.Time, excludeBookingID int64) (map[string]models.AvailabilityDay, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
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

func newResolver(t *testing.T, source Source) *Resolver {
	t.Helper()
	logger := zerolog.New(io.Discard)
	return NewResolver(source, cache.New(), catalog.FromConfig(config.Default()), &logger)
}

func TestResolveRange(t *testing.T) {
	ctx := context.Background()

	t.Run("IntersectionLaw", func(t *testing.T) {
		// Room 02 booked on the middle night only: it must drop out of the
		// range intersection while the other three rooms stay.
		source := &fakeSource{holdings: []holding{
			{bookingID: 1, instanceID: "room-02", dates: []string{"2025-06-02"}},
		}}
		r := newResolver(t, source)

		ra, err := r.ResolveRange(ctx, models.CategoryRoom, models.NewDateRange(date("2025-06-01"), date("2025-06-03")), 0)
		require.NoError(t, err)

		assert.Equal(t, []string{"room-01", "room-03", "room-04"}, ra.RangeAvailable.Sorted())

		// rangeAvailable equals the intersection of per-day available sets.
		expect := models.NewInstanceSet("room-01", "room-02", "room-03", "room-04")
		for _, day := range ra.PerDay {
			expect = expect.Intersect(day.AvailableInstances)
		}
		assert.True(t, ra.RangeAvailable.Equal(expect))
	})

	t.Run("EmptyRangeConstrainsNothing", func(t *testing.T) {
		r := newResolver(t, &fakeSource{})
		ra, err := r.ResolveRange(ctx, models.CategoryRoom, models.NewDateRange(date("2025-06-01"), date("2025-06-01")), 0)
		require.NoError(t, err)
		assert.Len(t, ra.RangeAvailable, 4)
		assert.Empty(t, ra.PerDay)
	})

	t.Run("ExclusionSymmetry", func(t *testing.T) {
		source := &fakeSource{holdings: []holding{
			{bookingID: 42, instanceID: "room-01", dates: []string{"2025-06-01", "2025-06-02"}},
		}}
		r := newResolver(t, source)

		dr := models.NewDateRange(date("2025-06-01"), date("2025-06-03"))

		blocked, err := r.ResolveRange(ctx, models.CategoryRoom, dr, 0)
		require.NoError(t, err)
		assert.False(t, blocked.RangeAvailable.Has("room-01"))

		excluded, err := r.ResolveRange(ctx, models.CategoryRoom, dr, 42)
		require.NoError(t, err)
		assert.True(t, excluded.RangeAvailable.Has("room-01"))
	})

	t.Run("CachedDaysSkipFetch", func(t *testing.T) {
		source := &fakeSource{}
		r := newResolver(t, source)
		dr := models.NewDateRange(date("2025-06-01"), date("2025-06-04"))

		_, err := r.ResolveRange(ctx, models.CategoryRoom, dr, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, source.calls)

		_, err = r.ResolveRange(ctx, models.CategoryRoom, dr, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, source.calls)
	})

	t.Run("InvalidatedCacheRefetches", func(t *testing.T) {
		source := &fakeSource{}
		r := newResolver(t, source)
		dr := models.NewDateRange(date("2025-06-01"), date("2025-06-03"))

		_, err := r.ResolveRange(ctx, models.CategoryRoom, dr, 0)
		require.NoError(t, err)

		// Simulate a successful booking mutation.
		source.holdings = append(source.holdings, holding{bookingID: 9, instanceID: "room-03", dates: []string{"2025-06-01"}})
		r.Cache().InvalidateAll()

		ra, err := r.ResolveRange(ctx, models.CategoryRoom, dr, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, source.calls)
		assert.False(t, ra.RangeAvailable.Has("room-03"))
	})
}

func TestFailOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("SourceError", func(t *testing.T) {
		r := newResolver(t, &fakeSource{err: errors.New("backend down")})
		ra, err := r.ResolveRange(ctx, models.CategoryRoom, models.NewDateRange(date("2025-06-01"), date("2025-06-03")), 0)
		require.NoError(t, err)
		// Degraded backend never blocks browsing.
		assert.Len(t, ra.RangeAvailable, 4)
	})

	t.Run("MissingDateDefaultsToFullCatalog", func(t *testing.T) {
		// Source answers only for the first day of the span.
		source := &partialSource{answered: "2025-06-01"}
		r := newResolver(t, source)
		ra, err := r.ResolveRange(ctx, models.CategoryRoom, models.NewDateRange(date("2025-06-01"), date("2025-06-03")), 0)
		require.NoError(t, err)

		day, ok := ra.PerDay["2025-06-02"]
		require.True(t, ok)
		assert.Len(t, day.AvailableInstances, 4)
		assert.Empty(t, day.BookedInstances)
	})
}

type partialSource struct {
	answered string
}

func (p *partialSource) FetchAvailability(_ context.Context, _ models.ResourceCategory, start, _ time.Time, _ int64) (map[string]models.AvailabilityDay, error) {
	return map[string]models.AvailabilityDay{
		p.answered: {Date: start, BookedInstances: models.NewInstanceSet("room-04")},
	}, nil
}

func TestResolveSingleInstanceOnDates(t *testing.T) {
	ctx := context.Background()

	t.Run("NonContiguousCottageDays", func(t *testing.T) {
		// Family Cottage is taken by someone else on 06-03 only.
		source := &fakeSource{holdings: []holding{
			{bookingID: 5, instanceID: "family-cottage", dates: []string{"2025-06-03"}},
		}}
		r := newResolver(t, source)

		days := []time.Time{date("2025-06-01"), date("2025-06-03"), date("2025-06-05")}
		ok, err := r.ResolveSingleInstanceOnDates(ctx, models.CategoryCottage, "family-cottage", days, 0)
		require.NoError(t, err)
		assert.False(t, ok)

		free, err := r.ResolveSingleInstanceOnDates(ctx, models.CategoryCottage, "garden-cottage", days, 0)
		require.NoError(t, err)
		assert.True(t, free)
	})

	t.Run("ExcludedBookingDoesNotBlock", func(t *testing.T) {
		source := &fakeSource{holdings: []holding{
			{bookingID: 42, instanceID: "family-cottage", dates: []string{"2025-06-03"}},
		}}
		r := newResolver(t, source)

		days := []time.Time{date("2025-06-03")}
		ok, err := r.ResolveSingleInstanceOnDates(ctx, models.CategoryCottage, "family-cottage", days, 42)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
