// Package availability derives per-date and per-range availability for a
// resource category from an external data source, memoized through the
// snapshot cache.
package availability

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"costamar/internal/cache"
	"costamar/internal/catalog"
	"costamar/internal/metrics"
	"costamar/internal/models"
)

// Source supplies raw availability facts for a category over a date span.
// The returned map is keyed by models.DateKey; a missing date means the
// source had no data for it. One call may cover the whole span.
type Source interface {
	FetchAvailability(ctx context.Context, category models.ResourceCategory, start, endExclusive time.Time, excludeBookingID int64) (map[string]models.AvailabilityDay, error)
}

// Resolver computes range availability backed by the snapshot cache.
type Resolver struct {
	source  Source
	cache   *cache.SnapshotCache
	catalog *catalog.Catalog
	logger  *zerolog.Logger
}

// NewResolver constructs a resolver.
func NewResolver(source Source, snapshots *cache.SnapshotCache, cat *catalog.Catalog, logger *zerolog.Logger) *Resolver {
	return &Resolver{source: source, cache: snapshots, catalog: cat, logger: logger}
}

// Cache exposes the underlying snapshot cache so flow owners can invalidate
// it on category switches and booking mutations.
func (r *Resolver) Cache() *cache.SnapshotCache {
	return r.cache
}

// ResolveRange returns per-day availability for every date in
// [dateRange.Start, dateRange.EndExclusive) together with the intersection
// set of instances free on all of those days. A range that resolves to zero
// days constrains nothing: every catalog instance is range-available.
func (r *Resolver) ResolveRange(ctx context.Context, category models.ResourceCategory, dateRange models.DateRange, excludeBookingID int64) (models.RangeAvailability, error) {
	days := dateRange.Days()
	if category.SingleDay() && len(days) == 0 && !dateRange.Start.IsZero() {
		// Single-day categories encode the usage date as Start == EndExclusive.
		days = []time.Time{dateRange.Start}
	}
	return r.resolveDays(ctx, category, days, excludeBookingID)
}

// ResolveDates returns availability for an explicit, possibly
// non-contiguous list of days (the cottage multi-day case).
func (r *Resolver) ResolveDates(ctx context.Context, category models.ResourceCategory, dates []time.Time, excludeBookingID int64) (models.RangeAvailability, error) {
	normalized := make([]time.Time, len(dates))
	for i, d := range dates {
		normalized[i] = models.DateOnly(d)
	}
	return r.resolveDays(ctx, category, normalized, excludeBookingID)
}

// ResolveSingleInstanceOnDates reports whether the instance is free on every
// listed date. Used for contiguous ranges and for non-contiguous cottage days.
func (r *Resolver) ResolveSingleInstanceOnDates(ctx context.Context, category models.ResourceCategory, instanceID string, dates []time.Time, excludeBookingID int64) (bool, error) {
	ra, err := r.ResolveDates(ctx, category, dates, excludeBookingID)
	if err != nil {
		return false, err
	}
	for _, d := range dates {
		day, ok := ra.PerDay[models.DateKey(d)]
		if !ok || !day.AvailableInstances.Has(instanceID) {
			return false, nil
		}
	}
	return true, nil
}

func (r *Resolver) resolveDays(ctx context.Context, category models.ResourceCategory, days []time.Time, excludeBookingID int64) (models.RangeAvailability, error) {
	fullCatalog := r.catalog.InstanceIDs(category)
	result := models.RangeAvailability{
		PerDay:         make(map[string]models.AvailabilityDay, len(days)),
		RangeAvailable: fullCatalog.Clone(),
	}
	if len(days) == 0 {
		return result, nil
	}

	var missing []time.Time
	for _, d := range days {
		if day, ok := r.cache.Get(category, d, excludeBookingID); ok {
			result.PerDay[models.DateKey(d)] = day
		} else {
			missing = append(missing, d)
		}
	}

	if len(missing) > 0 {
		fetched, err := r.fetchSpan(ctx, category, missing, excludeBookingID)
		if err != nil {
			// Fail open: a degraded backend never blocks browsing. Every
			// missing day defaults to the full catalog; observable in logs
			// and metrics only.
			r.logger.Warn().Err(err).
				Str("category", string(category)).
				Bool("fail_open", true).
				Msg("availability fetch failed; defaulting to fully available")
			fetched = map[string]models.AvailabilityDay{}
		}
		for _, d := range missing {
			k := models.DateKey(d)
			day, ok := fetched[k]
			if !ok {
				metrics.IncFailOpen()
				r.logger.Warn().
					Str("category", string(category)).
					Str("date", k).
					Bool("fail_open", true).
					Msg("no availability data for date; defaulting to fully available")
				day = models.AvailabilityDay{
					Date:               d,
					AvailableInstances: fullCatalog.Clone(),
					BookedInstances:    make(models.InstanceSet),
				}
			} else {
				day = r.normalizeDay(d, day, fullCatalog)
			}
			r.cache.Put(category, d, excludeBookingID, day)
			result.PerDay[k] = day
		}
	}

	for _, d := range days {
		day := result.PerDay[models.DateKey(d)]
		result.RangeAvailable = result.RangeAvailable.Intersect(day.AvailableInstances)
	}
	return result, nil
}

// fetchSpan pulls one source call covering min..max of the missing days.
// Batching is an efficiency choice; correctness only needs the missing days
// to be present in the reply.
func (r *Resolver) fetchSpan(ctx context.Context, category models.ResourceCategory, missing []time.Time, excludeBookingID int64) (map[string]models.AvailabilityDay, error) {
	minDay, maxDay := missing[0], missing[0]
	for _, d := range missing[1:] {
		if d.Before(minDay) {
			minDay = d
		}
		if d.After(maxDay) {
			maxDay = d
		}
	}
	return r.source.FetchAvailability(ctx, category, minDay, maxDay.AddDate(0, 0, 1), excludeBookingID)
}

// normalizeDay enforces the partition invariant: every catalog instance is
// either available or booked, never both, never neither.
func (r *Resolver) normalizeDay(date time.Time, day models.AvailabilityDay, fullCatalog models.InstanceSet) models.AvailabilityDay {
	booked := make(models.InstanceSet)
	for id := range day.BookedInstances {
		if fullCatalog.Has(id) {
			booked.Add(id)
		}
	}
	available := make(models.InstanceSet)
	for id := range fullCatalog {
		if !booked.Has(id) {
			available.Add(id)
		}
	}
	return models.AvailabilityDay{
		Date:               models.DateOnly(date),
		AvailableInstances: available,
		BookedInstances:    booked,
	}
}
