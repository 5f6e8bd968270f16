package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"costamar/internal/models"
)

func day(date time.Time, available ...string) models.AvailabilityDay {
	return models.AvailabilityDay{
		Date:               date,
		AvailableInstances: models.NewInstanceSet(available...),
		BookedInstances:    models.NewInstanceSet(),
	}
}

func TestSnapshotCache(t *testing.T) {
	d := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("PutGet", func(t *testing.T) {
		c := New()
		_, ok := c.Get(models.CategoryRoom, d, 0)
		assert.False(t, ok)

		c.Put(models.CategoryRoom, d, 0, day(d, "room-01"))
		got, ok := c.Get(models.CategoryRoom, d, 0)
		assert.True(t, ok)
		assert.True(t, got.AvailableInstances.Has("room-01"))
	})

	t.Run("ExclusionIDIsPartOfKey", func(t *testing.T) {
		c := New()
		c.Put(models.CategoryRoom, d, 0, day(d))
		c.Put(models.CategoryRoom, d, 42, day(d, "room-01"))

		plain, ok := c.Get(models.CategoryRoom, d, 0)
		assert.True(t, ok)
		assert.False(t, plain.AvailableInstances.Has("room-01"))

		excluded, ok := c.Get(models.CategoryRoom, d, 42)
		assert.True(t, ok)
		assert.True(t, excluded.AvailableInstances.Has("room-01"))
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		c := New()
		c.Put(models.CategoryRoom, d, 0, day(d))
		c.Put(models.CategoryCottage, d, 0, day(d))
		c.InvalidateAll()
		assert.Zero(t, c.Len())
		// Idempotent.
		c.InvalidateAll()
		assert.Zero(t, c.Len())
	})

	t.Run("InvalidateCategory", func(t *testing.T) {
		c := New()
		c.Put(models.CategoryRoom, d, 0, day(d))
		c.Put(models.CategoryCottage, d, 0, day(d))
		c.InvalidateCategory(models.CategoryRoom)

		_, ok := c.Get(models.CategoryRoom, d, 0)
		assert.False(t, ok)
		_, ok = c.Get(models.CategoryCottage, d, 0)
		assert.True(t, ok)
	})
}
