package selection

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
	"costamar/internal/events"
	"costamar/internal/models"
)

func date(s string) time.Time {
	t, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// stubSource serves fixed booked sets per date key.
type stubSource struct {
	bookedByDate map[string][]string
	calls        int
}

func (s *stubSource) FetchAvailability(_ context.Context, _ models.ResourceCategory, start, endExclusive time.Time, _ int64) (map[string]models.AvailabilityDay, error) {
	s.calls++
	out := make(map[string]models.AvailabilityDay)
	for d := start; d.Before(endExclusive); d = d.AddDate(0, 0, 1) {
		k := models.DateKey(d)
		out[k] = models.AvailabilityDay{
			Date:            d,
			BookedInstances: models.NewInstanceSet(s.bookedByDate[k]...),
		}
	}
	return out, nil
}

func newTestMachine(t *testing.T, category models.ResourceCategory, source availability.Source) (*Machine, *events.Bus) {
	t.Helper()
	if source == nil {
		source = &stubSource{}
	}
	logger := zerolog.New(io.Discard)
	resolver := availability.NewResolver(source, cache.New(), catalog.FromConfig(config.Default()), &logger)
	bus := events.NewBus()
	return NewMachine(NewDraft(category), resolver, bus, &logger), bus
}

func TestPendingLifecycle(t *testing.T) {
	t.Run("OpenSeedsPendingFromConfirmed", func(t *testing.T) {
		m, _ := newTestMachine(t, models.CategoryRoom, nil)
		m.Draft().field(FieldRooms).Confirmed = models.NewInstanceSet("room-01")

		m.OpenField(FieldRooms)
		require.NotNil(t, m.Draft().Pending(FieldRooms))
		assert.True(t, m.Draft().Pending(FieldRooms).Has("room-01"))

		// Mutating pending never touches confirmed.
		require.NoError(t, m.TogglePendingItem(FieldRooms, "room-02"))
		assert.False(t, m.Draft().Confirmed(FieldRooms).Has("room-02"))
	})

	t.Run("ToggleInvolution", func(t *testing.T) {
		m, _ := newTestMachine(t, models.CategoryRoom, nil)
		m.OpenField(FieldRooms)
		before := m.Draft().Pending(FieldRooms).Clone()

		require.NoError(t, m.TogglePendingItem(FieldRooms, "room-03"))
		require.NoError(t, m.TogglePendingItem(FieldRooms, "room-03"))
		assert.True(t, m.Draft().Pending(FieldRooms).Equal(before))
	})

	t.Run("ToggleWithoutOpenFails", func(t *testing.T) {
		m, _ := newTestMachine(t, models.CategoryRoom, nil)
		assert.Error(t, m.TogglePendingItem(FieldRooms, "room-01"))
	})

	t.Run("ConfirmPromotesAndCloses", func(t *testing.T) {
		m, bus := newTestMachine(t, models.CategoryRoom, nil)
		var confirmed bool
		bus.Subscribe(events.TypeSelectionConfirmed, func(events.Event) { confirmed = true })

		m.OpenField(FieldRooms)
		require.NoError(t, m.TogglePendingItem(FieldRooms, "room-01"))
		m.Confirm(FieldRooms)

		assert.True(t, m.Draft().Confirmed(FieldRooms).Has("room-01"))
		assert.Nil(t, m.Draft().Pending(FieldRooms))
		assert.True(t, confirmed)
	})

	t.Run("CancelDiscardsPending", func(t *testing.T) {
		m, _ := newTestMachine(t, models.CategoryRoom, nil)
		m.Draft().field(FieldRooms).Confirmed = models.NewInstanceSet("room-01")

		m.OpenField(FieldRooms)
		require.NoError(t, m.TogglePendingItem(FieldRooms, "room-02"))
		m.Cancel(FieldRooms)

		assert.Nil(t, m.Draft().Pending(FieldRooms))
		assert.Equal(t, []string{"room-01"}, m.Draft().Confirmed(FieldRooms).Sorted())
	})

	t.Run("PendingIdempotence", func(t *testing.T) {
		// confirm() after cancel() with no toggles in between must not
		// change confirmed items.
		m, _ := newTestMachine(t, models.CategoryRoom, nil)
		m.Draft().field(FieldRooms).Confirmed = models.NewInstanceSet("room-01")

		m.OpenField(FieldRooms)
		m.Cancel(FieldRooms)
		m.Confirm(FieldRooms)
		assert.Equal(t, []string{"room-01"}, m.Draft().Confirmed(FieldRooms).Sorted())
	})

	t.Run("CloseBehavesLikeCancel", func(t *testing.T) {
		m, _ := newTestMachine(t, models.CategoryRoom, nil)
		m.OpenField(FieldRooms)
		require.NoError(t, m.TogglePendingItem(FieldRooms, "room-02"))
		m.Close(FieldRooms)
		assert.Nil(t, m.Draft().Pending(FieldRooms))
		assert.Empty(t, m.Draft().Confirmed(FieldRooms))
	})
}

func TestControls(t *testing.T) {
	m, _ := newTestMachine(t, models.CategoryRoom, nil)

	// No pending edit: both controls hidden.
	assert.Equal(t, Controls{}, m.Controls(FieldRooms))

	// Open but unchanged: Close shown, Confirm hidden.
	m.OpenField(FieldRooms)
	assert.Equal(t, Controls{ShowClose: true}, m.Controls(FieldRooms))

	// Changed: Confirm shown, Close hidden.
	require.NoError(t, m.TogglePendingItem(FieldRooms, "room-01"))
	assert.Equal(t, Controls{ShowConfirm: true}, m.Controls(FieldRooms))

	// Toggled back: unchanged again.
	require.NoError(t, m.TogglePendingItem(FieldRooms, "room-01"))
	assert.Equal(t, Controls{ShowClose: true}, m.Controls(FieldRooms))
}

func TestSetDateRange(t *testing.T) {
	ctx := context.Background()

	t.Run("DropsItemsNoLongerAvailable", func(t *testing.T) {
		source := &stubSource{bookedByDate: map[string][]string{
			"2025-06-02": {"room-02"},
		}}
		m, bus := newTestMachine(t, models.CategoryRoom, source)
		m.Draft().field(FieldRooms).Confirmed = models.NewInstanceSet("room-01", "room-02")

		var dropped []DroppedItem
		bus.Subscribe(events.TypeItemsDropped, func(e events.Event) {
			dropped = e.Payload.([]DroppedItem)
		})

		err := m.SetDateRange(ctx, models.NewDateRange(date("2025-06-01"), date("2025-06-03")))
		require.NoError(t, err)

		assert.Equal(t, []string{"room-01"}, m.Draft().Confirmed(FieldRooms).Sorted())
		require.Len(t, dropped, 1)
		assert.Equal(t, "room-02", dropped[0].InstanceID)
		assert.Equal(t, dropped, m.LastDropped())
	})

	t.Run("InvalidatesCategoryCache", func(t *testing.T) {
		source := &stubSource{}
		m, _ := newTestMachine(t, models.CategoryRoom, source)
		dr := models.NewDateRange(date("2025-06-01"), date("2025-06-03"))

		require.NoError(t, m.SetDateRange(ctx, dr))
		require.NoError(t, m.SetDateRange(ctx, dr))
		// The cache was invalidated between the calls, so both hit the source.
		assert.Equal(t, 2, source.calls)
	})

	t.Run("DropsGuestAllocationWithItem", func(t *testing.T) {
		source := &stubSource{bookedByDate: map[string][]string{
			"2025-06-01": {"room-01"},
		}}
		m, _ := newTestMachine(t, models.CategoryRoom, source)
		m.Draft().field(FieldRooms).Confirmed = models.NewInstanceSet("room-01")
		m.Draft().SetGuests("room-01", models.GuestAllocation{Adults: 2})

		require.NoError(t, m.SetDateRange(ctx, models.NewDateRange(date("2025-06-01"), date("2025-06-02"))))
		assert.NotContains(t, m.Draft().Guests, "room-01")
	})
}

func TestSetSelectedDays(t *testing.T) {
	ctx := context.Background()

	t.Run("NormalizesAndDrops", func(t *testing.T) {
		source := &stubSource{bookedByDate: map[string][]string{
			"2025-06-03": {"family-cottage"},
		}}
		m, _ := newTestMachine(t, models.CategoryCottage, source)
		m.Draft().field(FieldCottages).Confirmed = models.NewInstanceSet("family-cottage", "garden-cottage")

		days := []time.Time{date("2025-06-05"), date("2025-06-01"), date("2025-06-03"), date("2025-06-03")}
		require.NoError(t, m.SetSelectedDays(ctx, days))

		require.Len(t, m.Draft().SelectedDays, 3)
		assert.Equal(t, "2025-06-01", models.DateKey(m.Draft().SelectedDays[0]))
		assert.Equal(t, "2025-06-05", models.DateKey(m.Draft().SelectedDays[2]))

		assert.Equal(t, []string{"garden-cottage"}, m.Draft().Confirmed(FieldCottages).Sorted())
	})
}

func TestUndoStack(t *testing.T) {
	m, _ := newTestMachine(t, models.CategoryRoom, nil)
	m.Draft().Range = models.NewDateRange(date("2025-06-01"), date("2025-06-03"))

	t.Run("PushAndUndo", func(t *testing.T) {
		m.PushDateSnapshot("check_in")
		m.Draft().Range = models.NewDateRange(date("2025-06-02"), date("2025-06-04"))

		snap, ok := m.Undo()
		require.True(t, ok)
		assert.Equal(t, "check_in", snap.EditingBound)
		assert.Equal(t, "2025-06-01", models.DateKey(m.Draft().Range.Start))
	})

	t.Run("DuplicatePushIsNoOp", func(t *testing.T) {
		m.PushDateSnapshot("check_out")
		m.PushDateSnapshot("check_out")
		assert.Equal(t, 1, m.UndoDepthUsed())
		_, _ = m.Undo()
	})

	t.Run("DepthIsBounded", func(t *testing.T) {
		for i := 0; i < UndoDepth+5; i++ {
			m.Draft().Range = models.NewDateRange(date("2025-06-01").AddDate(0, 0, i), date("2025-06-03").AddDate(0, 0, i))
			m.PushDateSnapshot("check_in")
		}
		assert.Equal(t, UndoDepth, m.UndoDepthUsed())
	})

	t.Run("UndoOnEmptyStack", func(t *testing.T) {
		for {
			if _, ok := m.Undo(); !ok {
				break
			}
		}
		_, ok := m.Undo()
		assert.False(t, ok)
	})
}

func TestFlowGuard(t *testing.T) {
	m, _ := newTestMachine(t, models.CategoryRoom, nil)

	epoch := m.Epoch()
	assert.True(t, m.Active(epoch))

	m.Abandon()
	// A fetch started before Abandon must see the flow as dead.
	assert.False(t, m.Active(epoch))
	assert.False(t, m.Active(m.Epoch()))
}

func TestAddOnCottageDays(t *testing.T) {
	m, _ := newTestMachine(t, models.CategoryRoom, nil)
	m.Draft().Range = models.NewDateRange(date("2025-06-01"), date("2025-06-04"))

	// No explicit cottage days: count defaults to room nights.
	assert.Equal(t, 3, m.Draft().CottageDayCount())

	m.SetAddOnCottageDays([]time.Time{date("2025-06-01"), date("2025-06-02")})
	assert.Equal(t, 2, m.Draft().CottageDayCount())
	assert.False(t, m.Draft().CottageDaysDefaulted)

	m.SetAddOnCottageDays(nil)
	assert.Equal(t, 3, m.Draft().CottageDayCount())
	assert.True(t, m.Draft().CottageDaysDefaulted)
}
