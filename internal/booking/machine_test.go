package booking

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/emergency-dispatch/internal/matcher"
	"github.com/example/emergency-dispatch/internal/models"
	"github.com/example/emergency-dispatch/internal/registry"
	"github.com/example/emergency-dispatch/internal/storage"
	"github.com/example/emergency-dispatch/internal/tracking"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fixture struct {
	machine *Machine
	units   *registry.Registry
	store   *storage.MemoryStore
}

func newFixture(t *testing.T, unitCount int) *fixture {
	t.Helper()
	logger := testLogger()
	units := registry.New(logger)
	for i := 0; i < unitCount; i++ {
		units.Register(models.Unit{
			ID:  fmt.Sprintf("unit-%02d", i),
			Pos: models.Coord{Lat: 13.0 + float64(i)*0.01, Lng: 77.6},
		})
	}
	store := storage.NewMemoryStore()
	trk := tracking.NewManager(nil, time.Second, 50, nil, logger)
	m := NewMachine(matcher.New(units, 50, logger), units, trk, store, logger)
	return &fixture{machine: m, units: units, store: store}
}

func (f *fixture) pending(t *testing.T) models.Booking {
	t.Helper()
	b, err := f.machine.Create("requester-1", models.EmergencyCardiac, models.Coord{Lat: 13.0, Lng: 77.6})
	require.NoError(t, err)
	return b
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.machine.Create("", models.EmergencyCardiac, models.Coord{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.machine.Create("requester-1", "helicopter", models.Coord{})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	b := f.pending(t)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Empty(t, b.UnitID)
	assert.False(t, b.CreatedAt.IsZero())
}

func TestDispatchAssignsNearestUnit(t *testing.T) {
	f := newFixture(t, 3)
	b := f.pending(t)

	got, err := f.machine.Dispatch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingAssigned, got.Status)
	assert.Equal(t, "unit-00", got.UnitID) // co-located with the pickup
	assert.False(t, got.AssignedAt.IsZero())

	u, err := f.units.Get("unit-00")
	require.NoError(t, err)
	assert.Equal(t, models.UnitReserved, u.Status)
	assert.Equal(t, b.ID, u.BookingID)
}

func TestDispatchNoUnitsKeepsPending(t *testing.T) {
	f := newFixture(t, 0)
	b := f.pending(t)

	_, err := f.machine.Dispatch(b.ID)
	assert.ErrorIs(t, err, matcher.ErrNoUnitsAvailable)

	got, err := f.machine.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, got.Status, "failed dispatch must leave the booking Pending")
}

func TestLifecycleLegality(t *testing.T) {
	f := newFixture(t, 1)
	b := f.pending(t)

	// complete from Pending is illegal
	_, err := f.machine.Complete(b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// en route from Pending is illegal
	_, err = f.machine.MarkEnRoute(b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.machine.Dispatch(b.ID)
	require.NoError(t, err)

	// double dispatch is illegal
	_, err = f.machine.Dispatch(b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.machine.MarkEnRoute(b.ID)
	require.NoError(t, err)

	// cancel from EnRoute is illegal
	_, err = f.machine.Cancel(b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	done, err := f.machine.Complete(b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, done.Status)
	assert.False(t, done.CompletedAt.IsZero())

	// terminal states reject everything
	_, err = f.machine.Cancel(b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.machine.Complete(b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkEnRouteMarksUnitBusy(t *testing.T) {
	f := newFixture(t, 1)
	b := f.pending(t)
	_, err := f.machine.Dispatch(b.ID)
	require.NoError(t, err)

	_, err = f.machine.MarkEnRoute(b.ID)
	require.NoError(t, err)

	u, err := f.units.Get("unit-00")
	require.NoError(t, err)
	assert.Equal(t, models.UnitBusy, u.Status)
}

func TestCancelReleasesUnitSynchronously(t *testing.T) {
	f := newFixture(t, 1)
	b := f.pending(t)
	_, err := f.machine.Dispatch(b.ID)
	require.NoError(t, err)

	cancelled, err := f.machine.Cancel(b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	// observable immediately after Cancel returns
	u, err := f.units.Get("unit-00")
	require.NoError(t, err)
	assert.Equal(t, models.UnitAvailable, u.Status)
	assert.Empty(t, u.BookingID)
}

func TestCancelPendingHasNoUnitToRelease(t *testing.T) {
	f := newFixture(t, 1)
	b := f.pending(t)

	cancelled, err := f.machine.Cancel(b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	assert.Empty(t, cancelled.UnitID)
}

func TestCompleteReleasesUnit(t *testing.T) {
	f := newFixture(t, 1)
	b := f.pending(t)
	_, err := f.machine.Dispatch(b.ID)
	require.NoError(t, err)

	_, err = f.machine.Complete(b.ID)
	require.NoError(t, err)

	u, err := f.units.Get("unit-00")
	require.NoError(t, err)
	assert.Equal(t, models.UnitAvailable, u.Status)
}

func TestUnknownBooking(t *testing.T) {
	f := newFixture(t, 1)
	for _, op := range []func(string) (models.Booking, error){
		f.machine.Dispatch, f.machine.MarkEnRoute, f.machine.Complete, f.machine.Cancel, f.machine.Get,
	} {
		_, err := op("nope")
		assert.ErrorIs(t, err, ErrUnknownBooking)
	}
}

// More bookings than units dispatched in parallel: every unit must end up
// assigned to at most one booking.
func TestConcurrentDispatchNoDoubleBooking(t *testing.T) {
	const unitCount = 3
	const bookingCount = 16
	f := newFixture(t, unitCount)

	ids := make([]string, 0, bookingCount)
	for i := 0; i < bookingCount; i++ {
		ids = append(ids, f.pending(t).ID)
	}

	var wg sync.WaitGroup
	results := make([]error, bookingCount)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, results[i] = f.machine.Dispatch(id)
		}(i, id)
	}
	wg.Wait()

	assigned := make(map[string]string) // unit id -> booking id
	var wins, losses int
	for i, id := range ids {
		if results[i] == nil {
			wins++
			b, err := f.machine.Get(id)
			require.NoError(t, err)
			require.NotEmpty(t, b.UnitID)
			if holder, taken := assigned[b.UnitID]; taken {
				t.Fatalf("unit %s double-booked by %s and %s", b.UnitID, holder, id)
			}
			assigned[b.UnitID] = id
		} else {
			losses++
			require.ErrorIs(t, results[i], matcher.ErrNoUnitsAvailable)
		}
	}
	assert.Equal(t, unitCount, wins)
	assert.Equal(t, bookingCount-unitCount, losses)
}

func TestDispatchErrorIsTyped(t *testing.T) {
	f := newFixture(t, 0)
	b := f.pending(t)
	_, err := f.machine.Dispatch(b.ID)
	if !errors.Is(err, matcher.ErrNoUnitsAvailable) {
		t.Fatalf("expected typed ErrNoUnitsAvailable, got %v", err)
	}
}
