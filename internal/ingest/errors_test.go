package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growrack/internal/models"
)

func TestErrorProcessCriticalFault(t *testing.T) {
	store := newFakeStore(testRack())
	live := newFakeLive()
	events := &fakeEvents{}
	p := NewErrorProcessor(store, live, events)

	payload := []byte(`{"code":"PUMP_STALL","message":"pump did not prime","severity":"CRITICAL"}`)
	require.NoError(t, p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", payload))

	require.Len(t, store.statusUpdates, 1)
	assert.Equal(t, models.StatusError, store.statusUpdates[0].status)

	require.Len(t, store.activities, 1)
	activity := store.activities[0]
	assert.Equal(t, models.ActivityDeviceError, activity.Type)
	assert.Equal(t, "pump did not prime", activity.Detail)
	assert.Equal(t, "PUMP_STALL", activity.Metadata["code"])

	require.Len(t, store.notifications, 1)
	notification := store.notifications[0]
	assert.Equal(t, models.NotifyAlert, notification.Level)
	assert.Contains(t, notification.Title, "PUMP_STALL")
	assert.Contains(t, notification.Title, "Rack 7")

	require.Len(t, events.statuses, 1)
	assert.Equal(t, models.StatusError, events.statuses[0].status)
	require.Len(t, events.notifications, 1)
	assert.Equal(t, models.NotifyAlert, events.notifications[0].Level)

	assert.Equal(t, models.StatusError, live.states["AA:BB:CC:DD:EE:FF"].Status)
}

func TestErrorProcessNonCriticalIsWarning(t *testing.T) {
	for _, severity := range []string{"INFO", "WARNING"} {
		t.Run(severity, func(t *testing.T) {
			store := newFakeStore(testRack())
			p := NewErrorProcessor(store, newFakeLive(), &fakeEvents{})

			payload := []byte(`{"code":"LOW_MEM","message":"heap low","severity":"` + severity + `"}`)
			require.NoError(t, p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", payload))

			require.Len(t, store.notifications, 1)
			assert.Equal(t, models.NotifyWarning, store.notifications[0].Level)
			assert.Empty(t, store.statusUpdates, "non-critical faults must not change rack status")
		})
	}
}

func TestErrorProcessInvalidPayload(t *testing.T) {
	store := newFakeStore(testRack())
	p := NewErrorProcessor(store, newFakeLive(), &fakeEvents{})

	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", []byte(`{"code":"X"}`))
	require.Error(t, err)
	assert.Empty(t, store.notifications)
	assert.Empty(t, store.statusUpdates)
}

func TestErrorProcessNotificationFailure(t *testing.T) {
	store := newFakeStore(testRack())
	store.insertNotifErr = errors.New("db down")
	events := &fakeEvents{}
	p := NewErrorProcessor(store, newFakeLive(), events)

	payload := []byte(`{"code":"PUMP_STALL","message":"x","severity":"CRITICAL"}`)
	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", payload)
	require.Error(t, err)
	assert.Empty(t, events.notifications)
}
