package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growrack/internal/apperr"
	"growrack/internal/models"
)

func TestStatusProcessOfflineRackComesOnline(t *testing.T) {
	rack := testRack() // starts OFFLINE
	store := newFakeStore(rack)
	events := &fakeEvents{}
	p := NewStatusProcessor(store, newFakeLive(), events)

	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", []byte(`{"o":true,"tm":1700000000000}`))
	require.NoError(t, err)

	require.Len(t, store.statusUpdates, 1)
	update := store.statusUpdates[0]
	assert.Equal(t, int64(7), update.rackID)
	assert.Equal(t, models.StatusOnline, update.status)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), update.at)

	require.Len(t, store.activities, 1)
	assert.Equal(t, models.ActivityDeviceOnline, store.activities[0].Type)

	require.Len(t, events.statuses, 1)
	assert.Equal(t, models.StatusOnline, events.statuses[0].status)
}

func TestStatusProcessHeartbeatSameStatus(t *testing.T) {
	rack := testRack()
	rack.Status = models.StatusOnline
	store := newFakeStore(rack)
	events := &fakeEvents{}
	p := NewStatusProcessor(store, newFakeLive(), events)

	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", []byte(`{"o":true}`))
	require.NoError(t, err)

	// Timestamps refresh but no transition is recorded or broadcast.
	assert.Len(t, store.statusUpdates, 1)
	assert.Empty(t, store.activities)
	assert.Empty(t, events.statuses)
}

func TestStatusProcessGoesOffline(t *testing.T) {
	rack := testRack()
	rack.Status = models.StatusOnline
	store := newFakeStore(rack)
	events := &fakeEvents{}
	p := NewStatusProcessor(store, newFakeLive(), events)

	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", []byte(`{"o":false}`))
	require.NoError(t, err)

	require.Len(t, store.statusUpdates, 1)
	assert.Equal(t, models.StatusOffline, store.statusUpdates[0].status)

	require.Len(t, store.activities, 1)
	assert.Equal(t, models.ActivityDeviceOffline, store.activities[0].Type)

	require.Len(t, events.statuses, 1)
	assert.Equal(t, models.StatusOffline, events.statuses[0].status)
}

func TestStatusProcessCachesRadioDetails(t *testing.T) {
	store := newFakeStore(testRack())
	live := newFakeLive()
	p := NewStatusProcessor(store, live, &fakeEvents{})

	payload := []byte(`{"o":true,"fw":"2.4.1","ip":"10.0.0.12","rssi":-61}`)
	require.NoError(t, p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", payload))

	st := live.states["AA:BB:CC:DD:EE:FF"]
	require.NotNil(t, st)
	assert.Equal(t, "2.4.1", st.Firmware)
	assert.Equal(t, "10.0.0.12", st.IP)
	require.NotNil(t, st.RSSI)
	assert.Equal(t, -61, *st.RSSI)
	assert.Equal(t, models.StatusOnline, st.Status)
}

func TestStatusProcessInvalidPayload(t *testing.T) {
	store := newFakeStore(testRack())
	p := NewStatusProcessor(store, newFakeLive(), &fakeEvents{})

	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", []byte(`{"rssi":-60}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
	assert.Empty(t, store.statusUpdates)
}

func TestStatusProcessUnknownRack(t *testing.T) {
	p := NewStatusProcessor(newFakeStore(), newFakeLive(), &fakeEvents{})

	err := p.Process(context.Background(), "AA:BB:CC:DD:EE:FF", []byte(`{"o":true}`))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
