package ingest

import (
	"context"
	"sync"
	"time"

	"growrack/internal/apperr"
	"growrack/internal/cache"
	"growrack/internal/models"
)

// Shared fakes for the processor tests.

type statusUpdate struct {
	rackID int64
	status models.DeviceStatus
	at     time.Time
}

type fakeStore struct {
	mu sync.Mutex

	racks         map[string]*models.Rack
	readings      []models.Reading
	activities    []models.Activity
	notifications []models.Notification
	statusUpdates []statusUpdate
	seenRackIDs   []int64

	insertReadingErr error
	setStatusErr     error
	insertNotifErr   error
}

func newFakeStore(racks ...*models.Rack) *fakeStore {
	s := &fakeStore{racks: make(map[string]*models.Rack)}
	for _, r := range racks {
		s.racks[r.HardwareAddr] = r
	}
	return s
}

func (s *fakeStore) GetRackByAddr(_ context.Context, addr string) (*models.Rack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.racks[addr]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "rack %s not registered", addr)
	}
	cp := *r
	return &cp, nil
}

func (s *fakeStore) RecordRackSeen(_ context.Context, id int64, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seenRackIDs = append(s.seenRackIDs, id)
	return nil
}

func (s *fakeStore) SetRackStatus(_ context.Context, id int64, status models.DeviceStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setStatusErr != nil {
		return s.setStatusErr
	}
	s.statusUpdates = append(s.statusUpdates, statusUpdate{rackID: id, status: status, at: at})
	return nil
}

func (s *fakeStore) InsertReading(_ context.Context, r *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertReadingErr != nil {
		return s.insertReadingErr
	}
	r.ID = int64(len(s.readings) + 1)
	s.readings = append(s.readings, *r)
	return nil
}

func (s *fakeStore) InsertActivity(_ context.Context, a *models.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.activities) + 1)
	s.activities = append(s.activities, *a)
	return nil
}

func (s *fakeStore) InsertNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertNotifErr != nil {
		return s.insertNotifErr
	}
	n.ID = int64(len(s.notifications) + 1)
	s.notifications = append(s.notifications, *n)
	return nil
}

type fakeLive struct {
	mu     sync.Mutex
	states map[string]*cache.LiveState
}

func newFakeLive() *fakeLive {
	return &fakeLive{states: make(map[string]*cache.LiveState)}
}

func (l *fakeLive) UpdateLiveState(_ context.Context, addr string, fn func(*cache.LiveState)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.states[addr]
	if !ok {
		st = &cache.LiveState{}
		l.states[addr] = st
	}
	fn(st)
	return nil
}

type fakeEvents struct {
	mu            sync.Mutex
	readings      []models.Reading
	statuses      []statusUpdate
	notifications []models.Notification
}

func (e *fakeEvents) RackReading(rackID int64, r models.Reading) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readings = append(e.readings, r)
}

func (e *fakeEvents) RackStatus(rackID int64, status models.DeviceStatus, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statuses = append(e.statuses, statusUpdate{rackID: rackID, status: status, at: at})
}

func (e *fakeEvents) RackNotification(n models.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifications = append(e.notifications, n)
}

type engineCall struct {
	rack    models.Rack
	reading models.Reading
}

type fakeEngine struct {
	mu    sync.Mutex
	calls []engineCall
}

func (f *fakeEngine) EvaluateRules(_ context.Context, rack *models.Rack, reading models.Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, engineCall{rack: *rack, reading: reading})
}

func testRack() *models.Rack {
	return &models.Rack{
		ID:           7,
		HardwareAddr: "AA:BB:CC:DD:EE:FF",
		Name:         "Rack 7",
		Status:       models.StatusOffline,
		OwnerID:      1,
	}
}
