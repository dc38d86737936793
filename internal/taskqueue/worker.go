package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"growrack/internal/cache"
	"growrack/internal/logging"
	"growrack/internal/models"
)

// SweepStore is the persistence the maintenance handlers need.
type SweepStore interface {
	MarkStaleRacksOffline(ctx context.Context, cutoff time.Time) ([]models.Rack, error)
	InsertActivity(ctx context.Context, a *models.Activity) error
	PruneReadingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LiveCache mirrors liveness transitions into the live-state snapshot.
type LiveCache interface {
	UpdateLiveState(ctx context.Context, hardwareAddr string, fn func(*cache.LiveState)) error
}

// StatusEvents pushes liveness transitions to realtime clients.
type StatusEvents interface {
	RackStatus(rackID int64, status models.DeviceStatus, at time.Time)
}

// Worker consumes maintenance tasks.
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	log    zerolog.Logger
	store  SweepStore
	live   LiveCache
	events StatusEvents
}

// NewWorker wires the consumer side of the queue.
func NewWorker(opt asynq.RedisClientOpt, store SweepStore, live LiveCache, events StatusEvents) *Worker {
	w := &Worker{
		srv: asynq.NewServer(opt, asynq.Config{
			Concurrency: 5,
		}),
		mux:    asynq.NewServeMux(),
		log:    logging.WithComponent("taskqueue"),
		store:  store,
		live:   live,
		events: events,
	}
	w.mux.HandleFunc(TypeLivenessSweep, w.handleLivenessSweep)
	w.mux.HandleFunc(TypeRetentionPrune, w.handleRetentionPrune)
	return w
}

// Start launches the worker pool without blocking.
func (w *Worker) Start() error {
	if err := w.srv.Start(w.mux); err != nil {
		return fmt.Errorf("start taskqueue workers: %w", err)
	}
	w.log.Info().Msg("taskqueue workers started")
	return nil
}

// Stop drains in-flight tasks and shuts the pool down.
func (w *Worker) Stop() {
	w.srv.Shutdown()
	w.log.Info().Msg("taskqueue workers stopped")
}

// handleLivenessSweep marks every rack silent past the threshold as
// OFFLINE and fans the transitions out like broker-reported ones.
func (w *Worker) handleLivenessSweep(ctx context.Context, t *asynq.Task) error {
	var payload LivenessSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal sweep payload: %w", err)
	}

	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(payload.OfflineAfterSecs) * time.Second)
	stale, err := w.store.MarkStaleRacksOffline(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("mark stale racks offline: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	for _, rack := range stale {
		w.log.Info().
			Int64("rack_id", rack.ID).
			Str("hardware_addr", rack.HardwareAddr).
			Msg("rack silent past threshold, marked offline")

		activity := models.Activity{
			RackID: rack.ID,
			Type:   models.ActivityDeviceOffline,
			Detail: "rack went offline",
			Metadata: map[string]any{
				"reason":             "liveness sweep",
				"offline_after_secs": payload.OfflineAfterSecs,
			},
		}
		if err := w.store.InsertActivity(ctx, &activity); err != nil {
			w.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not record offline activity")
		}

		if err := w.live.UpdateLiveState(ctx, rack.HardwareAddr, func(st *cache.LiveState) {
			st.RackID = rack.ID
			st.Status = models.StatusOffline
		}); err != nil {
			w.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not update live state")
		}

		w.events.RackStatus(rack.ID, models.StatusOffline, now)
	}
	return nil
}

// handleRetentionPrune drops readings older than the retention window.
func (w *Worker) handleRetentionPrune(ctx context.Context, t *asynq.Task) error {
	var payload RetentionPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal prune payload: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -payload.RetentionDays)
	pruned, err := w.store.PruneReadingsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune readings: %w", err)
	}
	if pruned > 0 {
		w.log.Info().Int64("readings", pruned).Time("cutoff", cutoff).Msg("old readings pruned")
	}
	return nil
}
