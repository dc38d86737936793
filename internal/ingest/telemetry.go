package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"growrack/internal/cache"
	"growrack/internal/logging"
	"growrack/internal/message"
	"growrack/internal/metrics"
	"growrack/internal/models"
)

// Store is the slice of persistence the processors need.
type Store interface {
	GetRackByAddr(ctx context.Context, hardwareAddr string) (*models.Rack, error)
	RecordRackSeen(ctx context.Context, id int64, at time.Time) error
	SetRackStatus(ctx context.Context, id int64, status models.DeviceStatus, at time.Time) error
	InsertReading(ctx context.Context, r *models.Reading) error
	InsertActivity(ctx context.Context, a *models.Activity) error
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// LiveCache mirrors the hot rack state for cheap reads.
type LiveCache interface {
	UpdateLiveState(ctx context.Context, hardwareAddr string, fn func(*cache.LiveState)) error
}

// Events is the broadcast surface the processors push to.
type Events interface {
	RackReading(rackID int64, r models.Reading)
	RackStatus(rackID int64, status models.DeviceStatus, at time.Time)
	RackNotification(n models.Notification)
}

// RuleEvaluator runs automation for a fresh reading. Implementations
// swallow their own failures; evaluation never fails ingestion.
type RuleEvaluator interface {
	EvaluateRules(ctx context.Context, rack *models.Rack, reading models.Reading)
}

// TelemetryProcessor persists sensor samples and hands them to the
// rule engine.
type TelemetryProcessor struct {
	log    zerolog.Logger
	store  Store
	live   LiveCache
	events Events
	engine RuleEvaluator
}

func NewTelemetryProcessor(store Store, live LiveCache, events Events, engine RuleEvaluator) *TelemetryProcessor {
	return &TelemetryProcessor{
		log:    logging.WithComponent("telemetry"),
		store:  store,
		live:   live,
		events: events,
		engine: engine,
	}
}

// Process validates, persists, and fans out one sensor sample, then
// runs the rack's automation against it.
func (p *TelemetryProcessor) Process(ctx context.Context, rackAddr string, payload []byte) error {
	decoded, err := message.DecodeTelemetry(payload)
	if err != nil {
		return err
	}

	addr, err := message.NormalizeHardwareAddr(rackAddr)
	if err != nil {
		return err
	}

	rack, err := p.store.GetRackByAddr(ctx, addr)
	if err != nil {
		return fmt.Errorf("resolve rack: %w", err)
	}

	now := time.Now().UTC()
	reading := models.Reading{
		RackID:      rack.ID,
		Temperature: *decoded.Temperature,
		Humidity:    *decoded.Humidity,
		Moisture:    *decoded.Moisture,
		Light:       *decoded.Light,
		MeasuredAt:  decoded.MeasuredAt(now),
	}
	if err := p.store.InsertReading(ctx, &reading); err != nil {
		return fmt.Errorf("persist reading: %w", err)
	}
	metrics.ReadingsPersisted.Inc()

	if err := p.store.RecordRackSeen(ctx, rack.ID, now); err != nil {
		// The reading is already stored; liveness lag is tolerable.
		p.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not refresh rack liveness")
	}

	if err := p.live.UpdateLiveState(ctx, addr, func(st *cache.LiveState) {
		st.RackID = rack.ID
		st.Status = models.StatusOnline
		st.Reading = &reading
	}); err != nil {
		p.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not update live cache")
	}

	p.events.RackReading(rack.ID, reading)

	// Automation runs last and is fully isolated: a broken rule set
	// must not undo or fail the ingestion above.
	p.engine.EvaluateRules(ctx, rack, reading)

	return nil
}
