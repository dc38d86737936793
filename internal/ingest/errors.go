package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"growrack/internal/cache"
	"growrack/internal/logging"
	"growrack/internal/message"
	"growrack/internal/models"
)

// ErrorProcessor turns device fault reports into audit entries, user
// notifications, and (for critical faults) an ERROR status flip.
type ErrorProcessor struct {
	log    zerolog.Logger
	store  Store
	live   LiveCache
	events Events
}

func NewErrorProcessor(store Store, live LiveCache, events Events) *ErrorProcessor {
	return &ErrorProcessor{
		log:    logging.WithComponent("deverror"),
		store:  store,
		live:   live,
		events: events,
	}
}

// Process handles one fault report. A CRITICAL fault flips the rack
// to ERROR and raises an alert notification; lesser severities leave
// the status alone and raise a warning.
func (p *ErrorProcessor) Process(ctx context.Context, rackAddr string, payload []byte) error {
	decoded, err := message.DecodeError(payload)
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
	critical := decoded.Severity == message.SeverityCritical
	if critical {
		if err := p.store.SetRackStatus(ctx, rack.ID, models.StatusError, now); err != nil {
			return fmt.Errorf("update rack status: %w", err)
		}
		if err := p.live.UpdateLiveState(ctx, addr, func(st *cache.LiveState) {
			st.RackID = rack.ID
			st.Status = models.StatusError
		}); err != nil {
			p.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not update live cache")
		}
	}

	activity := models.Activity{
		RackID: rack.ID,
		Type:   models.ActivityDeviceError,
		Detail: decoded.Message,
		Metadata: map[string]any{
			"code":     decoded.Code,
			"severity": decoded.Severity,
		},
	}
	if err := p.store.InsertActivity(ctx, &activity); err != nil {
		p.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not record error activity")
	}

	level := models.NotifyWarning
	if critical {
		level = models.NotifyAlert
	}
	notification := models.Notification{
		RackID:  rack.ID,
		Level:   level,
		Title:   fmt.Sprintf("%s reported %s", rack.Name, decoded.Code),
		Message: decoded.Message,
	}
	if err := p.store.InsertNotification(ctx, &notification); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	if critical {
		p.events.RackStatus(rack.ID, models.StatusError, now)
	}
	p.events.RackNotification(notification)

	return nil
}
