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

// StatusProcessor applies liveness reports: ONLINE/OFFLINE flips,
// heartbeat refreshes, and the cached radio/firmware details.
type StatusProcessor struct {
	log    zerolog.Logger
	store  Store
	live   LiveCache
	events Events
}

func NewStatusProcessor(store Store, live LiveCache, events Events) *StatusProcessor {
	return &StatusProcessor{
		log:    logging.WithComponent("status"),
		store:  store,
		live:   live,
		events: events,
	}
}

// Process handles one status report. A transition writes an activity
// entry and broadcasts the new status; a plain heartbeat only
// refreshes timestamps.
func (p *StatusProcessor) Process(ctx context.Context, rackAddr string, payload []byte) error {
	decoded, err := message.DecodeStatus(payload)
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

	if decoded.HardwareAddr != "" {
		if reported, err := message.NormalizeHardwareAddr(decoded.HardwareAddr); err == nil && reported != addr {
			p.log.Warn().
				Str("topic_addr", addr).
				Str("reported_addr", reported).
				Msg("status payload reports a different hardware address")
		}
	}

	at := decoded.ReportedAt(time.Now().UTC())
	status := models.StatusOffline
	if *decoded.Online {
		status = models.StatusOnline
	}

	if err := p.store.SetRackStatus(ctx, rack.ID, status, at); err != nil {
		return fmt.Errorf("update rack status: %w", err)
	}

	if err := p.live.UpdateLiveState(ctx, addr, func(st *cache.LiveState) {
		st.RackID = rack.ID
		st.Status = status
		if decoded.RSSI != nil {
			st.RSSI = decoded.RSSI
		}
		if decoded.Firmware != "" {
			st.Firmware = decoded.Firmware
		}
		if decoded.IP != "" {
			st.IP = decoded.IP
		}
	}); err != nil {
		p.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not update live cache")
	}

	if status == rack.Status {
		return nil
	}

	activityType := models.ActivityDeviceOffline
	detail := "rack went offline"
	if status == models.StatusOnline {
		activityType = models.ActivityDeviceOnline
		detail = "rack came online"
	}
	activity := models.Activity{
		RackID: rack.ID,
		Type:   activityType,
		Detail: detail,
	}
	if decoded.Firmware != "" {
		activity.Metadata = map[string]any{"firmware": decoded.Firmware}
	}
	if err := p.store.InsertActivity(ctx, &activity); err != nil {
		p.log.Warn().Int64("rack_id", rack.ID).Err(err).Msg("could not record status activity")
	}

	p.events.RackStatus(rack.ID, status, at)

	return nil
}
