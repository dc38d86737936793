package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingProcessor struct {
	mu    sync.Mutex
	calls []string
	err   error
	panic bool
}

func (p *recordingProcessor) Process(_ context.Context, rackAddr string, _ []byte) error {
	if p.panic {
		panic("processor blew up")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, rackAddr)
	return p.err
}

func (p *recordingProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestDispatchRoutesByClass(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		wantTarget string
	}{
		{"sensors to telemetry", "growrack/rack/AA:BB:CC:DD:EE:FF/sensors", "telemetry"},
		{"status to status", "growrack/rack/AA:BB:CC:DD:EE:FF/status", "status"},
		{"errors to errors", "growrack/rack/AA:BB:CC:DD:EE:FF/errors", "errors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			telemetry := &recordingProcessor{}
			status := &recordingProcessor{}
			errorsProc := &recordingProcessor{}
			r := NewRouter(telemetry, status, errorsProc)

			r.Dispatch(tt.topic, []byte("{}"))

			counts := map[string]int{
				"telemetry": telemetry.callCount(),
				"status":    status.callCount(),
				"errors":    errorsProc.callCount(),
			}
			for target, count := range counts {
				if target == tt.wantTarget {
					assert.Equal(t, 1, count, "expected %s to be called", target)
				} else {
					assert.Zero(t, count, "expected %s not to be called", target)
				}
			}
		})
	}
}

func TestDispatchDropsUnknownClass(t *testing.T) {
	telemetry := &recordingProcessor{}
	status := &recordingProcessor{}
	errorsProc := &recordingProcessor{}
	r := NewRouter(telemetry, status, errorsProc)

	r.Dispatch("growrack/rack/AA:BB:CC:DD:EE:FF/firmware", []byte("{}"))

	assert.Zero(t, telemetry.callCount())
	assert.Zero(t, status.callCount())
	assert.Zero(t, errorsProc.callCount())
}

func TestDispatchDropsInvalidTopic(t *testing.T) {
	telemetry := &recordingProcessor{}
	r := NewRouter(telemetry, &recordingProcessor{}, &recordingProcessor{})

	for _, topic := range []string{"", "x", "a/b", "a/b/c/d/e", "growrack/shelf/x/sensors"} {
		r.Dispatch(topic, []byte("{}"))
	}
	assert.Zero(t, telemetry.callCount())
}

func TestDispatchSurvivesProcessorError(t *testing.T) {
	telemetry := &recordingProcessor{err: errors.New("db down")}
	r := NewRouter(telemetry, &recordingProcessor{}, &recordingProcessor{})

	assert.NotPanics(t, func() {
		r.Dispatch("growrack/rack/AA:BB:CC:DD:EE:FF/sensors", []byte("{}"))
		r.Dispatch("growrack/rack/AA:BB:CC:DD:EE:FF/sensors", []byte("{}"))
	})
	// The second message is still processed after the first failed.
	assert.Equal(t, 2, telemetry.callCount())
}

func TestDispatchRecoversProcessorPanic(t *testing.T) {
	telemetry := &recordingProcessor{panic: true}
	status := &recordingProcessor{}
	r := NewRouter(telemetry, status, &recordingProcessor{})

	assert.NotPanics(t, func() {
		r.Dispatch("growrack/rack/AA:BB:CC:DD:EE:FF/sensors", []byte("{}"))
	})

	// The pipeline keeps routing after a panic.
	r.Dispatch("growrack/rack/AA:BB:CC:DD:EE:FF/status", []byte("{}"))
	assert.Equal(t, 1, status.callCount())
}
