package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growrack/internal/apperr"
)

func TestDecodeTelemetry(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		errContains []string
		check       func(t *testing.T, p TelemetryPayload)
	}{
		{
			name: "canonical keys",
			raw:  `{"temperature":21.5,"humidity":55,"moisture":40,"light":820,"timestamp":1700000000000}`,
			check: func(t *testing.T, p TelemetryPayload) {
				assert.InDelta(t, 21.5, *p.Temperature, 0.001)
				assert.InDelta(t, 55, *p.Humidity, 0.001)
				assert.InDelta(t, 40, *p.Moisture, 0.001)
				assert.InDelta(t, 820, *p.Light, 0.001)
				assert.Equal(t, int64(1700000000000), p.Timestamp)
			},
		},
		{
			name: "compact keys",
			raw:  `{"t":21.5,"h":55,"m":40,"l":820,"tm":1700000000000}`,
			check: func(t *testing.T, p TelemetryPayload) {
				assert.InDelta(t, 21.5, *p.Temperature, 0.001)
				assert.Equal(t, int64(1700000000000), p.Timestamp)
			},
		},
		{
			name: "canonical wins over alias",
			raw:  `{"temperature":30,"t":10,"h":55,"m":40,"l":820}`,
			check: func(t *testing.T, p TelemetryPayload) {
				assert.InDelta(t, 30, *p.Temperature, 0.001)
			},
		},
		{
			name: "zero values are present values",
			raw:  `{"temperature":0,"humidity":0,"moisture":0,"light":0}`,
			check: func(t *testing.T, p TelemetryPayload) {
				assert.InDelta(t, 0, *p.Moisture, 0.001)
				assert.Zero(t, p.Timestamp)
			},
		},
		{
			name:        "all violations reported at once",
			raw:         `{"temperature":200,"light":-5}`,
			wantErr:     true,
			errContains: []string{"temperature", "light", "humidity", "moisture"},
		},
		{
			name:        "temperature below range",
			raw:         `{"temperature":-51,"humidity":55,"moisture":40,"light":820}`,
			wantErr:     true,
			errContains: []string{"temperature"},
		},
		{
			name:        "humidity above range",
			raw:         `{"temperature":20,"humidity":101,"moisture":40,"light":820}`,
			wantErr:     true,
			errContains: []string{"humidity"},
		},
		{
			name:    "malformed json",
			raw:     `{"temperature":`,
			wantErr: true,
		},
		{
			name:    "array instead of object",
			raw:     `[1,2,3]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeTelemetry([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindBadRequest), "want bad-request kind, got %v", err)
				for _, s := range tt.errContains {
					assert.Contains(t, err.Error(), s)
				}
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestTelemetryMeasuredAt(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

	p, err := DecodeTelemetry([]byte(`{"t":20,"h":50,"m":30,"l":100,"tm":1700000000000}`))
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), p.MeasuredAt(now))

	p, err = DecodeTelemetry([]byte(`{"t":20,"h":50,"m":30,"l":100}`))
	require.NoError(t, err)
	assert.Equal(t, now, p.MeasuredAt(now))
}

func TestDecodeStatus(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		errContains []string
		check       func(t *testing.T, p StatusPayload)
	}{
		{
			name: "minimal online flag",
			raw:  `{"o":true}`,
			check: func(t *testing.T, p StatusPayload) {
				require.NotNil(t, p.Online)
				assert.True(t, *p.Online)
			},
		},
		{
			name: "offline is a present value",
			raw:  `{"o":false}`,
			check: func(t *testing.T, p StatusPayload) {
				require.NotNil(t, p.Online)
				assert.False(t, *p.Online)
			},
		},
		{
			name: "full compact report",
			raw:  `{"o":true,"tm":1700000000000,"fw":"2.4.1","ip":"192.168.1.40","mac":"aa:bb:cc:dd:ee:ff","rssi":-67,"up":86400,"mem":52428}`,
			check: func(t *testing.T, p StatusPayload) {
				assert.Equal(t, "2.4.1", p.Firmware)
				assert.Equal(t, "192.168.1.40", p.IP)
				require.NotNil(t, p.RSSI)
				assert.Equal(t, -67, *p.RSSI)
				require.NotNil(t, p.UptimeSec)
				assert.Equal(t, int64(86400), *p.UptimeSec)
				require.NotNil(t, p.FreeMemBytes)
				assert.Equal(t, int64(52428), *p.FreeMemBytes)
			},
		},
		{
			name:        "missing online flag",
			raw:         `{"fw":"2.4.1"}`,
			wantErr:     true,
			errContains: []string{"online"},
		},
		{
			name:        "rssi above zero",
			raw:         `{"o":true,"rssi":3}`,
			wantErr:     true,
			errContains: []string{"rssi"},
		},
		{
			name:        "rssi below floor",
			raw:         `{"o":true,"rssi":-120}`,
			wantErr:     true,
			errContains: []string{"rssi"},
		},
		{
			name:        "bad ip",
			raw:         `{"o":true,"ip":"not-an-ip"}`,
			wantErr:     true,
			errContains: []string{"ip"},
		},
		{
			name:    "malformed json",
			raw:     `{o:true}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeStatus([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindBadRequest), "want bad-request kind, got %v", err)
				for _, s := range tt.errContains {
					assert.Contains(t, err.Error(), s)
				}
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    ErrorPayload
	}{
		{
			name: "canonical keys",
			raw:  `{"code":"PUMP_STALL","message":"pump did not prime","severity":"CRITICAL"}`,
			want: ErrorPayload{Code: "PUMP_STALL", Message: "pump did not prime", Severity: SeverityCritical},
		},
		{
			name: "compact keys",
			raw:  `{"code":"LOW_MEM","msg":"heap below threshold","sev":"WARNING"}`,
			want: ErrorPayload{Code: "LOW_MEM", Message: "heap below threshold", Severity: SeverityWarning},
		},
		{
			name:    "unknown severity",
			raw:     `{"code":"X","message":"y","severity":"FATAL"}`,
			wantErr: true,
		},
		{
			name:    "missing code",
			raw:     `{"message":"y","severity":"INFO"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeError([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindBadRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
