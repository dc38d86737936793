package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		want    TopicInfo
		wantErr bool
	}{
		{
			name:  "sensors topic",
			topic: "growrack/rack/AA:BB:CC:DD:EE:FF/sensors",
			want:  TopicInfo{Namespace: "growrack", RackAddr: "AA:BB:CC:DD:EE:FF", Class: ClassSensors},
		},
		{
			name:  "status topic",
			topic: "growrack/rack/AA:BB:CC:DD:EE:FF/status",
			want:  TopicInfo{Namespace: "growrack", RackAddr: "AA:BB:CC:DD:EE:FF", Class: ClassStatus},
		},
		{
			name:  "errors topic",
			topic: "lab7/rack/00:11:22:33:44:55/errors",
			want:  TopicInfo{Namespace: "lab7", RackAddr: "00:11:22:33:44:55", Class: ClassErrors},
		},
		{
			name:  "unknown class still parses",
			topic: "growrack/rack/AA:BB:CC:DD:EE:FF/debug",
			want:  TopicInfo{Namespace: "growrack", RackAddr: "AA:BB:CC:DD:EE:FF", Class: Class("debug")},
		},
		{
			name:    "three segments",
			topic:   "growrack/rack/sensors",
			wantErr: true,
		},
		{
			name:    "five segments",
			topic:   "growrack/rack/AA:BB:CC:DD:EE:FF/commands/watering",
			wantErr: true,
		},
		{
			name:    "empty device segment",
			topic:   "growrack/rack//status",
			wantErr: true,
		},
		{
			name:    "wrong keyword",
			topic:   "growrack/shelf/AA:BB:CC:DD:EE:FF/status",
			wantErr: true,
		},
		{
			name:    "empty topic",
			topic:   "",
			wantErr: true,
		},
		{
			name:    "leading slash",
			topic:   "/rack/AA:BB:CC:DD:EE:FF/status",
			wantErr: true,
		},
		{
			name:    "trailing slash",
			topic:   "growrack/rack/AA:BB:CC:DD:EE:FF/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTopic(tt.topic)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandTopic(t *testing.T) {
	assert.Equal(t, "growrack/rack/AA:BB:CC:DD:EE:FF/commands/watering",
		CommandTopic("growrack", "AA:BB:CC:DD:EE:FF", CommandWatering))
	assert.Equal(t, "growrack/rack/AA:BB:CC:DD:EE:FF/commands/lighting",
		CommandTopic("growrack", "AA:BB:CC:DD:EE:FF", CommandLighting))
	assert.Equal(t, "lab7/rack/00:11:22:33:44:55/commands/sensors",
		CommandTopic("lab7", "00:11:22:33:44:55", CommandSensors))
}

func TestInboundWildcard(t *testing.T) {
	assert.Equal(t, "growrack/rack/+/sensors", InboundWildcard("growrack", ClassSensors))
	assert.Equal(t, "growrack/rack/+/status", InboundWildcard("growrack", ClassStatus))
	assert.Equal(t, "growrack/rack/+/errors", InboundWildcard("growrack", ClassErrors))
}

func TestCommandTopicRoundTrip(t *testing.T) {
	// Outbound command topics must never satisfy the inbound parser:
	// they have five segments.
	topic := CommandTopic("growrack", "AA:BB:CC:DD:EE:FF", CommandWatering)
	_, err := ParseTopic(topic)
	assert.ErrorIs(t, err, ErrInvalidTopic)
}
