// Package message parses broker topics and decodes device payloads
// into validated typed records. It is stateless and side-effect free.
package message

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTopic marks a topic that does not match the fixed
// <namespace>/rack/<deviceId>/<class> shape.
var ErrInvalidTopic = errors.New("invalid topic")

// rackSegment is the fixed second segment of every device topic.
const rackSegment = "rack"

// Class is the inbound message class carried in the last topic segment.
type Class string

const (
	ClassSensors Class = "sensors"
	ClassStatus  Class = "status"
	ClassErrors  Class = "errors"
)

// CommandType selects the outbound command channel of a rack.
type CommandType string

const (
	CommandWatering CommandType = "watering"
	CommandLighting CommandType = "lighting"
	CommandSensors  CommandType = "sensors"
)

// TopicInfo is the parsed form of an inbound device topic. Class is
// carried verbatim; callers decide what to do with unknown classes.
type TopicInfo struct {
	Namespace string
	RackAddr  string
	Class     Class
}

// ParseTopic splits an inbound topic into its parts. Topics must have
// exactly four non-empty segments: <namespace>/rack/<deviceId>/<class>.
// Anything else returns ErrInvalidTopic.
func ParseTopic(topic string) (TopicInfo, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		return TopicInfo{}, fmt.Errorf("%w: %q has %d segments, want 4", ErrInvalidTopic, topic, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return TopicInfo{}, fmt.Errorf("%w: %q has an empty segment", ErrInvalidTopic, topic)
		}
	}
	if parts[1] != rackSegment {
		return TopicInfo{}, fmt.Errorf("%w: %q is not a rack topic", ErrInvalidTopic, topic)
	}

	return TopicInfo{
		Namespace: parts[0],
		RackAddr:  parts[2],
		Class:     Class(parts[3]),
	}, nil
}

// CommandTopic builds the outbound command topic for one rack.
func CommandTopic(namespace, rackAddr string, cmd CommandType) string {
	return fmt.Sprintf("%s/%s/%s/commands/%s", namespace, rackSegment, rackAddr, cmd)
}

// InboundWildcard builds the subscription filter matching every rack's
// topics for one class.
func InboundWildcard(namespace string, class Class) string {
	return fmt.Sprintf("%s/%s/+/%s", namespace, rackSegment, class)
}
