package bridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/edgeflare/eelytics/pkg/mqtt"
)

// Subscription filters, subscribed on every (re)connect.
const (
	TankLevelFilter  = "sensor/tank/+/water_level"
	GateStatusFilter = "sensor/gate/+/status"
)

// GateAction is a command understood by the gate controllers.
type GateAction string

const (
	GateOpen  GateAction = "open"
	GateClose GateAction = "close"
)

// ErrInvalidAction is returned for gate actions other than open and close.
var ErrInvalidAction = errors.New("invalid gate action")

// ParseGateAction validates s against the known gate actions.
func ParseGateAction(s string) (GateAction, error) {
	switch a := GateAction(s); a {
	case GateOpen, GateClose:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// GateCommandTopic returns the topic gate commands for tankID are published on.
func GateCommandTopic(tankID int) string {
	return fmt.Sprintf("command/gate/%d/action", tankID)
}

type topicKind int

const (
	topicUnknown topicKind = iota
	topicTankLevel
	topicGateStatus
)

// classifyTopic returns the topic kind and the raw id segment.
func classifyTopic(topic string) (topicKind, string) {
	var kind topicKind
	switch {
	case mqtt.Match(TankLevelFilter, topic):
		kind = topicTankLevel
	case mqtt.Match(GateStatusFilter, topic):
		kind = topicGateStatus
	default:
		return topicUnknown, ""
	}
	// both filters are sensor/<device>/+/<leaf>
	return kind, strings.Split(topic, "/")[2]
}

func parseTankID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid tank id %q: %w", s, err)
	}
	return id, nil
}
