package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGateAction(t *testing.T) {
	for _, s := range []string{"open", "close"} {
		a, err := ParseGateAction(s)
		require.NoError(t, err)
		assert.Equal(t, GateAction(s), a)
	}

	for _, s := range []string{"", "explode", "OPEN", " open", "opened"} {
		_, err := ParseGateAction(s)
		assert.ErrorIs(t, err, ErrInvalidAction, "action %q", s)
	}
}

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		topic string
		kind  topicKind
		id    string
	}{
		{"sensor/tank/3/water_level", topicTankLevel, "3"},
		{"sensor/tank/abc/water_level", topicTankLevel, "abc"},
		{"sensor/gate/8/status", topicGateStatus, "8"},
		{"sensor/tank/3/status", topicUnknown, ""},
		{"sensor/gate/8/water_level", topicUnknown, ""},
		{"sensor/tank/3", topicUnknown, ""},
		{"/sensor/tank/3/water_level", topicUnknown, ""},
		{"", topicUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			kind, id := classifyTopic(tt.topic)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestGateCommandTopic(t *testing.T) {
	assert.Equal(t, "command/gate/5/action", GateCommandTopic(5))
}

func TestClassifyTopicEmptyID(t *testing.T) {
	kind, id := classifyTopic("sensor/tank//water_level")
	assert.Equal(t, topicTankLevel, kind)
	assert.Empty(t, id)

	_, err := parseTankID(id)
	assert.Error(t, err)
}
