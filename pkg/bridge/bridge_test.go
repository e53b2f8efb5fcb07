package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgeflare/eelytics/pkg/mqtt"
	"github.com/edgeflare/eelytics/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeBroker struct {
	mu            sync.Mutex
	subscriptions []string
	published     []published
	subscribeErr  error
	publishErr    error
	connected     bool
}

func (f *fakeBroker) Subscribe(topic string, _ byte, _ mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.subscriptions = append(f.subscriptions, topic)
	return nil
}

func (f *fakeBroker) Publish(topic string, qos byte, _ bool, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, qos: qos, payload: payload.([]byte)})
	return nil
}

func (f *fakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

type fakeStore struct {
	mu       sync.Mutex
	readings []store.Reading
	err      error
}

func (f *fakeStore) InsertReading(_ context.Context, tankID int, levelCM float64) (store.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return store.Reading{}, f.err
	}
	r := store.Reading{
		ID:        int64(len(f.readings) + 1),
		TankID:    tankID,
		LevelCM:   levelCM,
		Timestamp: time.Now(),
	}
	f.readings = append(f.readings, r)
	return r, nil
}

func newTestBridge(t *testing.T) (*Bridge, *fakeBroker, *fakeStore, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	broker := &fakeBroker{connected: true}
	s := &fakeStore{}
	return New(broker, s, WithLogger(zap.New(core))), broker, s, logs
}

func TestOnConnect(t *testing.T) {
	t.Run("subscribes to sensor topics", func(t *testing.T) {
		b, broker, _, _ := newTestBridge(t)
		b.OnConnect()
		assert.ElementsMatch(t, []string{TankLevelFilter, GateStatusFilter}, broker.subscriptions)
	})

	t.Run("logs subscribe failures", func(t *testing.T) {
		b, broker, _, logs := newTestBridge(t)
		broker.subscribeErr = errors.New("not authorized")
		assert.NotPanics(t, b.OnConnect)
		assert.Equal(t, 2, logs.FilterMessage("subscribe failed").Len())
	})
}

func TestOnMessagePersistsLevel(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		tankID  int
		level   float64
	}{
		{"integer level", "sensor/tank/3/water_level", `{"level": 42}`, 3, 42},
		{"float level", "sensor/tank/12/water_level", `{"level": 17.25}`, 12, 17.25},
		{"negative level", "sensor/tank/1/water_level", `{"level": -0.5}`, 1, -0.5},
		{"extra fields", "sensor/tank/7/water_level", `{"level": 5, "unit": "cm", "rssi": -70}`, 7, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, s, logs := newTestBridge(t)
			b.OnMessage(tt.topic, []byte(tt.payload))

			require.Len(t, s.readings, 1)
			assert.Equal(t, tt.tankID, s.readings[0].TankID)
			assert.Equal(t, tt.level, s.readings[0].LevelCM)
			assert.Equal(t, 1, logs.FilterMessage("reading persisted").Len())
		})
	}
}

func TestOnMessageDrops(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		reason  string
	}{
		{"string level", "sensor/tank/3/water_level", `{"level": "high"}`, "level"},
		{"numeric string level", "sensor/tank/3/water_level", `{"level": "12"}`, "level"},
		{"missing level", "sensor/tank/3/water_level", `{"depth": 12}`, "level"},
		{"null level", "sensor/tank/3/water_level", `{"level": null}`, "level"},
		{"bool level", "sensor/tank/3/water_level", `{"level": true}`, "level"},
		{"invalid json", "sensor/tank/3/water_level", `{"level": `, "decode"},
		{"not an object", "sensor/tank/3/water_level", `[1, 2]`, "decode"},
		{"plain number", "sensor/tank/3/water_level", `42`, "decode"},
		{"empty payload", "sensor/tank/3/water_level", ``, "decode"},
		{"non-integer tank id", "sensor/tank/north/water_level", `{"level": 1}`, "topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, s, logs := newTestBridge(t)
			assert.NotPanics(t, func() { b.OnMessage(tt.topic, []byte(tt.payload)) })

			assert.Empty(t, s.readings)
			dropped := logs.FilterMessage("message dropped").All()
			require.Len(t, dropped, 1)
			assert.Equal(t, tt.reason, dropped[0].ContextMap()["reason"])
			assert.Equal(t, tt.topic, dropped[0].ContextMap()["topic"])
		})
	}
}

func TestOnMessageIgnoresOtherTopics(t *testing.T) {
	topics := []string{
		"sensor/gate/4/status",
		"sensor/tank/3/temperature",
		"sensor/tank",
		"sensor",
		"",
		"sensor/tank/3/water_level/extra",
		"other/tank/3/water_level",
	}

	for _, topic := range topics {
		t.Run(topic, func(t *testing.T) {
			b, _, s, logs := newTestBridge(t)
			assert.NotPanics(t, func() { b.OnMessage(topic, []byte(`{"level": 10, "state": "open"}`)) })
			assert.Empty(t, s.readings)
			assert.Zero(t, logs.FilterMessage("message dropped").Len())
		})
	}
}

func TestOnMessageStoreFailure(t *testing.T) {
	b, _, s, logs := newTestBridge(t)
	s.err = errors.New("connection refused")

	assert.NotPanics(t, func() { b.OnMessage("sensor/tank/3/water_level", []byte(`{"level": 10}`)) })
	assert.Empty(t, s.readings)

	dropped := logs.FilterMessage("message dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "store", dropped[0].ContextMap()["reason"])
	assert.Equal(t, "connection refused", dropped[0].ContextMap()["error"])

	// the bridge keeps working after a failure
	s.err = nil
	b.OnMessage("sensor/tank/3/water_level", []byte(`{"level": 11}`))
	assert.Len(t, s.readings, 1)
}

func TestSendGateCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("open", func(t *testing.T) {
		b, broker, _, _ := newTestBridge(t)
		require.NoError(t, b.SendGateCommand(ctx, 5, GateOpen))
		require.Len(t, broker.published, 1)
		assert.Equal(t, "command/gate/5/action", broker.published[0].topic)
		assert.JSONEq(t, `{"action":"open"}`, string(broker.published[0].payload))
		assert.Equal(t, `{"action":"open"}`, string(broker.published[0].payload))
	})

	t.Run("close with qos", func(t *testing.T) {
		core, _ := observer.New(zap.InfoLevel)
		broker := &fakeBroker{}
		b := New(broker, &fakeStore{}, WithLogger(zap.New(core)), WithQoS(1))
		require.NoError(t, b.SendGateCommand(ctx, 9, GateClose))
		require.Len(t, broker.published, 1)
		assert.Equal(t, "command/gate/9/action", broker.published[0].topic)
		assert.Equal(t, byte(1), broker.published[0].qos)
		assert.Equal(t, `{"action":"close"}`, string(broker.published[0].payload))
	})

	t.Run("invalid action", func(t *testing.T) {
		b, broker, _, _ := newTestBridge(t)
		err := b.SendGateCommand(ctx, 5, GateAction("explode"))
		require.ErrorIs(t, err, ErrInvalidAction)
		assert.Empty(t, broker.published)
	})

	t.Run("publish failure", func(t *testing.T) {
		b, broker, _, _ := newTestBridge(t)
		broker.publishErr = errors.New("not connected")
		err := b.SendGateCommand(ctx, 5, GateOpen)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not connected")
	})
}

func TestConnected(t *testing.T) {
	b, broker, _, _ := newTestBridge(t)
	assert.True(t, b.Connected())
	broker.connected = false
	assert.False(t, b.Connected())
}
