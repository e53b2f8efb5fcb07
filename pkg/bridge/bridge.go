// Package bridge translates sensor messages from the broker into stored readings and gate
// commands from the HTTP API into broker messages.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/edgeflare/eelytics/pkg/metrics"
	"github.com/edgeflare/eelytics/pkg/mqtt"
	"github.com/edgeflare/eelytics/pkg/store"
	"go.uber.org/zap"
)

// Broker is the part of *mqtt.Client the bridge needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload any) error
	IsConnected() bool
}

// ReadingStore persists readings. *store.Store implements it.
type ReadingStore interface {
	InsertReading(ctx context.Context, tankID int, levelCM float64) (store.Reading, error)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithQoS sets the QoS used for subscriptions and published commands.
func WithQoS(qos byte) Option {
	return func(b *Bridge) { b.qos = qos }
}

// Bridge implements mqtt.Listener.
type Bridge struct {
	broker Broker
	store  ReadingStore
	logger *zap.Logger
	qos    byte
}

var _ mqtt.Listener = (*Bridge)(nil)

type levelPayload struct {
	Level *float64 `json:"level"`
}

type commandPayload struct {
	Action GateAction `json:"action"`
}

// New returns a bridge publishing through broker and persisting into s.
func New(broker Broker, s ReadingStore, opts ...Option) *Bridge {
	b := &Bridge{
		broker: broker,
		store:  s,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnConnect subscribes to the sensor topics.
func (b *Bridge) OnConnect() {
	for _, filter := range []string{TankLevelFilter, GateStatusFilter} {
		if err := b.broker.Subscribe(filter, b.qos, b.OnMessage); err != nil {
			b.logger.Error("subscribe failed", zap.String("filter", filter), zap.Error(err))
		}
	}
}

// OnMessage handles one inbound message. Messages that cannot be decoded or persisted are
// logged and dropped; nothing is returned to the broker.
func (b *Bridge) OnMessage(topic string, payload []byte) {
	start := time.Now()
	kind, rawID := classifyTopic(topic)
	metrics.MessagesReceived.WithLabelValues(kind.String()).Inc()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		b.drop("decode", topic, payload, err)
		return
	}

	switch kind {
	case topicTankLevel:
		b.handleLevel(topic, rawID, payload)
	case topicGateStatus:
		b.logger.Debug("gate status received", zap.String("topic", topic), zap.ByteString("payload", payload))
	default:
		b.logger.Debug("ignoring message on unexpected topic", zap.String("topic", topic))
	}

	metrics.MessageProcessingDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
}

func (b *Bridge) handleLevel(topic, rawID string, payload []byte) {
	tankID, err := parseTankID(rawID)
	if err != nil {
		b.drop("topic", topic, payload, err)
		return
	}

	var p levelPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		b.drop("level", topic, payload, err)
		return
	}
	if p.Level == nil {
		b.drop("level", topic, payload, errors.New("missing level"))
		return
	}

	reading, err := b.store.InsertReading(context.Background(), tankID, *p.Level)
	if err != nil {
		b.drop("store", topic, payload, err)
		return
	}

	metrics.ReadingsPersisted.Inc()
	b.logger.Info("reading persisted",
		zap.Int64("id", reading.ID),
		zap.Int("tank_id", tankID),
		zap.Float64("level_cm", *p.Level))
}

func (b *Bridge) drop(reason, topic string, payload []byte, err error) {
	metrics.MessagesDropped.WithLabelValues(reason).Inc()
	b.logger.Warn("message dropped",
		zap.String("reason", reason),
		zap.String("topic", topic),
		zap.ByteString("payload", payload),
		zap.Error(err))
}

// SendGateCommand publishes action to the gate of tankID.
func (b *Bridge) SendGateCommand(_ context.Context, tankID int, action GateAction) error {
	if _, err := ParseGateAction(string(action)); err != nil {
		return err
	}

	data, err := json.Marshal(commandPayload{Action: action})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	topic := GateCommandTopic(tankID)
	if err := b.broker.Publish(topic, b.qos, false, data); err != nil {
		metrics.PublishErrors.WithLabelValues(string(action)).Inc()
		return fmt.Errorf("publish gate command: %w", err)
	}

	metrics.CommandsPublished.WithLabelValues(string(action)).Inc()
	b.logger.Info("gate command published", zap.String("topic", topic), zap.ByteString("payload", data))
	return nil
}

// Connected reports whether the broker connection is open.
func (b *Bridge) Connected() bool {
	return b.broker.IsConnected()
}

func (k topicKind) String() string {
	switch k {
	case topicTankLevel:
		return "tank_level"
	case topicGateStatus:
		return "gate_status"
	default:
		return "unknown"
	}
}
