package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// ErrNotConnected is returned when publishing or subscribing while the broker connection is
// not open.
var ErrNotConnected = errors.New("mqtt: client not connected")

// ErrTimeout is returned when the broker does not acknowledge an operation in time.
var ErrTimeout = errors.New("mqtt: operation timed out")

const operationTimeout = 10 * time.Second

// MessageHandler receives the topic and raw payload of an inbound message.
type MessageHandler func(topic string, payload []byte)

// Listener receives broker events. OnConnect runs after every successful (re)connect,
// which makes it the place to (re)subscribe. OnMessage receives messages that arrive
// without a per-subscription handler.
type Listener interface {
	OnConnect()
	OnMessage(topic string, payload []byte)
}

// Client is a paho client with zap logging and an optional Listener.
type Client struct {
	opts     *mqtt.ClientOptions
	client   mqtt.Client
	logger   *zap.Logger
	listener Listener
}

// NewClient converts opts and returns a client that is not yet connected.
func NewClient(opts ClientOptions, logger *zap.Logger) (*Client, error) {
	pahoOpts, err := toPahoOptions(opts)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: pahoOpts, logger: logger}, nil
}

// Register installs l as the receiver of connection and message events. It must be
// called before Connect.
func (c *Client) Register(l Listener) {
	c.listener = l
}

// Connect starts the connection to the broker and waits until it is established or ctx is
// done. When connect-retry is enabled paho keeps trying in the background after ctx expires.
func (c *Client) Connect(ctx context.Context) error {
	c.opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("connected to MQTT broker", zap.Strings("servers", c.servers()))
		if c.listener != nil {
			c.listener.OnConnect()
		}
	})
	c.opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.Error(err))
	})
	c.opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		c.logger.Info("reconnecting to MQTT broker")
	})
	c.opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		if c.listener != nil {
			c.listener.OnMessage(msg.Topic(), msg.Payload())
		}
	})

	c.client = mqtt.NewClient(c.opts)
	token := c.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("broker connection error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("broker connection error: %w", ctx.Err())
	}
}

// IsConnected reports whether the connection to the broker is currently open.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnectionOpen()
}

// Publish sends a message to the specified MQTT topic. Messages are not queued while the
// connection is down.
func (c *Client) Publish(topic string, qos byte, retained bool, payload any) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(operationTimeout) {
		c.logger.Error("publish timed out", zap.String("topic", topic))
		return ErrTimeout
	}
	if err := token.Error(); err != nil {
		c.logger.Error("publish error", zap.Error(err), zap.String("topic", topic))
		return fmt.Errorf("publish error: %w", err)
	}
	c.logger.Debug("message published", zap.String("topic", topic))
	return nil
}

// Subscribe registers handler for messages on topic. A nil handler routes messages to the
// registered Listener.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if c.client == nil {
		return ErrNotConnected
	}

	var cb mqtt.MessageHandler
	if handler != nil {
		cb = func(_ mqtt.Client, msg mqtt.Message) {
			handler(msg.Topic(), msg.Payload())
		}
	}

	token := c.client.Subscribe(topic, qos, cb)
	if !token.WaitTimeout(operationTimeout) {
		c.logger.Error("subscribe timed out", zap.String("topic", topic))
		return ErrTimeout
	}
	if err := token.Error(); err != nil {
		c.logger.Error("subscribe error", zap.Error(err), zap.String("topic", topic))
		return fmt.Errorf("subscribe error: %w", err)
	}
	c.logger.Debug("subscribed to topic", zap.String("topic", topic))
	return nil
}

// Disconnect closes the connection to the broker, waiting up to quiesce milliseconds for
// in-flight work.
func (c *Client) Disconnect(quiesce uint) {
	if c.client == nil {
		return
	}
	c.client.Disconnect(quiesce)
	c.logger.Info("disconnected from MQTT broker")
}

func (c *Client) servers() []string {
	brokers := make([]string, len(c.opts.Servers))
	for i, server := range c.opts.Servers {
		brokers[i] = server.String()
	}
	return brokers
}
