package mqtt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPahoOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := toPahoOptions(ClientOptions{})
		require.NoError(t, err)
		require.Len(t, opts.Servers, 1)
		assert.Equal(t, DefaultBroker, opts.Servers[0].String())
		assert.True(t, strings.HasPrefix(opts.ClientID, "eelytics-"))
		assert.True(t, opts.Order)
		assert.Nil(t, opts.TLSConfig)
	})

	t.Run("explicit values", func(t *testing.T) {
		opts, err := toPahoOptions(ClientOptions{
			Servers:       []string{"tcp://broker-a:1883", "ssl://broker-b:8883"},
			ClientID:      "relay-1",
			Username:      "relay",
			Password:      "secret",
			KeepAlive:     5 * time.Second,
			PingTimeout:   2 * time.Second,
			AutoReconnect: true,
			CleanSession:  true,
		})
		require.NoError(t, err)
		require.Len(t, opts.Servers, 2)
		assert.Equal(t, "ssl://broker-b:8883", opts.Servers[1].String())
		assert.Equal(t, "relay-1", opts.ClientID)
		assert.Equal(t, "relay", opts.Username)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, int64(5), opts.KeepAlive)
		assert.Equal(t, 2*time.Second, opts.PingTimeout)
		assert.True(t, opts.AutoReconnect)
		assert.True(t, opts.CleanSession)
	})

	t.Run("invalid server", func(t *testing.T) {
		_, err := toPahoOptions(ClientOptions{Servers: []string{"not a url"}})
		require.Error(t, err)
	})

	t.Run("tls with bad CA", func(t *testing.T) {
		_, err := toPahoOptions(ClientOptions{TLS: TLSOptions{Enabled: true, CACert: "garbage"}})
		require.Error(t, err)
	})

	t.Run("tls without material", func(t *testing.T) {
		opts, err := toPahoOptions(ClientOptions{TLS: TLSOptions{Enabled: true, ServerName: "broker"}})
		require.NoError(t, err)
		require.NotNil(t, opts.TLSConfig)
		assert.Equal(t, "broker", opts.TLSConfig.ServerName)
	})
}

func TestClientNotConnected(t *testing.T) {
	c, err := NewClient(ClientOptions{}, nil)
	require.NoError(t, err)

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish("command/gate/1/action", 0, false, []byte("{}")), ErrNotConnected)
	assert.ErrorIs(t, c.Subscribe("sensor/#", 0, nil), ErrNotConnected)
	c.Disconnect(0)
}
