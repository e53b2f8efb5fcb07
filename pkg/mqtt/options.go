package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// DefaultBroker is used when no server is configured.
const DefaultBroker = "tcp://127.0.0.1:1883"

// TLSOptions holds TLS configuration that can be decoded from YAML, JSON or env.
type TLSOptions struct {
	Enabled            bool   `mapstructure:"enabled" json:"enabled"`
	InsecureSkipVerify bool   `mapstructure:"insecureSkipVerify" json:"insecureSkipVerify"`
	ServerName         string `mapstructure:"serverName" json:"serverName,omitempty"`
	CAFile             string `mapstructure:"caFile" json:"caFile,omitempty"`
	CertFile           string `mapstructure:"certFile" json:"certFile,omitempty"`
	KeyFile            string `mapstructure:"keyFile" json:"keyFile,omitempty"`
	CACert             string `mapstructure:"caCert" json:"caCert,omitempty"`
	ClientCert         string `mapstructure:"clientCert" json:"clientCert,omitempty"`
	ClientKey          string `mapstructure:"clientKey" json:"clientKey,omitempty"`
}

// ClientOptions describes how to reach the broker.
type ClientOptions struct {
	Servers              []string      `mapstructure:"servers" json:"servers"`
	ClientID             string        `mapstructure:"clientID" json:"clientID"`
	Username             string        `mapstructure:"username" json:"username"`
	Password             string        `mapstructure:"password" json:"password"`
	KeepAlive            time.Duration `mapstructure:"keepAlive" json:"keepAlive"`
	PingTimeout          time.Duration `mapstructure:"pingTimeout" json:"pingTimeout"`
	ConnectTimeout       time.Duration `mapstructure:"connectTimeout" json:"connectTimeout"`
	ConnectRetryInterval time.Duration `mapstructure:"connectRetryInterval" json:"connectRetryInterval"`
	MaxReconnectInterval time.Duration `mapstructure:"maxReconnectInterval" json:"maxReconnectInterval"`
	QoS                  byte          `mapstructure:"qos" json:"qos"`
	AutoReconnect        bool          `mapstructure:"autoReconnect" json:"autoReconnect"`
	ConnectRetry         bool          `mapstructure:"connectRetry" json:"connectRetry"`
	CleanSession         bool          `mapstructure:"cleanSession" json:"cleanSession"`
	TLS                  TLSOptions    `mapstructure:"tls" json:"tls"`
}

// toPahoOptions converts opts into paho options. Event handlers are installed by the Client.
func toPahoOptions(opts ClientOptions) (*mqtt.ClientOptions, error) {
	pahoOpts := mqtt.NewClientOptions()

	servers := opts.Servers
	if len(servers) == 0 {
		servers = []string{DefaultBroker}
	}
	for _, server := range servers {
		u, err := url.Parse(server)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid broker URL %q", server)
		}
		pahoOpts.AddBroker(u.String())
	}

	clientID := opts.ClientID
	if clientID == "" {
		clientID = "eelytics-" + uuid.NewString()[:8]
	}
	pahoOpts.SetClientID(clientID)

	if opts.Username != "" {
		pahoOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		pahoOpts.SetPassword(opts.Password)
	}
	if opts.TLS.Enabled {
		tlsConfig, err := createTLSConfig(opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		pahoOpts.SetTLSConfig(tlsConfig)
	}
	if opts.KeepAlive > 0 {
		pahoOpts.SetKeepAlive(opts.KeepAlive)
	}
	if opts.PingTimeout > 0 {
		pahoOpts.SetPingTimeout(opts.PingTimeout)
	}
	if opts.ConnectTimeout > 0 {
		pahoOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.MaxReconnectInterval > 0 {
		pahoOpts.SetMaxReconnectInterval(opts.MaxReconnectInterval)
	}
	if opts.ConnectRetryInterval > 0 {
		pahoOpts.SetConnectRetryInterval(opts.ConnectRetryInterval)
	}

	pahoOpts.SetCleanSession(opts.CleanSession)
	pahoOpts.SetAutoReconnect(opts.AutoReconnect)
	pahoOpts.SetConnectRetry(opts.ConnectRetry)
	// inbound messages are handed to the listener one at a time
	pahoOpts.SetOrderMatters(true)

	return pahoOpts, nil
}

func createTLSConfig(tlsOpts TLSOptions) (*tls.Config, error) {
	config := &tls.Config{
		InsecureSkipVerify: tlsOpts.InsecureSkipVerify,
		ServerName:         tlsOpts.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if tlsOpts.CAFile != "" || tlsOpts.CACert != "" {
		caCert := []byte(tlsOpts.CACert)
		if tlsOpts.CAFile != "" {
			var err error
			if caCert, err = os.ReadFile(tlsOpts.CAFile); err != nil {
				return nil, fmt.Errorf("failed to read CA file: %w", err)
			}
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case tlsOpts.CertFile != "" && tlsOpts.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(tlsOpts.CertFile, tlsOpts.KeyFile)
	case tlsOpts.ClientCert != "" && tlsOpts.ClientKey != "":
		cert, err = tls.X509KeyPair([]byte(tlsOpts.ClientCert), []byte(tlsOpts.ClientKey))
	default:
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	config.Certificates = []tls.Certificate{cert}

	return config, nil
}
