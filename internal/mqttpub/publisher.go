package mqttpub

import (
	"fmt"

	"respira-data/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher pushes messages to the device message bus. Implementations are
// best-effort collaborators: callers log and swallow publish failures, they
// never fail a request over them.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Client paho MQTT client wrapper
type Client struct {
	client mqtt.Client
	qos    byte
}

// NewClient connects to the broker. Call only when cfg.Broker is set; an
// unset broker means the side channel is disabled.
func NewClient(cfg *config.MQTTConfig) (*Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Client{client: client, qos: byte(cfg.QoS)}, nil
}

var _ Publisher = (*Client)(nil)

func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	return nil
}

func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
