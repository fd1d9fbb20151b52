package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTOptions configures the MQTT notifier.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// mqttPublisher is the subset of mqtt.Client used by MQTT.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes notifications as JSON to <prefix>/reminders.
type MQTT struct {
	client mqttPublisher
	topic  string
	close  func()
}

// DialMQTT connects to the broker.
func DialMQTT(opts MQTTOptions) (*MQTT, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(true)
	o.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(o)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("notify: connect mqtt: %w", token.Error())
	}
	m := newMQTT(client, opts.TopicPrefix)
	m.close = func() { client.Disconnect(250) }
	return m, nil
}

func newMQTT(client mqttPublisher, prefix string) *MQTT {
	if prefix == "" {
		prefix = "dosewise"
	}
	return &MQTT{client: client, topic: prefix + "/reminders"}
}

// Notify publishes n with QoS 1 and waits for the broker ack or ctx.
func (m *MQTT) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	token := m.client.Publish(m.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.close != nil {
		m.close()
	}
}
