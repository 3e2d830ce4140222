package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/GriffinCanCode/coordwatch/internal/coords"
	"github.com/GriffinCanCode/coordwatch/internal/trace"
	"github.com/GriffinCanCode/coordwatch/pkg/action"
)

// MQTTConfig locates the broker and the topic namespace.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTT publishes the monitoring state (retained) and accepted coordinates.
type MQTT struct {
	client      publisher
	monitoring  string
	coordinates string
}

// NewMQTT connects to the broker. The broker publishes a retained
// inactive state if the connection drops.
func NewMQTT(ctx context.Context, cfg MQTTConfig) (*MQTT, error) {
	m := newMQTT(nil, cfg.TopicPrefix)
	will, _ := json.Marshal(action.State(false))

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(ConnectTimeout).
		SetBinaryWill(m.monitoring, will, QoS, true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}
	trace.Logger(ctx).Info("mqtt connected", "broker", cfg.Broker, "client_id", cfg.ClientID)
	m.client = client
	return m, nil
}

func newMQTT(client publisher, prefix string) *MQTT {
	return &MQTT{
		client:      client,
		monitoring:  path.Join(prefix, TopicMonitoring),
		coordinates: path.Join(prefix, TopicCoordinates),
	}
}

func (m *MQTT) MonitoringChanged(ctx context.Context, active bool) {
	m.publish(ctx, m.monitoring, true, action.State(active))
}

func (m *MQTT) CoordinateAccepted(ctx context.Context, c coords.Coordinate) {
	m.publish(ctx, m.coordinates, false, c)
}

func (m *MQTT) publish(ctx context.Context, topic string, retained bool, v any) {
	log := trace.Logger(ctx)
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error("mqtt payload encode failed", "topic", topic, "error", err)
		return
	}
	token := m.client.Publish(topic, QoS, retained, payload)
	if !token.WaitTimeout(PublishTimeout) {
		log.Warn("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(DisconnectQuiet)
}
