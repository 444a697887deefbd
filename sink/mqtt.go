package sink

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/LdDl/tcg-scanner/scanner"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// MQTTOptions configures MQTT sink
type MQTTOptions struct {
	// Broker URL, e.g. tcp://localhost:1883
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Timeout  time.Duration
}

// MQTT publishes frame results to broker topic
type MQTT struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// NewMQTT connects to broker
func NewMQTT(opts MQTTOptions, logger *slog.Logger) (*MQTT, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetMaxReconnectInterval(30 * time.Second)
	clientOpts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", opts.Broker, "error", err)
	}
	client := mqtt.NewClient(clientOpts)

	sink := NewMQTTWithClient(client, opts, logger)
	token := client.Connect()
	if !token.WaitTimeout(sink.timeout) {
		return nil, errors.Errorf("Timeout connecting to '%s'", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "Can't connect to '%s'", opts.Broker)
	}
	logger.Info("mqtt connected", "broker", opts.Broker, "topic", opts.Topic)
	return sink, nil
}

// NewMQTTWithClient wraps already created client
func NewMQTTWithClient(client mqtt.Client, opts MQTTOptions, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTT{
		client:  client,
		topic:   opts.Topic,
		qos:     opts.QoS,
		timeout: timeout,
		logger:  logger,
	}
}

// Publish implements scanner.Sink
func (s *MQTT) Publish(ctx context.Context, result *scanner.FrameResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "Can't encode frame result")
	}
	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-token.Done():
	case <-time.After(s.timeout):
		return errors.Errorf("Timeout publishing to '%s'", s.topic)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "Can't publish to '%s'", s.topic)
	}
	s.logger.Debug("frame published", "topic", s.topic, "size", len(payload))
	return nil
}

// Close disconnects from broker
func (s *MQTT) Close() error {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	return nil
}
