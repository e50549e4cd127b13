package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"smartgarden-cloud/internal/commands/application/events"
	"smartgarden-cloud/internal/eventing"
	"smartgarden-cloud/internal/observability/metrics"
)

// DefaultTopicTemplate is where wake-up hints are published.
const DefaultTopicTemplate = "garden/devices/{device}/commands"

const hintQoS = 0

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// Notifier publishes a best-effort wake-up hint for each queued command.
// Devices still pull the authoritative queue over HTTP.
type Notifier struct {
	publisher     Publisher
	topicTemplate string
	logger        *log.Logger
}

type hint struct {
	CommandID string `json:"commandId"`
	Action    string `json:"action"`
}

// NewNotifier constructs a notifier. An empty template uses DefaultTopicTemplate.
func NewNotifier(publisher Publisher, topicTemplate string, logger *log.Logger) (*Notifier, error) {
	if publisher == nil {
		return nil, errors.New("command notifier: nil publisher")
	}
	if topicTemplate == "" {
		topicTemplate = DefaultTopicTemplate
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{publisher: publisher, topicTemplate: topicTemplate, logger: logger}, nil
}

// Register subscribes the notifier to CommandIssued events.
func (n *Notifier) Register(bus eventing.EventBus) {
	eventing.Subscribe(bus, "command-notifier", n.Handle)
}

// Handle publishes the hint. Publish failures are logged, never returned.
func (n *Notifier) Handle(_ context.Context, event events.CommandIssued) error {
	payload, err := json.Marshal(hint{CommandID: event.CommandID, Action: event.Action})
	if err != nil {
		return err
	}
	topic := n.Topic(event.DeviceID)
	if err := n.publisher.Publish(topic, hintQoS, payload); err != nil {
		metrics.IncMQTTMessage(metrics.DirectionOutbound, metrics.ResultError)
		n.logger.Printf("command hint publish error: device=%s command=%s err=%v", event.DeviceID, event.CommandID, err)
		return nil
	}
	metrics.IncMQTTMessage(metrics.DirectionOutbound, metrics.ResultSuccess)
	return nil
}

// Topic renders the hint topic for a device.
func (n *Notifier) Topic(deviceID string) string {
	return strings.ReplaceAll(n.topicTemplate, "{device}", deviceID)
}
