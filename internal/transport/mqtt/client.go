// Package mqtt holds the shared broker connection used by reading ingestion
// and command wake-up hints.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultMaxRetries = 5
	defaultMaxElapsed = 10 * time.Second
	disconnectQuiesce = 250
)

// Config describes the broker connection.
type Config struct {
	BrokerURL  string
	Username   string
	Password   string
	ClientID   string
	MaxRetries int
	MaxElapsed time.Duration
}

// Connect dials the broker with exponential backoff and disconnects when ctx ends.
func Connect(ctx context.Context, cfg Config, logger *log.Logger) (paho.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("mqtt: empty broker url")
	}
	if logger == nil {
		logger = log.Default()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	maxElapsed := cfg.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = defaultMaxElapsed
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	var client paho.Client
	err := backoff.Retry(func() error {
		client = paho.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			logger.Printf("mqtt connect error: broker=%s err=%v", cfg.BrokerURL, token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("mqtt: connect after retries: %w", err)
	}
	logger.Printf("mqtt connected: broker=%s", cfg.BrokerURL)

	go func() {
		<-ctx.Done()
		Close(client)
		logger.Printf("mqtt connection closed")
	}()
	return client, nil
}

// Close disconnects a connected client.
func Close(client paho.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(disconnectQuiesce)
	}
}

// Publisher publishes raw payloads through a shared client.
type Publisher struct {
	client paho.Client
}

// NewPublisher constructs a publisher.
func NewPublisher(client paho.Client) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("mqtt: nil client")
	}
	return &Publisher{client: client}, nil
}

// Publish sends payload to topic and waits for the broker handoff.
func (p *Publisher) Publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// MessageHandler processes one inbound message.
type MessageHandler func(ctx context.Context, msg paho.Message) error

// Subscribe registers handler on topic and unsubscribes when ctx ends.
// Handler errors are logged and do not stop the subscription.
func Subscribe(ctx context.Context, client paho.Client, topic string, qos byte, handler MessageHandler, logger *log.Logger) error {
	if client == nil {
		return errors.New("mqtt: nil client")
	}
	if handler == nil {
		return errors.New("mqtt: nil handler")
	}
	if logger == nil {
		logger = log.Default()
	}
	token := client.Subscribe(topic, qos, func(_ paho.Client, msg paho.Message) {
		if err := handler(ctx, msg); err != nil {
			logger.Printf("mqtt handler error: topic=%s err=%v", msg.Topic(), err)
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", topic, err)
	}
	logger.Printf("mqtt subscribed: topic=%s", topic)

	go func() {
		<-ctx.Done()
		if client.IsConnected() {
			client.Unsubscribe(topic).Wait()
		}
	}()
	return nil
}
