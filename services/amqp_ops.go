package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"gamefeed-service/logger"
	"gamefeed-service/models"
)

const (
	amqpReconnectInitial = 1 * time.Second
	amqpReconnectMax     = 60 * time.Second
)

// AMQPOpsFeed consumes ops events published by external tooling to an
// AMQP queue, for deployments where operations health comes from
// outside the process. Deliveries are JSON-encoded models.Event; bad
// payloads are acked and dropped. The consumer reconnects with
// exponential backoff for the life of the feed.
type AMQPOpsFeed struct {
	url       string
	queueName string

	buffer *ChannelOpsFeed

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	done    chan struct{}
}

// NewAMQPOpsFeed dials the broker and starts consuming. The initial
// connection failure is returned so startup can fall back to the
// in-memory feed.
func NewAMQPOpsFeed(url, queueName string) (*AMQPOpsFeed, error) {
	feed := &AMQPOpsFeed{
		url:       url,
		queueName: queueName,
		buffer:    NewChannelOpsFeed(),
		done:      make(chan struct{}),
	}

	deliveries, err := feed.connectAndConsume()
	if err != nil {
		return nil, fmt.Errorf("initial connection failed: %w", err)
	}

	go feed.consumeLoop(deliveries)
	return feed, nil
}

func (f *AMQPOpsFeed) connectAndConsume() (<-chan amqp.Delivery, error) {
	logger.Printf("[AMQP] Connecting to ops broker...")

	conn, err := amqp.Dial(f.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue, err := channel.QueueDeclare(
		f.queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	deliveries, err := channel.Consume(
		queue.Name,
		"",    // consumer tag
		true,  // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	f.channel = channel
	f.mu.Unlock()

	logger.Printf("[AMQP] Consuming ops events from queue %s", queue.Name)
	return deliveries, nil
}

// consumeLoop moves deliveries into the buffer and reconnects when the
// channel dies.
func (f *AMQPOpsFeed) consumeLoop(deliveries <-chan amqp.Delivery) {
	for {
		for delivery := range deliveries {
			f.handleDelivery(delivery)
		}

		f.mu.Lock()
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return
		}

		deliveries = f.reconnect()
		if deliveries == nil {
			return
		}
	}
}

func (f *AMQPOpsFeed) handleDelivery(delivery amqp.Delivery) {
	var event models.Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		logger.Errorf("[AMQP] dropping malformed ops event: %v", err)
		return
	}
	// Source and priority are server-assigned regardless of publisher.
	event.Source = models.EventSourceOps
	event.Priority = models.PriorityFor(event.Kind)
	f.buffer.Publish(event)
}

// reconnect retries with exponential backoff until connected or the
// feed is closed.
func (f *AMQPOpsFeed) reconnect() <-chan amqp.Delivery {
	delay := amqpReconnectInitial
	for {
		select {
		case <-f.done:
			return nil
		case <-time.After(delay):
		}

		logger.Printf("[AMQP] Reconnecting in %v...", delay)
		deliveries, err := f.connectAndConsume()
		if err == nil {
			logger.Println("[AMQP] Reconnected")
			return deliveries
		}
		logger.Errorf("[AMQP] reconnect failed: %v", err)

		delay *= 2
		if delay > amqpReconnectMax {
			delay = amqpReconnectMax
		}
	}
}

func (f *AMQPOpsFeed) Subscribe() *OpsSubscription {
	return f.buffer.Subscribe()
}

func (f *AMQPOpsFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)

	if f.channel != nil {
		f.channel.Close()
	}
	if f.conn != nil {
		f.conn.Close()
	}
	return f.buffer.Close()
}
