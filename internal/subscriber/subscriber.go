package subscriber

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/Vrajp222/Donation-Tracker/config"
	"github.com/Vrajp222/Donation-Tracker/internal/models"
	"github.com/Vrajp222/Donation-Tracker/internal/publisher"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaConsumer reads wallet events from multiple topics, retrying failed
// handlers with backoff and routing exhausted messages to the DLQ.
type KafkaConsumer struct {
	Readers      []*kafka.Reader
	DLQPublisher *publisher.KafkaPublisher
	RetryConfig  config.RetryConfig
}

func NewMultiTopicConsumer(
	brokers []string,
	topics []string,
	groupID string,
	publisher *publisher.KafkaPublisher,
	retryConfig config.RetryConfig,
) *KafkaConsumer {
	readers := make([]*kafka.Reader, len(topics))
	for i, topic := range topics {
		readers[i] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
	}

	return &KafkaConsumer{
		Readers:      readers,
		DLQPublisher: publisher,
		RetryConfig:  retryConfig,
	}
}

func (c *KafkaConsumer) Listen(ctx context.Context, handler func(topic string, value []byte) error) {
	for _, reader := range c.Readers {
		go func(r *kafka.Reader) {
			for {
				msg, err := r.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logrus.Errorf("Kafka error: %s", err.Error())
					continue
				}
				c.processMessage(ctx, msg, handler)
			}
		}(reader)
	}
}

func (c *KafkaConsumer) processMessage(ctx context.Context, msg kafka.Message, handler func(topic string, value []byte) error) {
	for attempt := 0; attempt < c.RetryConfig.MaxAttempts; attempt++ {
		err := handler(msg.Topic, msg.Value)
		if err == nil {
			return
		}

		backoff := c.calculateBackoff(attempt)
		logrus.Warnf("Handler error, attempt %d/%d: %v. Retrying in %v", attempt+1, c.RetryConfig.MaxAttempts, err, backoff)
		time.Sleep(backoff)
	}

	logrus.Errorf("Message failed after %d retries: topic=%s, key=%s", c.RetryConfig.MaxAttempts, msg.Topic, string(msg.Key))
	if c.DLQPublisher != nil {
		dlqMessage := models.DLQMessage{
			OriginalTopic: msg.Topic,
			Key:           string(msg.Key),
			Value:         string(msg.Value),
			Timestamp:     time.Now().UTC(),
			Attempts:      c.RetryConfig.MaxAttempts,
		}
		if err := c.DLQPublisher.Publish(ctx, models.WalletDLQTopic, dlqMessage); err != nil {
			logrus.Errorf("Failed to send message to DLQ: %s", err.Error())
		}
	}
}

func (c *KafkaConsumer) calculateBackoff(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * c.RetryConfig.BaseDelay

	if delay > c.RetryConfig.MaxDelay {
		delay = c.RetryConfig.MaxDelay
	}

	if c.RetryConfig.Jitter {
		jitter := time.Duration(rand.Float64() * float64(delay) * 0.3)
		delay = delay + jitter - time.Duration(float64(delay)*0.15)
	}

	return delay
}
