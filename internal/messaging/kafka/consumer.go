package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// EnvelopeHandler обрабатывает декодированное событие магазина.
type EnvelopeHandler func(ctx context.Context, env Envelope) error

// ConsumerOptions задаёт параметры consumer group.
type ConsumerOptions struct {
	// DLQProducer принимает сообщения, не обработанные за MaxAttempts попыток.
	DLQProducer *Producer
	MaxAttempts int
	RetryDelay  time.Duration
}

// Consumer читает топики магазина consumer group-ом, декодирует Envelope и
// передаёт его обработчику. Сообщение, не обработанное за несколько попыток,
// уходит в shop.dlq; сообщения, которые не декодируются, уходят туда же сразу.
type Consumer struct {
	group       sarama.ConsumerGroup
	topics      []string
	handler     EnvelopeHandler
	logger      *log.Entry
	wg          sync.WaitGroup
	dlqProducer *Producer
	maxAttempts int
	retryDelay  time.Duration
}

// NewConsumer создаёт consumer без DLQ: после исчерпания попыток сообщение
// пропускается с ошибкой в логе.
func NewConsumer(brokers []string, groupID string, topics []string, handler EnvelopeHandler) (*Consumer, error) {
	return NewConsumerWithOptions(brokers, groupID, topics, handler, ConsumerOptions{})
}

// NewConsumerWithOptions создаёт consumer с настройками retry и DLQ.
func NewConsumerWithOptions(brokers []string, groupID string, topics []string, handler EnvelopeHandler, opts ConsumerOptions) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}

	return &Consumer{
		group:       group,
		topics:      topics,
		handler:     handler,
		logger:      log.WithField("component", "kafka-consumer"),
		dlqProducer: opts.DLQProducer,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
	}, nil
}

// Start запускает потребление; Consume перезапускается после каждого rebalance.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("consumer group session failed")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop останавливает consumer и дожидается рабочих горутин.
func (c *Consumer) Stop() error {
	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup — часть контракта sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup — часть контракта sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения одной партиции.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}
			c.consumeMessage(session.Context(), message)
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// consumeMessage декодирует и обрабатывает сообщение; безвозвратные отказы
// уходят в DLQ, чтобы партиция не останавливалась.
func (c *Consumer) consumeMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	fields := log.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
	}

	env, err := ParseEnvelope(message.Value)
	if err != nil {
		c.logger.WithError(err).WithFields(fields).Warn("undecodable message")
		c.deadLetter(message, err, 0)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if lastErr = c.handler(ctx, env); lastErr == nil {
			return
		}
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		}
	}

	c.logger.WithError(lastErr).WithFields(fields).
		WithField("event_type", env.EventType).
		Error("message processing failed after all attempts")
	c.deadLetter(message, lastErr, c.maxAttempts)
}

func (c *Consumer) deadLetter(message *sarama.ConsumerMessage, cause error, attempts int) {
	if c.dlqProducer == nil {
		return
	}

	dl := DeadLetter{
		OriginalTopic: message.Topic,
		Key:           string(message.Key),
		Value:         append([]byte(nil), message.Value...),
		Error:         cause.Error(),
		FailedAt:      time.Now().UTC(),
		Attempts:      attempts,
	}
	if err := c.dlqProducer.SendJSON(TopicDeadLetterQueue, dl.Key, dl); err != nil {
		c.logger.WithError(err).WithField("topic", message.Topic).Error("failed to send message to DLQ")
	}
}

var _ sarama.ConsumerGroupHandler = (*Consumer)(nil)
