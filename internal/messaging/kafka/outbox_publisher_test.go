package kafka

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func TestOutboxPublisherWrapsMessageInEnvelope(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			t.Errorf("topic = %q", msg.Topic)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		env, err := ParseEnvelope(raw)
		if err != nil {
			return err
		}
		if env.ID != "outbox-1" || env.EventType != "order.created" || env.AggregateID != "123" {
			t.Errorf("unexpected envelope: %+v", env)
		}
		if env.PublishedAt.IsZero() {
			t.Error("published_at must be set")
		}
		return nil
	})

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "123",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":123}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisherProducerError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	err := publisher.Publish(domain.OutboxMessage{
		ID:        "outbox-2",
		EventType: "order.updated",
		Payload:   []byte(`{"status":"Shipped"}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisherNilProducer(t *testing.T) {
	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestDeadLetterPublisherPublishFailure(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			t.Errorf("topic = %q", msg.Topic)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		dl, err := ParseDeadLetter(raw)
		if err != nil {
			return err
		}
		if dl.OriginalTopic != TopicOrderEvents || dl.Attempts != 5 || dl.Error != "broker down" {
			t.Errorf("unexpected dead letter: %+v", dl)
		}
		env, err := ParseEnvelope(dl.Value)
		if err != nil {
			return err
		}
		if env.ID != "outbox-4" {
			t.Errorf("envelope id = %q", env.ID)
		}
		return nil
	})

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-dlq-publisher-test"),
	}
	dlq := NewDeadLetterPublisher(producer)

	err := dlq.PublishFailure(domain.OutboxMessage{
		ID:            "outbox-4",
		AggregateType: "order",
		AggregateID:   "55",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":55}`),
	}, errors.New("broker down"), 5)
	if err != nil {
		t.Fatalf("publish failure: %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDeadLetterPublisherNilProducer(t *testing.T) {
	dlq := NewDeadLetterPublisher(nil)
	if err := dlq.PublishFailure(domain.OutboxMessage{}, errors.New("x"), 1); err == nil {
		t.Fatal("expected error for nil producer")
	}
}
