package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный топик, оборачивая
// их в Envelope. Ключ сообщения — идентификатор агрегата, поэтому события
// одного заказа сохраняют порядок внутри партиции.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	env := NewEnvelope(event)
	return p.producer.SendJSON(p.topic, env.Key(), env)
}

// DeadLetterPublisher уводит непубликуемые outbox-сообщения в shop.dlq в
// формате DeadLetter, с исходным Envelope внутри.
type DeadLetterPublisher struct {
	producer *Producer
	topic    string
}

// NewDeadLetterPublisher создаёт паблишер отказов для outbox worker.
func NewDeadLetterPublisher(producer *Producer) *DeadLetterPublisher {
	return &DeadLetterPublisher{producer: producer, topic: TopicDeadLetterQueue}
}

// PublishFailure публикует исходное событие вместе с причиной отказа.
func (p *DeadLetterPublisher) PublishFailure(event domain.OutboxMessage, cause error, attempts int) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dead letter publisher is not initialized")
	}

	env := NewEnvelope(event)
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal dead letter value: %w", err)
	}

	dl := DeadLetter{
		OriginalTopic: topicForAggregate(event.AggregateType),
		Key:           env.Key(),
		Value:         value,
		Error:         cause.Error(),
		FailedAt:      time.Now().UTC(),
		Attempts:      attempts,
	}
	return p.producer.SendJSON(p.topic, env.Key(), dl)
}

// topicForAggregate возвращает топик, в котором живут события агрегата.
func topicForAggregate(aggregateType string) string {
	if aggregateType == "product" {
		return TopicCatalogEvents
	}
	return TopicOrderEvents
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
