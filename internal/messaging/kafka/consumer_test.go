package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return m.topic }
func (m *mockClaim) Partition() int32                         { return m.partition }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func envelopeMessage(t *testing.T, eventType, aggregateID string) *sarama.ConsumerMessage {
	t.Helper()

	value, err := json.Marshal(Envelope{
		ID:          "evt-1",
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     json.RawMessage(`{"order_id":1}`),
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &sarama.ConsumerMessage{
		Topic:     TopicOrderEvents,
		Partition: 0,
		Offset:    1,
		Key:       []byte(aggregateID),
		Value:     value,
	}
}

func TestNewConsumerErrors(t *testing.T) {
	handler := func(context.Context, Envelope) error { return nil }
	if _, err := NewConsumer([]string{"invalid-broker:9092"}, "group", []string{"topic"}, handler); err == nil {
		t.Fatal("expected new consumer error")
	}
	if _, err := NewConsumerWithOptions([]string{"invalid-broker:9092"}, "group", []string{"topic"}, handler, ConsumerOptions{MaxAttempts: 3}); err == nil {
		t.Fatal("expected new consumer with options error")
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
			consumeCalls++
			cancel()
			return nil
		},
		closeFn: func() error {
			close(errorsCh)
			return nil
		},
	}

	consumer := &Consumer{
		group:       group,
		topics:      []string{"topic-a"},
		handler:     func(context.Context, Envelope) error { return nil },
		logger:      log.WithField("test", "consumer"),
		maxAttempts: 2,
	}

	errorsCh <- errors.New("background error")
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestConsumerStopError(t *testing.T) {
	errorsCh := make(chan error)
	group := &mockConsumerGroup{errorsCh: errorsCh, closeFn: func() error {
		close(errorsCh)
		return errors.New("close failed")
	}}
	consumer := &Consumer{group: group, logger: log.WithField("test", "stop")}
	if err := consumer.Stop(); err == nil {
		t.Fatal("expected stop error")
	}
}

func TestConsumerSetupCleanup(t *testing.T) {
	consumer := &Consumer{}
	if err := consumer.Setup(nil); err != nil {
		t.Fatalf("setup should return nil: %v", err)
	}
	if err := consumer.Cleanup(nil); err != nil {
		t.Fatalf("cleanup should return nil: %v", err)
	}
}

func TestConsumeClaimDeliversEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received []Envelope
	consumer := &Consumer{
		handler: func(_ context.Context, env Envelope) error {
			received = append(received, env)
			return nil
		},
		logger:      log.WithField("test", "claim"),
		maxAttempts: 1,
	}

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- envelopeMessage(t, "order.created", "42")
	close(claim.messages)

	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if len(session.marked) != 1 {
		t.Fatalf("expected one marked message, got %d", len(session.marked))
	}
	if len(received) != 1 || received[0].EventType != "order.created" || received[0].AggregateID != "42" {
		t.Fatalf("unexpected envelope: %+v", received)
	}
}

func TestConsumeClaimSendsUndecodableToDLQ(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			t.Errorf("dlq topic = %q", msg.Topic)
		}
		return nil
	})

	handlerCalls := 0
	consumer := &Consumer{
		handler: func(context.Context, Envelope) error {
			handlerCalls++
			return nil
		},
		logger:      log.WithField("test", "claim-broken"),
		dlqProducer: &Producer{producer: mockProducer, logger: log.WithField("test", "dlq")},
		maxAttempts: 1,
	}

	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: TopicOrderEvents, messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- &sarama.ConsumerMessage{Topic: TopicOrderEvents, Value: []byte("not json")}
	close(claim.messages)

	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if handlerCalls != 0 {
		t.Fatal("handler must not see undecodable messages")
	}
	// Сообщение подтверждается, чтобы не останавливать партицию.
	if len(session.marked) != 1 {
		t.Fatalf("expected one marked message, got %d", len(session.marked))
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumeMessageRetriesThenDeadLetters(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		dl, err := ParseDeadLetter(raw)
		if err != nil {
			return err
		}
		if dl.OriginalTopic != TopicOrderEvents || dl.Attempts != 3 {
			t.Errorf("unexpected dead letter: %+v", dl)
		}
		if _, err := ParseEnvelope(dl.Value); err != nil {
			t.Errorf("dead letter must carry the original envelope: %v", err)
		}
		return nil
	})

	attempts := 0
	consumer := &Consumer{
		handler: func(context.Context, Envelope) error {
			attempts++
			return errors.New("permanent")
		},
		logger:      log.WithField("test", "retry-dlq"),
		dlqProducer: &Producer{producer: mockProducer, logger: log.WithField("test", "dlq")},
		maxAttempts: 3,
		retryDelay:  time.Millisecond,
	}

	consumer.consumeMessage(context.Background(), envelopeMessage(t, "order.created", "7"))
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumeMessageRecoversWithinRetries(t *testing.T) {
	attempts := 0
	consumer := &Consumer{
		handler: func(context.Context, Envelope) error {
			attempts++
			if attempts < 2 {
				return errors.New("temporary")
			}
			return nil
		},
		logger:      log.WithField("test", "retry-recover"),
		maxAttempts: 3,
		retryDelay:  time.Millisecond,
	}

	consumer.consumeMessage(context.Background(), envelopeMessage(t, "order.updated", "8"))
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler:     func(context.Context, Envelope) error { return nil },
		logger:      log.WithField("test", "claim-stop"),
		maxAttempts: 1,
	}
	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: "topic", messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
