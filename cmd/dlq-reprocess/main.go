package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// dlq-reprocess возвращает сообщения из shop.dlq в их исходные топики.
// По умолчанию работает как dry-run: печатает, что было бы отправлено;
// реальную отправку включает флаг -execute.
func main() {
	opts, brokers, err := parseFlags(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "dlq-reprocess")

	var sink replaySink = dryRunSink{logger: logger}
	if opts.execute {
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Error("не удалось подключиться к Kafka")
			os.Exit(1)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.WithError(err).Warn("не удалось закрыть producer")
			}
		}()
		sink = producer
	}

	messages, err := drainTopic(brokers, opts.topic, opts.limit)
	if err != nil {
		logger.WithError(err).Error("не удалось прочитать DLQ")
		os.Exit(1)
	}

	stats := reprocess(messages, opts, sink, logger)
	logger.WithFields(log.Fields{
		"read":     len(messages),
		"replayed": stats.replayed,
		"skipped":  stats.skipped,
		"failed":   stats.failed,
		"execute":  opts.execute,
	}).Info("обработка DLQ завершена")
	if stats.failed > 0 {
		os.Exit(1)
	}
}

type options struct {
	topic       string
	targetTopic string
	eventType   string
	limit       int
	execute     bool
}

func parseFlags(args []string) (options, []string, error) {
	var (
		opts       options
		brokersRaw string
	)
	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: SHOP_KAFKA_BROKERS)")
	fs.StringVar(&opts.topic, "topic", kafka.TopicDeadLetterQueue, "DLQ topic to drain")
	fs.StringVar(&opts.targetTopic, "target-topic", "", "override destination topic")
	fs.StringVar(&opts.eventType, "event-type", "", "replay only events of this type")
	fs.IntVar(&opts.limit, "limit", 100, "maximum messages to read")
	fs.BoolVar(&opts.execute, "execute", false, "actually publish instead of dry-run")
	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("SHOP_KAFKA_BROKERS")
	}
	if strings.TrimSpace(brokersRaw) == "" {
		return options{}, nil, errors.New("kafka brokers are required (-brokers or SHOP_KAFKA_BROKERS)")
	}
	return opts, strings.Split(brokersRaw, ","), nil
}

// replaySink отправляет восстановленное сообщение в целевой топик.
type replaySink interface {
	Send(topic, key string, value []byte) error
}

// dryRunSink печатает вместо отправки.
type dryRunSink struct {
	logger *log.Entry
}

func (s dryRunSink) Send(topic, key string, value []byte) error {
	s.logger.WithFields(log.Fields{
		"topic": topic,
		"key":   key,
		"bytes": len(value),
	}).Info("dry-run: сообщение было бы отправлено")
	return nil
}

type replayStats struct {
	replayed int
	skipped  int
	failed   int
}

// reprocess восстанавливает исходные сообщения из dead letter-ов и отдаёт
// их в sink. Недекодируемые записи и записи без целевого топика считаются
// failed, отфильтрованные по типу события — skipped.
func reprocess(messages [][]byte, opts options, sink replaySink, logger *log.Entry) replayStats {
	var stats replayStats
	for _, raw := range messages {
		topic, key, value, err := restore(raw, opts)
		if err != nil {
			if errors.Is(err, errFiltered) {
				stats.skipped++
				continue
			}
			logger.WithError(err).Warn("запись DLQ пропущена")
			stats.failed++
			continue
		}
		if err := sink.Send(topic, key, value); err != nil {
			logger.WithError(err).WithField("topic", topic).Error("не удалось отправить сообщение")
			stats.failed++
			continue
		}
		stats.replayed++
	}
	return stats
}

var errFiltered = errors.New("event type filtered out")

// restore разбирает dead letter и возвращает топик, ключ и тело для повтора.
func restore(raw []byte, opts options) (topic, key string, value []byte, err error) {
	dl, err := kafka.ParseDeadLetter(raw)
	if err != nil {
		return "", "", nil, err
	}

	env, err := kafka.ParseEnvelope(dl.Value)
	if err != nil {
		return "", "", nil, err
	}
	if opts.eventType != "" && env.EventType != opts.eventType {
		return "", "", nil, errFiltered
	}

	topic = opts.targetTopic
	if topic == "" {
		topic = dl.OriginalTopic
	}
	if topic == "" {
		return "", "", nil, fmt.Errorf("dead letter %s has no original topic; use -target-topic", env.ID)
	}

	key = dl.Key
	if key == "" {
		key = env.Key()
	}
	return topic, key, dl.Value, nil
}

// drainTopic вычитывает до limit сообщений со всех партиций топика.
// Чтение партиции прекращается на последнем известном offset-е, чтобы
// инструмент завершался, а не ждал новых сообщений.
func drainTopic(brokers []string, topic string, limit int) ([][]byte, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("connect to kafka: %w", err)
	}
	defer func() { _ = client.Close() }()

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	partitions, err := consumer.Partitions(topic)
	if err != nil {
		return nil, fmt.Errorf("list partitions of %s: %w", topic, err)
	}

	var messages [][]byte
	for _, partition := range partitions {
		if len(messages) >= limit {
			break
		}
		newest, err := client.GetOffset(topic, partition, sarama.OffsetNewest)
		if err != nil {
			return nil, fmt.Errorf("get offset of %s/%d: %w", topic, partition, err)
		}
		if newest == 0 {
			continue
		}

		pc, err := consumer.ConsumePartition(topic, partition, sarama.OffsetOldest)
		if err != nil {
			return nil, fmt.Errorf("consume %s/%d: %w", topic, partition, err)
		}
		messages = drainPartition(pc, messages, newest, limit)
		_ = pc.Close()
	}
	return messages, nil
}

func drainPartition(pc sarama.PartitionConsumer, messages [][]byte, newest int64, limit int) [][]byte {
	for len(messages) < limit {
		select {
		case msg := <-pc.Messages():
			if msg == nil {
				return messages
			}
			messages = append(messages, append([]byte(nil), msg.Value...))
			if msg.Offset >= newest-1 {
				return messages
			}
		case <-time.After(5 * time.Second):
			return messages
		}
	}
	return messages
}
