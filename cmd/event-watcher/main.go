package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// event-watcher подписывается на события заказов и печатает их в лог.
// Инструмент для отладки и наблюдения за потоком событий.
func main() {
	var (
		brokersRaw string
		topic      string
		groupID    string
	)

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: SHOP_KAFKA_BROKERS)")
	flag.StringVar(&topic, "topic", kafka.TopicOrderEvents, "topic to watch")
	flag.StringVar(&groupID, "group", "shop-event-watcher", "consumer group id")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "event-watcher")

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("SHOP_KAFKA_BROKERS")
	}
	if strings.TrimSpace(brokersRaw) == "" {
		_, _ = fmt.Fprintln(os.Stderr, "kafka brokers are required (-brokers or SHOP_KAFKA_BROKERS)")
		os.Exit(1)
	}
	brokers := strings.Split(brokersRaw, ",")

	handler := func(_ context.Context, env kafka.Envelope) error {
		fields := log.Fields{
			"event_type":   env.EventType,
			"aggregate_id": env.AggregateID,
		}
		switch env.EventType {
		case domain.EventOrderCreated:
			event, err := env.OrderCreated()
			if err != nil {
				logger.WithError(err).WithFields(fields).Warn("не удалось разобрать событие")
				return err
			}
			fields["user_id"] = event.UserID
			fields["status"] = event.Status
			fields["lines"] = len(event.Lines)
		case domain.EventOrderUpdated:
			event, err := env.OrderUpdated()
			if err != nil {
				logger.WithError(err).WithFields(fields).Warn("не удалось разобрать событие")
				return err
			}
			fields["user_id"] = event.UserID
			fields["status"] = event.Status
		}
		logger.WithFields(fields).Info("событие заказа")
		return nil
	}

	consumer, err := kafka.NewConsumer(brokers, groupID, []string{topic}, handler)
	if err != nil {
		logger.WithError(err).Error("не удалось создать consumer")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(log.Fields{"topic": topic, "group": groupID}).Info("наблюдаем за событиями")
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Error("consumer завершился с ошибкой")
		os.Exit(1)
	}

	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("не удалось закрыть consumer")
	}
}
