package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewConsumer(brokers []string, groupID, topic string, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger,
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume reads until ctx is done. Messages that are not lookup events are
// logged and skipped; a handler error stops consumption.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, LookupEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		event, err := DecodeLookupEvent(msg.Value)
		if err != nil {
			c.logger.Warn("skip undecodable lookup event", "offset", msg.Offset, "error", err)
			continue
		}

		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

func DecodeLookupEvent(data []byte) (LookupEvent, error) {
	var event LookupEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return LookupEvent{}, err
	}
	if event.Airport == "" {
		return LookupEvent{}, errors.New("lookup event without airport")
	}
	return event, nil
}
