package unread

import (
	"context"
	"encoding/json"
	"time"

	zlog "github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader builds a consumer-group reader for the row-change topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Consumer feeds row-change messages into a Tracker.
type Consumer struct {
	reader  MessageReader
	tracker *Tracker
	backoff time.Duration
}

func NewConsumer(reader MessageReader, tracker *Tracker) *Consumer {
	return &Consumer{reader: reader, tracker: tracker, backoff: time.Second}
}

// Run consumes until ctx is cancelled. Offsets are committed after every
// message, including ones that fail to decode or apply.
func (c *Consumer) Run(ctx context.Context) error {
	zlog.Info().Msg("unread consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				zlog.Info().Msg("unread consumer shutting down")
				return nil
			}
			zlog.Error().Err(err).Msg("could not fetch message, retrying")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			zlog.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	var ev ChangeEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		zlog.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping undecodable change event")
		return
	}
	if err := c.tracker.Apply(ctx, ev); err != nil {
		zlog.Error().Err(err).Str("table", ev.Table).Str("type", string(ev.Type)).Msg("failed to apply change event")
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
