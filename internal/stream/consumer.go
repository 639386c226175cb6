// Package stream reads payment confirmations off the internal message bus.
// Delivery is at-least-once; the fulfillment pipeline absorbs duplicates.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/stella-events/ticketing/internal/config"
	"github.com/stella-events/ticketing/internal/model"
	"github.com/stella-events/ticketing/internal/service"
)

// Fulfiller is the pipeline side the consumer feeds.
type Fulfiller interface {
	Fulfill(ctx context.Context, c model.Confirmation) (*model.Order, error)
}

// Consumer pulls confirmation messages from Kafka and commits them only
// once the pipeline has accepted them.
type Consumer struct {
	reader    *kafka.Reader
	fulfiller Fulfiller
	log       zerolog.Logger
}

// NewConsumer constructs a Consumer for the configured topic and group.
func NewConsumer(cfg config.Kafka, fulfiller Fulfiller, log zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return &Consumer{reader: reader, fulfiller: fulfiller, log: log}
}

// Run consumes until the context is cancelled.
//
// Commit policy: duplicates are harmless (the pipeline is idempotent), so a
// message is committed after any terminal outcome. Fatal reference errors
// are committed past; redelivery cannot conjure a missing catalog row, it
// would only wedge the partition. Transient store errors leave the message
// uncommitted for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("confirmation consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var confirmation model.Confirmation
		if err := json.Unmarshal(msg.Value, &confirmation); err != nil {
			c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("undecodable confirmation, skipping")
			c.commit(ctx, msg)
			continue
		}

		if _, err := c.fulfiller.Fulfill(ctx, confirmation); err != nil {
			if errors.Is(err, service.ErrReferenceNotFound) {
				c.log.Error().Err(err).Str("ref", confirmation.ExternalRef).
					Msg("confirmation references unknown catalog entries, needs manual intervention")
				c.commit(ctx, msg)
				continue
			}
			c.log.Error().Err(err).Str("ref", confirmation.ExternalRef).
				Msg("fulfillment failed, leaving message for redelivery")
			continue
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("commit failed")
	}
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
