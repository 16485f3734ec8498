package kafkabus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/primebrokerage/ims-core/internal/domain"
	ierr "github.com/primebrokerage/ims-core/internal/errors"
	"github.com/primebrokerage/ims-core/internal/ingress"
)

// AckableEvent pairs a decoded event with the commit it requires once
// handling is durable, matching spec.md §4.1's "commits offsets only
// after the engine acknowledges durable handling."
type AckableEvent struct {
	Event domain.Event
	Ack   func(ctx context.Context) error
}

// Bus publishes to and consumes from Kafka topics, partitioned by
// securityId, for the ingress/egress topics spec.md §6 names.
type Bus struct {
	brokers []string
	writers map[string]*kafka.Writer
	log     zerolog.Logger
}

// New returns a ready Bus. Writers are created lazily per topic on first
// Publish.
func New(brokers []string, log zerolog.Logger) *Bus {
	return &Bus{
		brokers: brokers,
		writers: make(map[string]*kafka.Writer),
		log:     log.With().Str("component", "kafkabus").Logger(),
	}
}

func (b *Bus) writerFor(topic string) *kafka.Writer {
	if w, ok := b.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(b.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // securityId key hashes consistently to a partition
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	b.writers[topic] = w
	return w
}

// Publish writes evt to topic, keyed by its securityId so all events for
// one security land on the same partition (spec.md §6).
func (b *Bus) Publish(ctx context.Context, topic string, evt domain.Event) error {
	data, err := Encode(evt)
	if err != nil {
		return ierr.NewPermanent("kafkabus", "failed to encode event", err)
	}
	msg := kafka.Message{
		Key:   []byte(ingress.SecurityIDOf(evt)),
		Value: data,
		Time:  evt.Header.EffectiveTime,
	}
	if err := b.writerFor(topic).WriteMessages(ctx, msg); err != nil {
		return ierr.NewTransient("kafkabus", fmt.Sprintf("failed to publish to topic %s", topic), err)
	}
	return nil
}

// Close flushes and closes every writer this Bus opened.
func (b *Bus) Close() error {
	var firstErr error
	for _, w := range b.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Consume returns a channel of AckableEvent read from topic under
// consumer group groupId. It is lazy (nothing is read until the caller
// ranges over the channel), infinite (runs until ctx is cancelled), and
// backpressured (the unbuffered channel blocks FetchMessage until the
// caller drains the previous event, so a slow dispatcher naturally stalls
// the reader rather than buffering unboundedly).
func (b *Bus) Consume(ctx context.Context, topic, groupID string) <-chan AckableEvent {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	out := make(chan AckableEvent)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.log.Warn().Err(err).Str("topic", topic).Msg("failed to fetch message, retrying")
				continue
			}
			evt, err := Decode(msg.Value)
			if err != nil {
				b.log.Warn().Err(err).Str("topic", topic).Msg("failed to decode message, skipping and committing offset")
				if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil {
					b.log.Warn().Err(commitErr).Msg("failed to commit offset for undecodable message")
				}
				continue
			}
			select {
			case out <- AckableEvent{
				Event: evt,
				Ack: func(ctx context.Context) error {
					return reader.CommitMessages(ctx, msg)
				},
			}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
