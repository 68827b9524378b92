package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facegate/internal/models"
)

// EventHandler processes one decoded face event. A non-nil error naks the
// message for redelivery.
type EventHandler func(ctx context.Context, event models.FaceEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeFaceEvents starts a durable consumer on the FACES stream. Every
// process sharing consumerName splits the events between them, so use it
// for work that must happen once per event.
// workerCount determines how many goroutines process messages concurrently.
func (c *Consumer) ConsumeFaceEvents(ctx context.Context, consumerName string, handler EventHandler, workerCount int) error {
	if workerCount <= 0 {
		workerCount = 1
	}

	stream, err := c.js.Stream(ctx, FacesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", FacesStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, durableConsumerConfig(consumerName))
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	run(ctx, consumerName, cons, workerCount, func(ctx context.Context, workerID int, msg jetstream.Msg) {
		handleMessage(ctx, workerID, msg, handler)
	})

	slog.Info("face event consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// SubscribeFaceEvents follows new events on the FACES stream through an
// ephemeral ordered consumer owned by this process. Each subscriber sees
// every event. Nothing is acknowledged or redelivered; a failing handler
// only loses its own copy.
func (c *Consumer) SubscribeFaceEvents(ctx context.Context, handler EventHandler) error {
	stream, err := c.js.Stream(ctx, FacesStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", FacesStreamName, err)
	}

	cons, err := stream.OrderedConsumer(ctx, liveConsumerConfig())
	if err != nil {
		return fmt.Errorf("create live consumer: %w", err)
	}

	// One worker keeps delivery in stream order.
	run(ctx, "live", cons, 1, func(ctx context.Context, _ int, msg jetstream.Msg) {
		deliverLive(ctx, msg, handler)
	})

	slog.Info("face event subscription started")
	return nil
}

func durableConsumerConfig(name string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		FilterSubject: FacesSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
}

func liveConsumerConfig() jetstream.OrderedConsumerConfig {
	return jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{FacesSubjectBase + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	}
}

// run fetches from cons until ctx is done and fans messages out to
// workerCount goroutines.
func run(ctx context.Context, name string, cons jetstream.Consumer, workerCount int, process func(ctx context.Context, workerID int, msg jetstream.Msg)) {
	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch face events error", "consumer", name, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				process(ctx, workerID, msg)
			}
		}(i)
	}
}

func deliverLive(ctx context.Context, msg jetstream.Msg, handler EventHandler) {
	var event models.FaceEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("unmarshal face event", "subject", msg.Subject(), "error", err)
		return
	}
	if err := handler(ctx, event); err != nil {
		slog.Warn("deliver face event", "subject", msg.Subject(), "error", err)
	}
}

func handleMessage(ctx context.Context, workerID int, msg jetstream.Msg, handler EventHandler) {
	var event models.FaceEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		// Malformed payloads will never decode; drop them.
		slog.Error("unmarshal face event", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	if err := handler(ctx, event); err != nil {
		slog.Error("process face event error", "worker", workerID, "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
