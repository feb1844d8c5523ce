// Package events carries student change notifications over watermill.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/target/studentdash/internal/core"
	"github.com/target/studentdash/internal/domain/model"
)

// DefaultTopic is the topic student change events are published on.
const DefaultTopic = "students.changed"

// Backend names a transport.
type Backend string

const (
	BackendGoChannel Backend = "gochannel"
	BackendKafka     Backend = "kafka"
)

// Config selects and configures the transport.
type Config struct {
	Backend       Backend
	Topic         string
	KafkaBrokers  []string
	ConsumerGroup string
	Logger        *slog.Logger
}

// Publisher publishes student change events.
type Publisher = core.StudentEventPublisher

// Bus wraps a watermill publisher and subscriber pair for one topic.
type Bus struct {
	pub   message.Publisher
	sub   message.Subscriber
	topic string
	log   *slog.Logger
}

var _ Publisher = (*Bus)(nil)

// NewBus builds a bus for cfg.Backend. An empty backend means gochannel.
func NewBus(cfg Config) (*Bus, error) {
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}
	wmLogger := watermill.NewSlogLogger(base.With("component", "events"))

	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case "", BackendGoChannel:
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return &Bus{pub: ch, sub: ch, topic: topic, log: cfg.Logger}, nil
	case BackendKafka:
		return newKafkaBus(cfg, topic, wmLogger)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

func newKafkaBus(cfg Config, topic string, logger watermill.LoggerAdapter) (*Bus, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("kafka backend needs at least one broker")
	}
	group := cfg.ConsumerGroup
	if group == "" {
		group = "studentdash-notifications"
	}

	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       cfg.KafkaBrokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: group,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("kafka subscriber: %w", err)
	}
	return &Bus{pub: pub, sub: sub, topic: topic, log: cfg.Logger}, nil
}

func (b *Bus) logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return slog.Default()
}

// Topic returns the topic the bus publishes to.
func (b *Bus) Topic() string { return b.topic }

// PublishStudentEvent publishes ev as a JSON payload.
func (b *Bus) PublishStudentEvent(ctx context.Context, ev model.StudentEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal student event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.SetContext(ctx)

	if pubErr := b.pub.Publish(b.topic, msg); pubErr != nil {
		return fmt.Errorf("publish student event: %w", pubErr)
	}
	b.logger().DebugContext(ctx, "student event published", "kind", ev.Kind, "student_id", ev.StudentID)
	return nil
}

// Subscribe returns the message stream for the topic. It ends when ctx is done.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	ch, err := b.sub.Subscribe(ctx, b.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", b.topic, err)
	}
	return ch, nil
}

// Close closes the publisher and subscriber.
func (b *Bus) Close() error {
	errPub := b.pub.Close()
	var errSub error
	if any(b.sub) != any(b.pub) {
		errSub = b.sub.Close()
	}
	return errors.Join(errPub, errSub)
}

// DecodeStudentEvent parses a message payload.
func DecodeStudentEvent(msg *message.Message) (model.StudentEvent, error) {
	var ev model.StudentEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return model.StudentEvent{}, fmt.Errorf("decode student event: %w", err)
	}
	return ev, nil
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) PublishStudentEvent(context.Context, model.StudentEvent) error { return nil }
