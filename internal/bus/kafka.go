package bus

import (
	"context"

	kafka "github.com/segmentio/kafka-go"
)

// KafkaConsumer is the production Consumer. It reads the single topic
// passed to NewKafkaConsumer; one consumer does not read both SOLD_AUCTION
// and NEW_AUCTION.
type KafkaConsumer struct {
	reader *kafka.Reader
}

func NewKafkaConsumer(brokers []string, topic, groupID string) *KafkaConsumer {
	return &KafkaConsumer{reader: kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})}
}

func (c *KafkaConsumer) FetchBatch(ctx context.Context, maxMessages int) ([]Message, error) {
	out := make([]Message, 0, maxMessages)
	for i := 0; i < maxMessages; i++ {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if i > 0 {
				// Partial batch from a context deadline is still useful work.
				return out, nil
			}
			return nil, err
		}
		out = append(out, Message{Topic: m.Topic, Key: m.Key, Value: m.Value, Offset: m.Offset})
	}
	return out, nil
}

func (c *KafkaConsumer) Commit(ctx context.Context, offset int64) error {
	return c.reader.CommitMessages(ctx, kafka.Message{Offset: offset})
}

func (c *KafkaConsumer) Close() error { return c.reader.Close() }

// KafkaProducer is the production Producer.
type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	return &KafkaProducer{writer: &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}}
}

func (p *KafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: value})
}

func (p *KafkaProducer) Close() error { return p.writer.Close() }
