package kafka

import (
	"context"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/nearby-search/internal/config"
	"github.com/couchcryptid/nearby-search/internal/domain"
)

// Writer produces messages to a Kafka topic.
// It implements relay.ResultLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured results topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadResults publishes one completed search, keyed by the task that
// produced it.
func (w *Writer) LoadResults(ctx context.Context, task *domain.Task, results domain.SearchResults) error {
	msg, err := serializeToMessage(task, results)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage converts search results into a Kafka message.
func serializeToMessage(task *domain.Task, results domain.SearchResults) (kafkago.Message, error) {
	out, err := domain.SerializeResults(task, results)
	if err != nil {
		return kafkago.Message{}, err
	}

	msg := kafkago.Message{Key: out.Key, Value: out.Value}
	for _, key := range []string{"terms", "result_count"} {
		if v, ok := out.Headers[key]; ok {
			msg.Headers = append(msg.Headers, kafkago.Header{Key: key, Value: []byte(v)})
		}
	}
	return msg, nil
}
