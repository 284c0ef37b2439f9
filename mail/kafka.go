package mail

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/kafka-go"

	auth "github.com/goliatone/go-authflow"
)

const DefaultTopic = "auth.emails"

// MessageWriter is the subset of *kafka.Writer the sender uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader is the subset of *kafka.Reader the worker uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender queues emails on a kafka topic for the mail worker.
type KafkaSender struct {
	writer MessageWriter
}

var _ auth.EmailSender = (*KafkaSender)(nil)

// NewKafkaWriter creates a synchronous writer for the email topic
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: 10 * time.Second,
	}
}

// NewKafkaSender wraps a writer
func NewKafkaSender(writer MessageWriter) *KafkaSender {
	return &KafkaSender{writer: writer}
}

// Send implements auth.EmailSender.
func (s *KafkaSender) Send(ctx context.Context, email auth.Email) error {
	value, err := json.Marshal(email)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode email job")
	}

	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(email.To),
		Value: value,
		Time:  time.Now(),
	}); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to queue email").
			WithMetadata(map[string]any{"kind": string(email.Kind)})
	}

	return nil
}

// Close flushes and closes the writer
func (s *KafkaSender) Close() error {
	return s.writer.Close()
}

// NewKafkaReader creates a consumer group reader for the email topic
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	if topic == "" {
		topic = DefaultTopic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

// Worker consumes queued emails and hands them to a sender, usually SMTP.
type Worker struct {
	reader MessageReader
	sender auth.EmailSender
	logger auth.Logger
}

// NewWorker creates a worker
func NewWorker(reader MessageReader, sender auth.EmailSender, logger auth.Logger) *Worker {
	return &Worker{
		reader: reader,
		sender: sender,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled. Undecodable jobs are committed and
// dropped; failed deliveries are logged and committed so one bad address
// does not block the partition.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("mail worker read error", "error", err)
			continue
		}

		w.Handle(ctx, msg)

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("mail worker commit error", "error", err, "offset", msg.Offset)
		}
	}
}

// Handle processes one queued message
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) {
	var email auth.Email
	if err := json.Unmarshal(msg.Value, &email); err != nil {
		w.logger.Error("mail worker dropped undecodable job", "error", err, "offset", msg.Offset)
		return
	}

	if err := w.sender.Send(ctx, email); err != nil {
		w.logger.Error("mail worker delivery failed", "kind", string(email.Kind), "to", email.To, "error", err)
		return
	}

	w.logger.Info("mail delivered", "kind", string(email.Kind), "to", email.To)
}

// Close closes the reader
func (w *Worker) Close() error {
	return w.reader.Close()
}
