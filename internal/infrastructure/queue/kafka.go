package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	// Concurrency caps the tasks a consumer runs at once.
	Concurrency int
}

var errMissingJobID = errors.New("decode import task: missing job_id")

// KafkaProducer publishes import tasks keyed by job id.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaProducer(cfg KafkaConfig, logger *zap.Logger) *KafkaProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaProducer{
		writer: w,
		logger: logger.With(zap.String("component", "kafka-producer"), zap.String("topic", cfg.Topic)),
	}
}

func (p *KafkaProducer) Submit(ctx context.Context, task app.ImportTask) error {
	msg, err := encodeTask(task)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish import task %d: %w", task.JobID, err)
	}
	p.logger.Debug("import task published", zap.Int64("file_id", task.JobID))
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// KafkaConsumer feeds import tasks from a consumer group to a Handler, with
// up to Concurrency tasks running at once.
// Offsets are committed after the handler returns, whatever the outcome:
// a failed job is already recorded on its row and is never retried. A crash
// can commit a later offset before an earlier task finished; that job stays
// created or gets reaped, and the sweeper takes it from there.
type KafkaConsumer struct {
	reader  messageReader
	handler Handler
	logger  *zap.Logger
	slots   chan struct{}
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewKafkaConsumer(cfg KafkaConfig, handler Handler, logger *zap.Logger) *KafkaConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.FirstOffset,
	})
	return newKafkaConsumer(r, cfg, handler, logger)
}

func newKafkaConsumer(r messageReader, cfg KafkaConfig, handler Handler, logger *zap.Logger) *KafkaConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &KafkaConsumer{
		reader:  r,
		handler: handler,
		logger:  logger.With(zap.String("component", "kafka-consumer"), zap.String("topic", cfg.Topic)),
		slots:   make(chan struct{}, concurrency),
	}
}

// Run consumes until ctx is cancelled, then waits for running tasks.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started", zap.Int("concurrency", cap(c.slots)))
	defer c.reader.Close()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case c.slots <- struct{}{}:
		case <-ctx.Done():
			c.logger.Info("consumer stopping")
			return nil
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			<-c.slots
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("failed to fetch message", zap.Error(err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-c.slots }()
			c.handle(ctx, msg)
		}()
	}
}

func (c *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	task, err := decodeTask(msg.Value)
	if err != nil {
		c.logger.Error("dropping undecodable message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	} else if err := c.handler(ctx, task); err != nil {
		c.logger.Error("import task failed", zap.Int64("file_id", task.JobID), zap.Error(err))
	}

	if err := c.reader.CommitMessages(context.WithoutCancel(ctx), msg); err != nil {
		c.logger.Error("failed to commit message",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

func encodeTask(task app.ImportTask) (kafka.Message, error) {
	value, err := json.Marshal(task)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal import task: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(task.JobID, 10)),
		Value: value,
	}, nil
}

func decodeTask(value []byte) (app.ImportTask, error) {
	var task app.ImportTask
	if err := json.Unmarshal(value, &task); err != nil {
		return app.ImportTask{}, fmt.Errorf("decode import task: %w", err)
	}
	if task.JobID <= 0 {
		return app.ImportTask{}, errMissingJobID
	}
	return task, nil
}
