package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	app "github.com/mohammadpnp/prospect-import/internal/application/prospect"
	"github.com/segmentio/kafka-go"
)

func TestTaskMessageKeyedByJobID(t *testing.T) {
	t.Parallel()

	msg, err := encodeTask(app.ImportTask{JobID: 42})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("expected key 42, got %q", msg.Key)
	}

	task, err := decodeTask(msg.Value)
	if err != nil || task.JobID != 42 {
		t.Fatalf("expected job 42, got %+v %v", task, err)
	}
}

func TestDecodeTaskRejectsBadPayloads(t *testing.T) {
	t.Parallel()

	if _, err := decodeTask([]byte("{not json")); err == nil {
		t.Fatal("expected error for invalid json")
	}
	if _, err := decodeTask([]byte(`{"job_id":0}`)); !errors.Is(err, errMissingJobID) {
		t.Fatalf("expected errMissingJobID, got %v", err)
	}
}

type chanReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (r *chanReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *chanReader) Close() error { return nil }

func TestKafkaConsumerRunsTasksConcurrently(t *testing.T) {
	t.Parallel()

	reader := &chanReader{msgs: make(chan kafka.Message, 4)}
	for id := int64(1); id <= 4; id++ {
		msg, _ := encodeTask(app.ImportTask{JobID: id})
		msg.Offset = id
		reader.msgs <- msg
	}

	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})
	reached := make(chan struct{})
	handler := func(ctx context.Context, task app.ImportTask) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
			if peak == 3 {
				close(reached)
			}
		}
		mu.Unlock()

		<-release

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	}

	consumer := newKafkaConsumer(reader, KafkaConfig{Topic: "t", Concurrency: 3}, handler, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- consumer.Run(ctx) }()

	select {
	case <-reached:
	case <-time.After(2 * time.Second):
		t.Fatal("expected three tasks running at once")
	}
	close(release)

	deadline := time.After(2 * time.Second)
	for {
		reader.mu.Lock()
		n := len(reader.committed)
		reader.mu.Unlock()
		if n == 4 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected 4 commits, got %d", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-stopped; err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak != 3 {
		t.Fatalf("expected concurrency capped at 3, got %d", peak)
	}
}
