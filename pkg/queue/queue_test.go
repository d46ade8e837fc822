package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func createTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := New(context.Background(), &Config{
		Addr:       mr.Addr(),
		PopTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create test queue: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestNew(t *testing.T) {
	t.Run("unreachable server", func(t *testing.T) {
		_, err := New(context.Background(), &Config{Addr: "127.0.0.1:1"})
		if err == nil {
			t.Error("expected connection error")
		}
	})

	t.Run("defaults", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		if cfg.Key != DefaultKey {
			t.Errorf("expected key %q, got %q", DefaultKey, cfg.Key)
		}
		if cfg.PopTimeout != DefaultPopTimeout {
			t.Errorf("expected timeout %v, got %v", DefaultPopTimeout, cfg.PopTimeout)
		}
	})
}

func TestPushPop(t *testing.T) {
	q := createTestQueue(t)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		sent := &WorkItem{
			MessageID:    "11111111-1111-1111-1111-111111111111",
			ClientID:     "client_alpha",
			SenderNumber: "+491521234567",
			MessageBody:  "hello",
			Domain:       "example.org",
			QueuedAt:     time.Now().UTC().Truncate(time.Second),
		}
		if err := q.Push(ctx, sent); err != nil {
			t.Fatalf("push failed: %v", err)
		}

		got, err := q.BlockingPop(ctx)
		if err != nil {
			t.Fatalf("pop failed: %v", err)
		}
		if got.MessageID != sent.MessageID {
			t.Errorf("expected message %q, got %q", sent.MessageID, got.MessageID)
		}
		if got.SenderNumber != sent.SenderNumber || got.MessageBody != sent.MessageBody {
			t.Error("payload did not survive the round trip")
		}
		if !got.QueuedAt.Equal(sent.QueuedAt) {
			t.Errorf("expected queued_at %v, got %v", sent.QueuedAt, got.QueuedAt)
		}
	})

	t.Run("fifo ordering", func(t *testing.T) {
		for _, id := range []string{"first", "second", "third"} {
			if err := q.Push(ctx, &WorkItem{MessageID: id}); err != nil {
				t.Fatal(err)
			}
		}
		for _, want := range []string{"first", "second", "third"} {
			got, err := q.BlockingPop(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got.MessageID != want {
				t.Errorf("expected %q, got %q", want, got.MessageID)
			}
		}
	})

	t.Run("empty queue times out", func(t *testing.T) {
		start := time.Now()
		_, err := q.BlockingPop(ctx)
		if !errors.Is(err, ErrEmpty) {
			t.Errorf("expected ErrEmpty, got %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("pop returned too early after %v", elapsed)
		}
	})
}

func TestLength(t *testing.T) {
	q := createTestQueue(t)
	ctx := context.Background()

	n, err := q.Length(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}

	for i := 0; i < 3; i++ {
		if err := q.Push(ctx, &WorkItem{MessageID: "msg"}); err != nil {
			t.Fatal(err)
		}
	}

	n, err = q.Length(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("expected depth 3, got %d", n)
	}
}

func TestHealthcheck(t *testing.T) {
	q := createTestQueue(t)
	if err := q.Healthcheck(context.Background()); err != nil {
		t.Errorf("healthcheck failed: %v", err)
	}
}
