package utils

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func TestWorkerPoolProcessItems(t *testing.T) {
	t.Run("results keep input order", func(t *testing.T) {
		pool := NewWorkerPool(3, func(ctx context.Context, item string) (int, error) {
			return len(item), nil
		})

		results, errs := pool.ProcessItems(context.Background(), []string{"a", "bb", "ccc", "dddd"})
		if len(results) != 4 {
			t.Fatalf("expected 4 results, got %d", len(results))
		}
		for i, want := range []int{1, 2, 3, 4} {
			if results[i] != want {
				t.Errorf("results[%d] = %d, expected %d", i, results[i], want)
			}
			if errs[i] != nil {
				t.Errorf("errs[%d] = %v, expected nil", i, errs[i])
			}
		}
	})

	t.Run("errors are positional", func(t *testing.T) {
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) {
			if item%2 == 0 {
				return 0, errors.New("even item")
			}
			return item, nil
		})

		results, errs := pool.ProcessItems(context.Background(), []int{1, 2, 3, 4})
		if errs[0] != nil || errs[2] != nil {
			t.Errorf("expected nil errors for odd items, got %v and %v", errs[0], errs[2])
		}
		if errs[1] == nil || errs[3] == nil {
			t.Error("expected errors for even items")
		}
		if results[0] != 1 || results[2] != 3 {
			t.Errorf("unexpected results for odd items: %v", results)
		}
	})

	t.Run("recovers worker panics", func(t *testing.T) {
		pool := NewWorkerPool(2, func(ctx context.Context, item string) (string, error) {
			if strings.HasPrefix(item, "bad") {
				panic("worker exploded")
			}
			return strings.ToUpper(item), nil
		})

		results, errs := pool.ProcessItems(context.Background(), []string{"ok", "bad-one", "fine"})
		if errs[0] != nil || errs[2] != nil {
			t.Errorf("expected healthy items to succeed, got %v and %v", errs[0], errs[2])
		}
		if results[0] != "OK" || results[2] != "FINE" {
			t.Errorf("unexpected results: %v", results)
		}

		var panicErr *PanicError
		if !errors.As(errs[1], &panicErr) {
			t.Fatalf("expected PanicError for panicking item, got %v", errs[1])
		}
	})

	t.Run("empty input", func(t *testing.T) {
		pool := NewWorkerPool(2, func(ctx context.Context, item int) (int, error) {
			return item, nil
		})

		results, errs := pool.ProcessItems(context.Background(), nil)
		if results != nil || errs != nil {
			t.Errorf("expected nil slices for empty input, got %v / %v", results, errs)
		}
	})

	t.Run("defaults pool size when non-positive", func(t *testing.T) {
		var calls atomic.Int32
		pool := NewWorkerPool(0, func(ctx context.Context, item int) (int, error) {
			calls.Add(1)
			return item * 2, nil
		})

		results, _ := pool.ProcessItems(context.Background(), []int{1, 2, 3})
		if int(calls.Load()) != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
		if results[2] != 6 {
			t.Errorf("expected 6, got %d", results[2])
		}
	})
}

func TestBatch(t *testing.T) {
	t.Run("even split", func(t *testing.T) {
		batches := Batch([]int{1, 2, 3, 4}, 2)
		if len(batches) != 2 {
			t.Fatalf("expected 2 batches, got %d", len(batches))
		}
		if batches[0][0] != 1 || batches[1][1] != 4 {
			t.Errorf("unexpected batch contents: %v", batches)
		}
	})

	t.Run("uneven tail", func(t *testing.T) {
		batches := Batch([]string{"a", "b", "c", "d", "e"}, 2)
		if len(batches) != 3 {
			t.Fatalf("expected 3 batches, got %d", len(batches))
		}
		if len(batches[2]) != 1 || batches[2][0] != "e" {
			t.Errorf("unexpected tail batch: %v", batches[2])
		}
	})

	t.Run("non-positive batch size falls back to default", func(t *testing.T) {
		items := make([]int, 25)
		batches := Batch(items, 0)
		if len(batches) != 3 {
			t.Fatalf("expected 3 batches of default size 10, got %d", len(batches))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		batches := Batch([]int{}, 4)
		if batches != nil {
			t.Errorf("expected nil, got %v", batches)
		}
	})
}
