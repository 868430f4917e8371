package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryBackoffWithContext_SuccessImmediate(t *testing.T) {
	result, err := RetryBackoffWithContext(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
}

func TestRetryBackoffWithContext_PersistentFailure(t *testing.T) {
	calls := 0
	_, err := RetryBackoffWithContext(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("persistent")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "persistent" {
		t.Fatalf("expected persistent error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryBackoffWithContext_MaxTriesZeroOrNegative(t *testing.T) {
	calls := 0
	_, err := RetryBackoffWithContext(context.Background(), 0, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call for maxTries=0, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRetryBackoffWithContext_CanceledBeforeCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryBackoffWithContext(ctx, 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected 0 calls, got %d", calls)
	}
}

func TestRetryBackoffWithContext_StopsOnContextError(t *testing.T) {
	calls := 0
	_, err := RetryBackoffWithContext(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryBackoffWithContext_BacksOffBetweenAttempts(t *testing.T) {
	calls := 0
	start := time.Now()
	result, err := RetryBackoffWithContext(context.Background(), 3, time.Millisecond, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 5, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 5 {
		t.Fatalf("expected 5, got %d", result)
	}
	// Two waits: 1ms + 2ms.
	if elapsed := time.Since(start); elapsed < 3*time.Millisecond {
		t.Fatalf("expected backoff waits, elapsed %v", elapsed)
	}
}

func TestRetryBackoffWithContext_CanceledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	_, err := RetryBackoffWithContext(ctx, 5, 50*time.Millisecond, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancel, got %d", calls)
	}
}
