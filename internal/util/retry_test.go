package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	result, err := Retry(3, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected ok, got %q", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	failure := errors.New("persistent")
	calls := 0
	_, err := Retry(4, func() (int, error) {
		calls++
		return 0, failure
	})

	if !errors.Is(err, failure) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestRetryErrWithContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryErrWithContext(ctx, 5, func(context.Context) error {
		calls++
		return errors.New("should not run")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", calls)
	}
}

func TestRetryErrWithContextStopsOnCancellationError(t *testing.T) {
	calls := 0
	err := RetryErrWithContext(context.Background(), 5, func(context.Context) error {
		calls++
		return context.DeadlineExceeded
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestRetryBackoffStopsOnTerminal(t *testing.T) {
	terminal := errors.New("bad request")
	calls := 0
	_, err := RetryBackoff(context.Background(), BackoffOptions{
		MaxTries:  5,
		BaseDelay: time.Millisecond,
		Retryable: func(err error) bool { return false },
	}, func(context.Context) (int, error) {
		calls++
		return 0, terminal
	})

	if !errors.Is(err, terminal) {
		t.Fatalf("expected terminal error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt for terminal errors, got %d", calls)
	}
}

func TestRetryBackoffRetriesTransient(t *testing.T) {
	calls := 0
	result, err := RetryBackoff(context.Background(), BackoffOptions{
		MaxTries:  5,
		BaseDelay: time.Millisecond,
		Retryable: func(err error) bool { return true },
	}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("overloaded")
		}
		return "recovered", nil
	})

	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if result != "recovered" {
		t.Fatalf("expected recovered, got %q", result)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := RetryBackoff(ctx, BackoffOptions{
		MaxTries:  10,
		BaseDelay: time.Minute,
	}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cancellation to stop retries, got %d calls", calls)
	}
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("expected sleep to end promptly on cancellation")
	}
}
