package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsWithinLimit(t *testing.T) {
	attempts := 0
	policy := Policy{ResourceID: "segment-42-block-0", MaxRetryLimit: 5}
	v, err := Do(context.Background(), policy, func() Result[int] {
		attempts++
		if attempts < 3 {
			return Result[int]{Err: errors.New("transient")}
		}
		return Result[int]{Value: 7}
	}, UntilSuccess[int])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 || attempts != 3 {
		t.Fatalf("v=%d attempts=%d", v, attempts)
	}
}

func TestDoReturnsErrLimitExceeded(t *testing.T) {
	policy := Policy{ResourceID: "segment-1-block-0", MaxRetryLimit: 3, Backoff: func(int) time.Duration { return time.Microsecond }}
	_, err := Do(context.Background(), policy, func() Result[int] {
		return Result[int]{Err: errors.New("boom")}
	}, UntilSuccess[int])
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestDoHonorsCustomUntilPredicate(t *testing.T) {
	invalidated := false
	policy := Policy{ResourceID: "r", MaxRetryLimit: 10, Backoff: func(int) time.Duration { return time.Microsecond }}
	attempts := 0
	_, err := Do(context.Background(), policy, func() Result[int] {
		attempts++
		if attempts == 2 {
			invalidated = true
		}
		return Result[int]{Err: errors.New("still racing")}
	}, func(r Result[int]) bool {
		return invalidated
	})
	if err == nil || err.Error() != "still racing" {
		t.Fatalf("expected the accepted attempt's own error once invalidated, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected to stop at attempt 2, got %d", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := Policy{ResourceID: "r", MaxRetryLimit: 5}
	_, err := Do(ctx, policy, func() Result[int] {
		return Result[int]{Err: errors.New("x")}
	}, UntilSuccess[int])
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
