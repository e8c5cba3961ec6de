package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	got, err := Do(context.Background(), nil, "test", func(context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || attempts != 3 {
		t.Fatalf("got=%d attempts=%d", got, attempts)
	}
}

func TestDoRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, nil, "test", func(context.Context) (int, error) {
		return 0, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestDoIfWaitsForPredicate(t *testing.T) {
	calls := 0
	got, err := DoIf(context.Background(), nil, "wait-for-block",
		func(context.Context) (int, error) {
			calls++
			return calls, nil
		},
		func(v int) bool { return v >= 3 },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}
