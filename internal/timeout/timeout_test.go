package timeout

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDoReturnsResultBeforeDeadline(t *testing.T) {
	got, err := Do(time.Second, "fast op", func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if got != 42 {
		t.Fatalf("Do() = %d, want 42", got)
	}
}

func TestDoPropagatesOperationError(t *testing.T) {
	opErr := errors.New("remote refused")
	_, err := Do(time.Second, "failing op", func() (string, error) {
		return "", opErr
	})
	if !errors.Is(err, opErr) {
		t.Fatalf("Do() error = %v, want %v", err, opErr)
	}
	if Is(err) {
		t.Fatal("Is() = true for a non-timeout failure")
	}
}

func TestDoTimesOutStuckOperation(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	_, err := Do(20*time.Millisecond, "stuck op", func() (int, error) {
		<-block
		return 0, nil
	})
	elapsed := time.Since(start)

	if !Is(err) {
		t.Fatalf("Do() error = %v, want timeout Error", err)
	}
	if elapsed > time.Second {
		t.Fatalf("Do() returned after %s, want well under a second", elapsed)
	}

	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("errors.As() failed for %v", err)
	}
	if te.Msg != "stuck op" {
		t.Fatalf("Error.Msg = %q, want %q", te.Msg, "stuck op")
	}
}

func TestAbandonedCallCannotCorruptLaterResult(t *testing.T) {
	release := make(chan struct{})

	// First call is abandoned while blocked.
	_, err := Do(10*time.Millisecond, "abandoned", func() (string, error) {
		<-release
		return "stale", nil
	})
	if !Is(err) {
		t.Fatalf("first Do() error = %v, want timeout", err)
	}

	// Let the abandoned call finish, then issue a second call. The stale
	// result must not surface.
	close(release)
	for range 10 {
		got, err := Do(time.Second, "fresh", func() (string, error) {
			return "fresh", nil
		})
		if err != nil {
			t.Fatalf("second Do() error = %v", err)
		}
		if got != "fresh" {
			t.Fatalf("second Do() = %q, want %q", got, "fresh")
		}
	}
}

func TestRunWrapsOperationsWithoutResults(t *testing.T) {
	if err := Run(time.Second, "ok op", func() error { return nil }); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	wantErr := fmt.Errorf("boom")
	err := Run(time.Second, "err op", func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}
}
