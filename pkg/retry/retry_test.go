package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRetryer(t *testing.T, cfg Config) (*Retryer, *[]time.Duration) {
	t.Helper()
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create retryer: %v", err)
	}
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetryer_SuccessAfterRetries(t *testing.T) {
	r, slept := newTestRetryer(t, Config{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond})

	attempts := 0
	err := r.Do(context.Background(), "send", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got error: %v", err)
	}
	if attempts != 3 || len(*slept) != 2 {
		t.Errorf("attempts = %d, sleeps = %d", attempts, len(*slept))
	}
}

func TestRetryer_MaxAttemptsExceeded(t *testing.T) {
	r, _ := newTestRetryer(t, Config{MaxAttempts: 3})
	boom := errors.New("persistent error")

	attempts := 0
	err := r.Do(context.Background(), "send", func(ctx context.Context) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryer_Permanent(t *testing.T) {
	r, slept := newTestRetryer(t, Config{MaxAttempts: 5})
	boom := errors.New("bad payload")

	attempts := 0
	err := r.Do(context.Background(), "send", func(ctx context.Context) error {
		attempts++
		return Permanent(boom)
	})
	if !IsPermanent(err) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if attempts != 1 || len(*slept) != 0 {
		t.Errorf("attempts = %d, sleeps = %d", attempts, len(*slept))
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}

func TestRetryer_ContextCancelled(t *testing.T) {
	r, err := New(Config{MaxAttempts: 10, InitialDelay: time.Hour, MaxDelay: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = r.Do(ctx, "send", func(ctx context.Context) error { return errors.New("down") })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation did not interrupt the backoff")
	}
}

func TestRetryer_Delay(t *testing.T) {
	tests := []struct {
		name    string
		backoff BackoffStrategy
		want    []time.Duration
	}{
		{"constant", BackoffConstant, []time.Duration{100, 100, 100, 100}},
		{"linear", BackoffLinear, []time.Duration{100, 200, 300, 350}},
		{"exponential", BackoffExponential, []time.Duration{100, 200, 350, 350}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(Config{
				MaxAttempts:  5,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     350 * time.Millisecond,
				Backoff:      tt.backoff,
				Multiplier:   2,
			})
			if err != nil {
				t.Fatal(err)
			}
			for i, want := range tt.want {
				if got := r.Delay(i + 1); got != want*time.Millisecond {
					t.Errorf("Delay(%d) = %v, want %v", i+1, got, want*time.Millisecond)
				}
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero attempts", Config{MaxAttempts: 0, Backoff: BackoffConstant}, true},
		{"max below initial", Config{MaxAttempts: 1, InitialDelay: time.Second, MaxDelay: time.Millisecond, Backoff: BackoffConstant}, true},
		{"bad strategy", Config{MaxAttempts: 1, Backoff: "fibonacci"}, true},
		{"bad jitter", Config{MaxAttempts: 1, Backoff: BackoffConstant, Jitter: 1.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
