package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts:          maxAttempts,
		InitialBackoff:       time.Millisecond,
		MaxBackoff:           60 * time.Millisecond,
		Multiplier:           1.5,
		Jitter:               time.Millisecond,
		RetryableStatusCodes: []int{http.StatusGatewayTimeout},
	}
}

func TestBackoffSequenceBoundedAndNonDecreasing(t *testing.T) {
	cfg := DefaultConfig()

	// Exercise both extremes of the jitter source
	for _, r := range []float64{0, 0.5, 0.999} {
		r := r
		cfg.Rand = func() float64 { return r }
		b := NewBackoff(cfg)

		var prev time.Duration
		for i := 0; i < 5; i++ {
			d := b.Next()
			if d > 60*time.Second {
				t.Fatalf("rand=%v delay %d = %v exceeds cap", r, i, d)
			}
			if d < prev {
				t.Fatalf("rand=%v delay %d = %v decreased from %v", r, i, d, prev)
			}
			prev = d
		}
	}
}

func TestBackoffFirstDelaysMatchFormula(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rand = func() float64 { return 0 }
	b := NewBackoff(cfg)

	want := []time.Duration{
		1 * time.Second,
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("delay %d = %v, want %v", i, got, w)
		}
	}
}

func TestBackoffReachesCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rand = func() float64 { return 0.999 }
	b := NewBackoff(cfg)

	var last time.Duration
	for i := 0; i < 40; i++ {
		last = b.Next()
	}
	if last != 60*time.Second {
		t.Errorf("delay after 40 steps = %v, want cap 60s", last)
	}
}

func TestDo_RetriesGatewayTimeoutUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(0), func(attempt int) error {
		calls++
		if attempt < 5 {
			return NewHTTPError(http.StatusGatewayTimeout, "504 Gateway Timeout", "")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 5 {
		t.Errorf("expected 5 calls, got %d", calls)
	}
}

func TestDo_DoesNotRetryOtherStatusCodes(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(0), func(int) error {
		calls++
		return NewHTTPError(http.StatusServiceUnavailable, "503 Service Unavailable", "")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("503 must not be retried with the default policy, got %d calls", calls)
	}
}

func TestDo_RetriesNetworkErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(int) error {
		calls++
		return errors.New("connection reset by peer")
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 || calls != 3 {
		t.Errorf("attempts=%d calls=%d, want 3/3", exhausted.Attempts, calls)
	}
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(0), func(int) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancel took effect, got %d", calls)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusGatewayTimeout, true},
		{http.StatusBadGateway, false},
		{http.StatusOK, false},
		{http.StatusTooManyRequests, false},
	}
	for _, tt := range tests {
		if got := IsRetryableStatus(cfg, tt.code); got != tt.want {
			t.Errorf("IsRetryableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
