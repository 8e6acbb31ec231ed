package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastRetry keeps backoffs short so tests stay quick.
func fastRetry(attempts int) func(ErrorClass) RetryConfig {
	return func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        4 * time.Millisecond,
			BackoffMultiplier: 2.0,
		}
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name            string
		errorClass      ErrorClass
		expectedInitial time.Duration
		expectedMax     time.Duration
	}{
		{"server", ErrorClassServer, 1 * time.Second, 10 * time.Second},
		{"network", ErrorClassNetwork, 2 * time.Second, 30 * time.Second},
		{"unknown uses default", "", 1 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)

			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != 3 {
				t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
			}
		})
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		return "", nil
	})

	if err != nil {
		t.Errorf("error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		if calls < 3 {
			return ErrorClassServer, errors.New("503")
		}
		return "", nil
	})

	if err != nil {
		t.Errorf("error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_MaxAttemptsExhausted(t *testing.T) {
	last := errors.New("connection reset")
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetry(3), func() (ErrorClass, error) {
		calls++
		return ErrorClassNetwork, last
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if !errors.Is(err, last) {
		t.Errorf("error = %v, should wrap the last failure", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoff_NoRetry(t *testing.T) {
	for _, class := range []ErrorClass{ErrorClassClient, ErrorClassThrottled} {
		t.Run(string(class), func(t *testing.T) {
			want := &APIError{StatusCode: 400, ErrorClass: class}
			calls := 0
			err := retryWithBackoff(context.Background(), zerolog.Nop(), fastRetry(3), func() (ErrorClass, error) {
				calls++
				return class, want
			})

			if err != want {
				t.Errorf("error = %v, want the attempt error", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := func(ErrorClass) RetryConfig {
		return RetryConfig{MaxAttempts: 5, InitialBackoff: time.Minute, MaxBackoff: time.Minute, BackoffMultiplier: 1}
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := retryWithBackoff(ctx, zerolog.Nop(), slow, func() (ErrorClass, error) {
		return ErrorClassServer, errors.New("500")
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("error = %v, want ErrContextCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, should wrap context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff was not interrupted by cancellation")
	}
}

func TestRetryWithBackoff_MaxBackoffCap(t *testing.T) {
	cfg := func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       6,
			InitialBackoff:    2 * time.Millisecond,
			MaxBackoff:        4 * time.Millisecond,
			BackoffMultiplier: 10,
		}
	}

	start := time.Now()
	retryWithBackoff(context.Background(), zerolog.Nop(), cfg, func() (ErrorClass, error) {
		return ErrorClassServer, errors.New("500")
	})

	// 5 waits, each at most 4ms * 1.2 jitter; uncapped it would be seconds.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("elapsed = %v, MaxBackoff not applied", elapsed)
	}
}
