package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
	"time"
)

func TestRateLimitError(t *testing.T) {
	err := NewRateLimitError("slow down")

	if err.Error() != "slow down" {
		t.Fatalf("Error message = %q, want %q", err.Error(), "slow down")
	}

	if !IsRateLimitError(err) {
		t.Fatalf("IsRateLimitError returned false for RateLimitError")
	}

	wrapped := fmt.Errorf("isbndb: %w", err)
	if !IsRateLimitError(wrapped) {
		t.Fatalf("IsRateLimitError returned false for wrapped RateLimitError")
	}

	if IsRateLimitError(stdErrors.New("other")) {
		t.Fatalf("IsRateLimitError returned true for a plain error")
	}
}

func TestRateLimitErrorWithRetry(t *testing.T) {
	tests := []struct {
		name            string
		duration        time.Duration
		expectedMessage string
	}{
		{name: "zero", duration: 0, expectedMessage: "rate limited"},
		{name: "30 seconds", duration: 30 * time.Second, expectedMessage: "rate limited (retry after 30s)"},
		{name: "2 minutes", duration: 2 * time.Minute, expectedMessage: "rate limited (retry after 2m0s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRateLimitErrorWithRetry("rate limited", tt.duration)
			if err.Error() != tt.expectedMessage {
				t.Fatalf("Error message = %q, want %q", err.Error(), tt.expectedMessage)
			}
			if err.RetryAfter != tt.duration {
				t.Fatalf("RetryAfter = %v, want %v", err.RetryAfter, tt.duration)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := ParseRetryAfter("120"); got != 2*time.Minute {
		t.Fatalf("ParseRetryAfter(120) = %v", got)
	}
	if got := ParseRetryAfter(""); got != 0 {
		t.Fatalf("ParseRetryAfter(empty) = %v", got)
	}
	if got := ParseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"); got != 0 {
		t.Fatalf("ParseRetryAfter(date) = %v", got)
	}
}
