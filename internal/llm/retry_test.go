package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		Jitter:     0,
		Retriable:  Transient,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := testPolicy().Do(context.Background(), nil, "test", func() error {
		attempts++
		if attempts < 3 {
			return &StatusError{Code: 503, Body: "unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := &StatusError{Code: 401, Body: "unauthorized"}
	err := testPolicy().Do(context.Background(), nil, "test", func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Do returned %v, want the permanent error", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 401)", attempts)
	}
}

func TestDoExhaustsBudgetAndReturnsOriginalError(t *testing.T) {
	attempts := 0
	transient := &StatusError{Code: 429, Body: "rate limited"}
	err := testPolicy().Do(context.Background(), nil, "test", func() error {
		attempts++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("Do returned %v, want the original error after exhaustion", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 retries)", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	policy := testPolicy()
	policy.BaseDelay = time.Hour
	err := policy.Do(ctx, nil, "test", func() error {
		return &StatusError{Code: 500, Body: "boom"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do returned %v, want context.Canceled", err)
	}
}

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", &StatusError{Code: 429}, true},
		{"status 402", &StatusError{Code: 402}, true},
		{"status 502", &StatusError{Code: 502}, true},
		{"status 400", &StatusError{Code: 400}, false},
		{"status 401", &StatusError{Code: 401}, false},
		{"status 404", &StatusError{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"wrapped status", fmt.Errorf("call: %w", &StatusError{Code: 503}), true},
		{"plain error", errors.New("parse failure"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type fakeProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeProvider) Complete(_ context.Context, _ Config, _ []Message) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func TestGatewayRetriesThroughProvider(t *testing.T) {
	p := &fakeProvider{
		errs:      []error{&StatusError{Code: 503}, nil},
		responses: []string{"", `{"ok":true}`},
	}
	gw := NewGateway(p, Config{Model: "test"}, testPolicy(), nil)
	got, err := gw.Invoke(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Invoke = %q", got)
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}
