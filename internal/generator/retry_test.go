package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Do(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name         string
		maxAttempts  int
		failures     int
		wantValue    string
		wantOK       bool
		wantAttempts int
	}{
		{name: "first try", maxAttempts: 2, failures: 0, wantValue: "ok", wantOK: true, wantAttempts: 1},
		{name: "second try", maxAttempts: 2, failures: 1, wantValue: "ok", wantOK: true, wantAttempts: 2},
		{name: "exhausted", maxAttempts: 2, failures: 5, wantValue: "fallback", wantOK: false, wantAttempts: 2},
		{name: "zero attempts still tries once", maxAttempts: 0, failures: 5, wantValue: "fallback", wantOK: false, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			failed := 0
			p := RetryPolicy[string]{
				MaxAttempts: tt.maxAttempts,
				Delay:       time.Millisecond,
				Fallback:    func() string { return "fallback" },
				OnAttempt:   func(int, error) { failed++ },
			}

			v, ok := p.Do(context.Background(), func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", errBoom
				}
				return "ok", nil
			})

			assert.Equal(t, tt.wantValue, v)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantAttempts, calls)
			assert.Equal(t, min(tt.failures, tt.wantAttempts), failed)
		})
	}
}

func TestRetryPolicy_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy[int]{MaxAttempts: 3, Delay: time.Hour, Fallback: func() int { return -1 }}

	start := time.Now()
	v, ok := p.Do(ctx, func(context.Context) (int, error) {
		cancel()
		return 0, errors.New("fail")
	})

	assert.Equal(t, -1, v)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryPolicy_NilFallbackGivesZero(t *testing.T) {
	v, ok := RetryPolicy[[]string]{MaxAttempts: 1}.Do(context.Background(), func(context.Context) ([]string, error) {
		return nil, errors.New("fail")
	})
	assert.Nil(t, v)
	assert.False(t, ok)
}

func TestDecodeJSON_StripsFences(t *testing.T) {
	type theme struct {
		OptionAColor string `json:"optionAColor"`
	}

	got, err := DecodeJSON[theme]("```json\n{\"optionAColor\":\"#fff\"}\n```")
	assert.NoError(t, err)
	assert.Equal(t, "#fff", got.OptionAColor)

	_, err = DecodeJSON[theme]("Sure! Here is your theme")
	assert.Error(t, err)
}
