package resilience

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	states []int
	trips  int
}

func (r *recordingObserver) SetCircuitBreakerState(_ string, state int) {
	r.states = append(r.states, state)
}

func (r *recordingObserver) RecordCircuitBreakerTrip(string) { r.trips++ }

func TestCircuitBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultCircuitBreakerConfig("kafka-producer")
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	observer := &recordingObserver{}
	cb := NewCircuitBreaker(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observer)

	boom := errors.New("broker down")
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())
	assert.Equal(t, 1, observer.trips)

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("x"), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, "x", cb.Name())
}
