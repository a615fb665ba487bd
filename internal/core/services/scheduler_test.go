package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsOnInterval(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler("resync", 10*time.Millisecond, func(context.Context) (int, error) {
		return int(calls.Add(1)), nil
	})
	assert.Nil(t, s.LastResult())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Runs() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	last := s.LastResult()
	require.NotNil(t, last)
	assert.NoError(t, last.Err)
	assert.GreaterOrEqual(t, last.Items, 3)
	assert.False(t, last.EndedAt.Before(last.StartedAt))
}

func TestScheduler_RecordsFailures(t *testing.T) {
	s := NewScheduler("resync", 5*time.Millisecond, func(context.Context) (int, error) {
		return 0, errors.New("upstream down")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.LastResult() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.EqualError(t, s.LastResult().Err, "upstream down")
}

func TestScheduler_Stop(t *testing.T) {
	s := NewScheduler("resync", time.Hour, func(context.Context) (int, error) { return 0, nil })

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.running
	}, time.Second, time.Millisecond)
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.Zero(t, s.Runs())
	s.Stop()
}

func TestScheduler_InvalidInterval(t *testing.T) {
	s := NewScheduler("resync", 0, func(context.Context) (int, error) { return 0, nil })
	assert.Error(t, s.Start(context.Background()))
}
