package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParker_UnparkBeforePark(t *testing.T) {
	p := NewParker()
	p.Unpark()

	done := make(chan error, 1)
	go func() { done <- p.Park(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Park ignored a pending Unpark")
	}
	assert.False(t, p.Parked())
}

func TestParker_TokenConsumedOnce(t *testing.T) {
	p := NewParker()
	p.Unpark()
	p.Unpark()
	require.NoError(t, p.Park(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Park(ctx), context.DeadlineExceeded)
}

func TestParker_ParkUntilUnpark(t *testing.T) {
	p := NewParker()

	done := make(chan error, 1)
	go func() { done <- p.Park(context.Background()) }()

	require.Eventually(t, p.Parked, time.Second, time.Millisecond)

	select {
	case <-done:
		t.Fatal("Park returned without Unpark")
	case <-time.After(20 * time.Millisecond):
	}

	p.Unpark()
	assert.False(t, p.Parked(), "Unpark clears parked immediately")

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Park did not return after Unpark")
	}
}

func TestParker_ContextCancel(t *testing.T) {
	p := NewParker()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Park(ctx) }()
	require.Eventually(t, p.Parked, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Park ignored cancellation")
	}
	assert.False(t, p.Parked())
}
