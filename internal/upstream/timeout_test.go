package upstream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithTimeout_ReturnsResult(t *testing.T) {
	got, err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ok", got)
}

func TestWithTimeout_PassesThroughCallError(t *testing.T) {
	boom := errors.New("boom")
	_, err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrUpstreamTimeout)
}

func TestWithTimeout_NeverSettlingCall(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var seen context.Context
	seenCh := make(chan context.Context, 1)

	start := time.Now()
	_, err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (struct{}, error) {
		seenCh <- ctx
		<-release
		return struct{}{}, nil
	})
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrUpstreamTimeout)
	require.GreaterOrEqual(t, elapsed, time.Second)
	require.Less(t, elapsed, 2*time.Second)

	seen = <-seenCh
	require.Error(t, seen.Err(), "derived context must be released")
}

func TestWithTimeout_CallHonouringDeadline(t *testing.T) {
	_, err := WithTimeout(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, ErrUpstreamTimeout)
}

func TestWithTimeout_ReleasesContextOnSuccess(t *testing.T) {
	var seen context.Context
	_, err := WithTimeout(context.Background(), time.Minute, func(ctx context.Context) (int, error) {
		seen = ctx
		return 1, nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, seen.Err(), context.Canceled)
}

func TestWithTimeout_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithTimeout(ctx, time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrUpstreamTimeout)
}

func TestWithTimeout_NonPositiveDurationRunsDirectly(t *testing.T) {
	got, err := WithTimeout(context.Background(), 0, func(ctx context.Context) (int, error) {
		_, has := ctx.Deadline()
		require.False(t, has)
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, got)
}
