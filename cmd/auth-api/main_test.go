package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingJanitor struct {
	calls atomic.Int32
	err   error
}

func (j *countingJanitor) ClearExpiredSessions(context.Context) (int64, error) {
	j.calls.Add(1)
	return 1, j.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartRefreshJanitor_TicksUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &countingJanitor{}

	startRefreshJanitor(ctx, j, discardLogger(), 5*time.Millisecond)

	require.Eventually(t, func() bool { return j.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	stopped := j.calls.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, stopped, j.calls.Load())
}

func TestStartRefreshJanitor_KeepsRunningOnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	j := &countingJanitor{err: errors.New("db down")}

	startRefreshJanitor(ctx, j, discardLogger(), 5*time.Millisecond)

	require.Eventually(t, func() bool { return j.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestStartRefreshJanitor_DisabledPeriod(t *testing.T) {
	j := &countingJanitor{}

	startRefreshJanitor(context.Background(), j, discardLogger(), 0)

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, j.calls.Load())
}

func TestSetupLogger_LevelsByEnv(t *testing.T) {
	ctx := context.Background()

	require.True(t, setupLogger(envLocal).Enabled(ctx, slog.LevelDebug))
	require.True(t, setupLogger(envDev).Enabled(ctx, slog.LevelDebug))
	require.False(t, setupLogger(envProd).Enabled(ctx, slog.LevelDebug))
	require.True(t, setupLogger(envProd).Enabled(ctx, slog.LevelInfo))
}

func TestRootCommand_Wiring(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	require.True(t, names["serve"])
	require.True(t, names["migrate"])
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, serveCmd.Flags().Lookup("migrate"))
}
