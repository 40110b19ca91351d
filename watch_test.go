package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRunner struct {
	runs int
	err  error
}

func (r *countingRunner) Run(ctx context.Context) error {
	r.runs++
	return r.err
}

func TestWatchSingleRun(t *testing.T) {
	runner := &countingRunner{err: errors.New("source unavailable")}

	err := watch(context.Background(), "@every 1h", runner, true)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
}

func TestWatchInvalidSchedule(t *testing.T) {
	runner := &countingRunner{}

	err := watch(context.Background(), "not a schedule", runner, false)
	assert.Error(t, err)
	assert.Equal(t, 1, runner.runs)
}

func TestWatchStopsWithContext(t *testing.T) {
	runner := &countingRunner{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := watch(ctx, "@every 1h", runner, false)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
}
