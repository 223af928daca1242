package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/stash/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/stash/internal/core/domain"
)

func TestDispatcher_ProcessesTasks(t *testing.T) {
	var (
		done    atomic.Int32
		running atomic.Int32
		peak    atomic.Int32
	)
	run := runnerFunc(func(context.Context, *domain.Task) (json.RawMessage, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		done.Add(1)
		return json.RawMessage(`{}`), nil
	})

	cfg := domain.WorkerSettings{Concurrency: 2, PollInterval: time.Hour, Lease: time.Minute, MaxBackoff: time.Second}
	tasks := NewTaskService(memory.NewTaskQueue(), run, cfg)
	t.Cleanup(tasks.Close)
	d := NewDispatcher(tasks, cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(context.Background()) }()

	ctx := context.Background()
	for i := range 6 {
		_, _, err := tasks.CreateTask(ctx, linkRequest("u1", fmt.Sprintf("l%d", i), domain.TaskTypeLinkEmbeddings))
		require.NoError(t, err)
	}

	// The poll interval is an hour, so only wake-ups can drive this.
	require.Eventually(t, func() bool { return done.Load() == 6 }, 5*time.Second, 10*time.Millisecond)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	require.NoError(t, d.Stop())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}

	completed, err := tasks.ListTasks(ctx, domain.TaskFilter{Statuses: []domain.TaskStatus{domain.TaskStatusCompleted}})
	require.NoError(t, err)
	assert.Len(t, completed, 6)
}

func TestDispatcher_StopsOnContextCancel(t *testing.T) {
	cfg := domain.WorkerSettings{Concurrency: 1, PollInterval: 10 * time.Millisecond, Lease: time.Minute}
	tasks := NewTaskService(memory.NewTaskQueue(), runnerFunc(succeed), cfg)
	t.Cleanup(tasks.Close)
	d := NewDispatcher(tasks, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_WakeDoesNotBlock(t *testing.T) {
	tasks := NewTaskService(memory.NewTaskQueue(), runnerFunc(succeed), domain.WorkerSettings{})
	d := NewDispatcher(tasks, domain.WorkerSettings{Concurrency: 1})

	for range 10 {
		d.Wake()
	}
	assert.NoError(t, d.Stop())
}
