package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockRevoker struct {
	calls atomic.Int32
	count int64
	err   error
}

func (m *mockRevoker) RevokeExpired(ctx context.Context) (int64, error) {
	m.calls.Add(1)
	return m.count, m.err
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(&mockRevoker{}, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		revoker := &mockRevoker{count: 3}
		job := NewCleanupJob(revoker, time.Hour)

		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool { return revoker.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("runs again on every tick", func(t *testing.T) {
		revoker := &mockRevoker{}
		job := NewCleanupJob(revoker, 10*time.Millisecond)

		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool { return revoker.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	})

	t.Run("keeps running after a failure", func(t *testing.T) {
		revoker := &mockRevoker{err: errors.New("connection refused")}
		job := NewCleanupJob(revoker, 10*time.Millisecond)

		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool { return revoker.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("stop ends the loop", func(t *testing.T) {
		revoker := &mockRevoker{}
		job := NewCleanupJob(revoker, 10*time.Millisecond)

		job.Start()
		assert.Eventually(t, func() bool { return revoker.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
		job.Stop()

		time.Sleep(20 * time.Millisecond)
		after := revoker.calls.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, after, revoker.calls.Load())
	})
}
