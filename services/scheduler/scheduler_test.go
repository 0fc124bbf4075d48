package schedsvc

import (
	"bytes"
	"context"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElabeidiTech/LearnHub-sub000/core"
	logsvc "github.com/ElabeidiTech/LearnHub-sub000/services/logger"
)

type expirerFunc func(ctx context.Context) (int, error)

func (f expirerFunc) ExpireStale(ctx context.Context) (int, error) { return f(ctx) }

func newLogger(buf *bytes.Buffer) core.Logger {
	return logsvc.NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())
}

func TestSweepAttempts(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := newLogger(buf)

	n, err := SweepAttempts(context.Background(), expirerFunc(func(context.Context) (int, error) { return 3, nil }), logger)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Contains(t, buf.String(), "expired 3 stale quiz attempts")

	_, err = SweepAttempts(context.Background(), expirerFunc(func(context.Context) (int, error) {
		return 0, errors.New("db down")
	}), logger)
	assert.EqualError(t, err, "db down")
	assert.Contains(t, buf.String(), "expiring stale attempts")
}

func TestScheduler(t *testing.T) {
	var runs int32
	sched := New(newLogger(new(bytes.Buffer)))

	assert.Error(t, sched.ScheduleAttemptSweep("not a schedule", time.Second, nil))

	err := sched.ScheduleAttemptSweep("@every 1s", time.Second, expirerFunc(func(ctx context.Context) (int, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		atomic.AddInt32(&runs, 1)
		return 0, nil
	}))
	require.NoError(t, err)

	sched.Start()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	sched.Stop(ctx)
}
