package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJobs struct {
	reminders atomic.Int32
	expiries  atomic.Int32
	lead      atomic.Int64
	fail      bool
}

func (c *countingJobs) SendReminders(_ context.Context, lead time.Duration) (int, error) {
	c.reminders.Add(1)
	c.lead.Store(int64(lead))
	if c.fail {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func (c *countingJobs) ExpirePackages(context.Context) (int64, error) {
	c.expiries.Add(1)
	if c.fail {
		return 0, errors.New("db down")
	}
	return 2, nil
}

func TestScheduler_RunsJobsImmediatelyAndPeriodically(t *testing.T) {
	for _, fail := range []bool{false, true} {
		jobs := &countingJobs{fail: fail}
		s, err := NewScheduler(jobs, jobs, SchedulerConfig{
			ReminderLead:     time.Hour,
			ReminderInterval: 50 * time.Millisecond,
			ExpiryInterval:   time.Hour,
		}, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, s.Start(context.Background()))

		assert.Eventually(t, func() bool { return jobs.reminders.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
		assert.Eventually(t, func() bool { return jobs.expiries.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, int64(time.Hour), jobs.lead.Load())

		require.NoError(t, s.Stop())
	}
}
