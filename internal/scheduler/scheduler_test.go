package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	analyticsdomain "github.com/smallbiznis/finsight/internal/analytics/domain"
	"github.com/smallbiznis/finsight/internal/clock"
	"github.com/smallbiznis/finsight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeAnalytics struct {
	analyticsdomain.Service

	cutoffs []time.Time
	limits  []int
	n       int
	err     error
}

func (f *fakeAnalytics) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	return f.n, f.err
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, analytics analyticsdomain.Service, cfg config.SchedulerConfig) (*Scheduler, error) {
	t.Helper()
	return New(Params{
		Log:       zaptest.NewLogger(t),
		Clock:     clock.NewFakeClock(now),
		Config:    config.Config{Scheduler: cfg},
		Analytics: analytics,
	})
}

func TestRunOnceExpiresWithConfiguredCutoff(t *testing.T) {
	fake := &fakeAnalytics{n: 3}
	s, err := newScheduler(t, fake, config.SchedulerConfig{StaleRunAfter: 10 * time.Minute, StaleRunBatch: 7})
	require.NoError(t, err)

	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, fake.cutoffs, 1)
	assert.Equal(t, now.Add(-10*time.Minute), fake.cutoffs[0])
	assert.Equal(t, []int{7}, fake.limits)
}

func TestRunOnceDefaultsAndWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	fake := &fakeAnalytics{err: boom}
	s, err := newScheduler(t, fake, config.SchedulerConfig{})
	require.NoError(t, err)

	err = s.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), JobExpireStaleRuns)
	assert.Equal(t, now.Add(-30*time.Minute), fake.cutoffs[0])
	assert.Equal(t, []int{100}, fake.limits)
}

func TestRunOnceTreatsTimeoutAsSoft(t *testing.T) {
	fake := &fakeAnalytics{err: context.DeadlineExceeded}
	s, err := newScheduler(t, fake, config.SchedulerConfig{})
	require.NoError(t, err)
	assert.NoError(t, s.RunOnce(context.Background()))
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := newScheduler(t, &fakeAnalytics{}, config.SchedulerConfig{Spec: "every now and then"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = newScheduler(t, nil, config.SchedulerConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStartAndStop(t *testing.T) {
	s, err := newScheduler(t, &fakeAnalytics{}, config.SchedulerConfig{Spec: "@every 1h"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop(ctx))
}
