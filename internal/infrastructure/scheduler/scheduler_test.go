package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	name     string
	release  chan struct{}
	started  chan struct{}
	inFlight int32
	maxSeen  int32
	runs     int32
	err      error
}

func newBlockingJob(name string) *blockingJob {
	return &blockingJob{name: name, release: make(chan struct{}), started: make(chan struct{}, 100)}
}

func (j *blockingJob) Name() string        { return j.name }
func (j *blockingJob) Description() string { return "test job" }

func (j *blockingJob) Run(ctx context.Context) error {
	n := atomic.AddInt32(&j.inFlight, 1)
	defer atomic.AddInt32(&j.inFlight, -1)
	for {
		m := atomic.LoadInt32(&j.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&j.maxSeen, m, n) {
			break
		}
	}
	atomic.AddInt32(&j.runs, 1)
	j.started <- struct{}{}

	select {
	case <-j.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return j.err
}

func testScheduler() *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = 5 * time.Millisecond
	return NewScheduler(cfg)
}

func TestScheduler_RunOnStartAndNoOverlap(t *testing.T) {
	s := testScheduler()
	job := newBlockingJob("poll")
	require.NoError(t, s.Register(job, &IntervalSchedule{Interval: time.Millisecond}, RunOnStart()))
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-job.started:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}

	// Let several ticks fall due while the job is blocked.
	time.Sleep(50 * time.Millisecond)

	info, err := s.GetJobInfo("poll")
	require.NoError(t, err)
	assert.True(t, info.Running)
	assert.Greater(t, info.SkipCount, int64(0))
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.maxSeen))

	_, err = s.RunNow(context.Background(), "poll")
	assert.ErrorIs(t, err, ErrJobRunning)

	close(job.release)
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.maxSeen))
}

func TestScheduler_RunNow(t *testing.T) {
	s := testScheduler()
	job := newBlockingJob("poll")
	close(job.release)
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "poll")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Manual)

	job.err = errors.New("fetch failed")
	result, err = s.RunNow(context.Background(), "poll")
	assert.EqualError(t, err, "fetch failed")
	assert.False(t, result.Success)

	info, err := s.GetJobInfo("poll")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.RunCount)
	assert.Equal(t, int64(1), info.FailCount)
	assert.Len(t, s.GetHistory(0), 2)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_Registration(t *testing.T) {
	s := testScheduler()
	job := newBlockingJob("poll")

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)

	require.NoError(t, s.Reschedule("poll", NewIntervalSchedule(time.Hour)))
	info, err := s.GetJobInfo("poll")
	require.NoError(t, err)
	assert.Equal(t, "@every 1h0m0s", info.Schedule)

	assert.ErrorIs(t, s.Reschedule("nope", NewIntervalSchedule(time.Hour)), ErrJobNotFound)
	require.NoError(t, s.SetEnabled("poll", false))
	assert.False(t, s.ListJobs()[0].Enabled)
}

func TestScheduler_StartStop(t *testing.T) {
	s := testScheduler()
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
}

func TestIntervalSchedule_Default(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, NewIntervalSchedule(0).Interval)
}

type panickingJob struct {
	runs int32
}

func (j *panickingJob) Name() string        { return "poll" }
func (j *panickingJob) Description() string { return "panics on first run" }

func (j *panickingJob) Run(context.Context) error {
	if atomic.AddInt32(&j.runs, 1) == 1 {
		panic("nil snapshot")
	}
	return nil
}

func TestScheduler_PanicClearsRunning(t *testing.T) {
	s := testScheduler()
	job := &panickingJob{}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "poll")
	require.ErrorIs(t, err, ErrJobPanicked)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "nil snapshot")

	info, err := s.GetJobInfo("poll")
	require.NoError(t, err)
	assert.False(t, info.Running)

	_, err = s.RunNow(context.Background(), "poll")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&job.runs))
}

func TestScheduler_OnJobComplete(t *testing.T) {
	s := testScheduler()
	job := newBlockingJob("poll")
	close(job.release)
	job.err = errors.New("canvas down")
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	var got []JobResult
	s.OnJobComplete(func(r JobResult) { got = append(got, r) })

	_, _ = s.RunNow(context.Background(), "poll")
	require.Len(t, got, 1)
	assert.Equal(t, "poll", got[0].JobName)
	assert.False(t, got[0].Success)
	assert.Equal(t, "canvas down", got[0].Error)
}
