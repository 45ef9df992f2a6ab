package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func newTestJobSystem(t *testing.T, workers int) *JobSystem {
	t.Helper()
	js, err := NewJobSystem(workers, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = js.Shutdown() })
	return js
}

func TestNewJobSystem_Validates(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystem_Callbacks(t *testing.T) {
	js := newTestJobSystem(t, 2)

	var mu sync.Mutex
	var got []string
	note := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	js.Submit(metadata.JobTask{
		JobType: metadata.JOB_TYPE_GENERAL,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			results <- params.(string) + "!"
			return nil
		},
		OnComplete: func(results <-chan interface{}) {
			note((<-results).(string))
		},
		OnCompletionCallback: func() { note("done") },
		InputParams:          "ok",
	})
	js.Submit(metadata.JobTask{
		JobType: metadata.JOB_TYPE_RESOURCE_LOAD,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			return errors.New("missing file")
		},
		OnFailure: func(results <-chan interface{}) { note("failed") },
	})
	js.Wait()

	assert.ElementsMatch(t, []string{"ok!", "done", "failed"}, got)
}

func TestJobSystem_GPUJobsRunInOrder(t *testing.T) {
	js := newTestJobSystem(t, 4)

	var order []int
	for i := 0; i < 32; i++ {
		js.Submit(metadata.JobTask{
			JobType: metadata.JOB_TYPE_GPU_RESOURCE,
			OnStart: func(params interface{}, results chan<- interface{}) error {
				// single worker, so no lock
				order = append(order, params.(int))
				return nil
			},
			InputParams: i,
		})
	}
	js.Wait()

	require.Len(t, order, 32)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestJobSystem_NonBlockingWorkIsWaitedFor(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 8; i++ {
		js.AddWorkNonBlocking(metadata.JobTask{
			JobType: metadata.JOB_TYPE_GENERAL,
			OnStart: func(params interface{}, results chan<- interface{}) error {
				ran.Add(1)
				return nil
			},
		})
	}
	// Shutdown must not close the queues under a pending hand over
	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(8), ran.Load())
}

func TestJobGroup_WaitsForItsJobs(t *testing.T) {
	js := newTestJobSystem(t, 3)

	var sum atomic.Int64
	group := js.Group()
	for i := 1; i <= 100; i++ {
		group.Go(metadata.JOB_TYPE_GENERAL, func() error {
			sum.Add(int64(i))
			return nil
		})
	}
	require.NoError(t, group.Wait())
	assert.Equal(t, int64(5050), sum.Load())
}

func TestJobGroup_ReportsFirstError(t *testing.T) {
	js := newTestJobSystem(t, 1)

	boom := errors.New("boom")
	group := js.Group()
	group.Go(metadata.JOB_TYPE_RESOURCE_LOAD, func() error { return boom })
	group.Go(metadata.JOB_TYPE_RESOURCE_LOAD, func() error { return nil })
	assert.ErrorIs(t, group.Wait(), boom)
}

func TestJobGroup_NilSystemRunsInline(t *testing.T) {
	var js *JobSystem
	group := js.Group()

	ran := false
	group.Go(metadata.JOB_TYPE_GENERAL, func() error {
		ran = true
		return nil
	})
	assert.True(t, ran)
	assert.NoError(t, group.Wait())
}
