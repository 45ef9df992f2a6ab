package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief A pool of workers plus one dedicated worker for GPU jobs. Jobs of
 * type JOB_TYPE_GPU_RESOURCE always run on the dedicated worker, in the order
 * they were submitted.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	gpuQueue   chan metadata.JobTask
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan metadata.JobTask, channelSize),
		gpuQueue:   make(chan metadata.JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go js.worker(js.jobQueue)
	}
	js.wg.Add(1)
	go js.worker(js.gpuQueue)
}

func (js *JobSystem) worker(queue <-chan metadata.JobTask) {
	defer js.wg.Done()
	for job := range queue {
		js.run(job)
	}
}

func (js *JobSystem) run(job metadata.JobTask) {
	defer js.pending.Done()

	results := make(chan interface{}, 1)
	// Run the job and handle potential errors
	err := job.OnStart(job.InputParams, results)
	close(results)
	if err != nil {
		core.LogError(err.Error())
		if job.OnFailure != nil {
			job.OnFailure(results)
		}
	} else if job.OnComplete != nil {
		job.OnComplete(results)
	}

	// Call the completion callback if set
	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

/**
 * @brief Shuts the job system down after every queued job has run. Jobs
 * still being handed over by AddWorkNonBlocking are waited for first.
 */
func (js *JobSystem) Shutdown() error {
	js.Wait()
	js.closeOnce.Do(func() {
		close(js.jobQueue)
		close(js.gpuQueue)
	})
	js.wg.Wait()
	return nil
}

/**
 * @brief Blocks until every submitted job has finished, including jobs
 * queued without blocking. Must not be called from a job.
 */
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

// AddWorkNonBlocking queues the job from its own goroutine and returns immediately.
// Jobs added this way carry no ordering guarantee.
func (js *JobSystem) AddWorkNonBlocking(jt metadata.JobTask) {
	js.pending.Add(1)
	go js.enqueue(jt)
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param info The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt metadata.JobTask) {
	js.pending.Add(1)
	js.enqueue(jt)
}

func (js *JobSystem) enqueue(jt metadata.JobTask) {
	if jt.JobType == metadata.JOB_TYPE_GPU_RESOURCE {
		js.gpuQueue <- jt
		return
	}
	js.jobQueue <- jt
}

/**
 * @brief A batch of jobs its submitter waits on without waiting for the rest
 * of the system. A nil JobSystem runs the batch inline.
 */
type JobGroup struct {
	js  *JobSystem
	wg  sync.WaitGroup
	mu  sync.Mutex
	err error
}

// Group starts an empty batch.
func (js *JobSystem) Group() *JobGroup {
	return &JobGroup{js: js}
}

// Go queues fn as a job of the given type. The first error a job returns is
// reported by Wait.
func (g *JobGroup) Go(jobType metadata.JobType, fn func() error) {
	if g.js == nil {
		g.fail(fn())
		return
	}
	g.wg.Add(1)
	g.js.Submit(metadata.JobTask{
		JobType: jobType,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			err := fn()
			g.fail(err)
			return err
		},
		OnCompletionCallback: g.wg.Done,
	})
}

func (g *JobGroup) fail(err error) {
	if err == nil {
		return
	}
	g.mu.Lock()
	if g.err == nil {
		g.err = err
	}
	g.mu.Unlock()
}

// Wait blocks until every job of the batch has run.
func (g *JobGroup) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
