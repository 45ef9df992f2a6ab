package metadata

/** Definition for jobs. Results are sent on the provided channel. */
type JobStart func(params interface{}, results chan<- interface{}) error

/** Definition for completion of a job. */
type JobOnComplete func(results <-chan interface{})

/** @brief Describes a type of job */
type JobType int

const (
	/**
	 * @brief A general job that does not have any specific thread requirements.
	 */
	JOB_TYPE_GENERAL JobType = 0x02
	/**
	 * @brief A resource loading job, such as reparsing shader scripts.
	 */
	JOB_TYPE_RESOURCE_LOAD JobType = 0x04
	/**
	 * @brief Execution of a back-end frame. These must run on a single worker
	 * so the device sees frames in submission order.
	 */
	JOB_TYPE_GPU_RESOURCE JobType = 0x08
)

/**
 * @brief Describes a job to be run.
 */
type JobTask struct {
	JobType JobType
	/** @brief Invoked when the job starts. Required. */
	OnStart JobStart
	/** @brief Invoked when OnStart returns nil. Optional. */
	OnComplete JobOnComplete
	/** @brief Invoked when OnStart fails. Optional. */
	OnFailure JobOnComplete
	/** @brief Invoked after either of the above. Optional. */
	OnCompletionCallback func()
	/** @brief Data passed to the entry point. */
	InputParams interface{}
}
