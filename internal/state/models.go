package state

// Status represents the lifecycle of a run or sample within the pipeline.
type Status string

const (
	StatusPending        Status = "pending"
	StatusAcquiring      Status = "acquiring"
	StatusAcquired       Status = "acquired"
	StatusDemultiplexing Status = "demultiplexing"
	StatusDemultiplexed  Status = "demultiplexed"
	StatusCounting       Status = "counting"
	StatusCounted        Status = "counted"
	StatusAggregating    Status = "aggregating"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// RunRecord mirrors one row of the runs table.
type RunRecord struct {
	Name         string
	Status       Status
	ResolvedPath string
	FastqPath    string
	ErrorMessage string
	UpdatedAt    string
}

// SampleRecord mirrors one row of the samples table.
type SampleRecord struct {
	Name         string
	Status       Status
	CountPath    string
	AggrPath     string
	ErrorMessage string
	UpdatedAt    string
}

// Failed reports whether the record is in the failed state.
func (r RunRecord) Failed() bool { return r.Status == StatusFailed }

// Demultiplexed reports whether the run completed both pipeline stages.
func (r RunRecord) Demultiplexed() bool { return r.Status == StatusDemultiplexed }
