package constants

// JobStatus is the canonical lifecycle status for an analysis job.
type JobStatus string

// Stable values (store these exact strings in the job record).
const (
	JobStatusAwaitingUpload  JobStatus = "AWAITING_UPLOAD"  // created, waiting for the file
	JobStatusPendingAnalysis JobStatus = "PENDING_ANALYSIS" // file landed, ready for an attempt
	JobStatusProcessing      JobStatus = "PROCESSING"       // an attempt owns the job
	JobStatusCompleted       JobStatus = "COMPLETED"        // terminal success
	JobStatusFailed          JobStatus = "FAILED"           // terminal failure
)

// AllStatuses lists every status, used when sweeping index sets.
var AllStatuses = []JobStatus{
	JobStatusAwaitingUpload,
	JobStatusPendingAnalysis,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
}

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

var transitions = map[JobStatus][]JobStatus{
	JobStatusAwaitingUpload:  {JobStatusPendingAnalysis},
	JobStatusPendingAnalysis: {JobStatusProcessing},
	JobStatusProcessing:      {JobStatusPendingAnalysis, JobStatusCompleted, JobStatusFailed},
}

// ValidTransition reports whether from -> to is a legal lifecycle edge.
// Same-status "transitions" are legal merges; terminal states have no
// outgoing edges.
func ValidTransition(from, to JobStatus) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
