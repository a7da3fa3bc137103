package enums

import "fmt"

// JobStatus tracks a generation job through the outbox queue.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusPublished JobStatus = "published"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var validJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusPublished,
	JobStatusCompleted,
	JobStatusFailed,
}

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseJobStatus converts raw input into a JobStatus.
func ParseJobStatus(value string) (JobStatus, error) {
	for _, candidate := range validJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", value)
}
