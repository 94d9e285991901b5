package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/skillboard/internal/domain/model"
)

// Kind names the operation a job performs.
type Kind string

// Job kinds handled by the rating workers.
const (
	KindValidate   Kind = "validate"
	KindInvalidate Kind = "invalidate"
	KindRebuild    Kind = "rebuild"
)

// Result is the outcome of a job, delivered on Job.Reply.
type Result struct {
	JobID uuid.UUID
	Value any
	Err   error
}

// Job is one unit of work scoped to a single activity.
type Job struct {
	ID         uuid.UUID
	Kind       Kind
	Activity   model.ActivityID
	Sessions   []model.SessionID
	Since      time.Time
	EnqueuedAt time.Time
	// Reply receives exactly one Result; it is buffered so workers never block on it.
	Reply chan Result
}

// NewJob returns a job with a fresh id and reply channel.
func NewJob(kind Kind, activity model.ActivityID) Job {
	return Job{
		ID:         uuid.New(),
		Kind:       kind,
		Activity:   activity,
		EnqueuedAt: time.Now(),
		Reply:      make(chan Result, 1),
	}
}
