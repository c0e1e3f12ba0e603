package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobValidating JobStatus = "validating"
	JobSaving     JobStatus = "saving"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) IsFinal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job tracks a background spreadsheet upload.
type Job struct {
	ID            string     `json:"job_id"`
	Kind          string     `json:"kind"`
	Status        JobStatus  `json:"status"`
	Message       string     `json:"message"`
	Progress      int        `json:"progress"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int        `json:"processed_rows"`
	Errors        []string   `json:"errors"`
	Result        any        `json:"result,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (j *Job) Prepare() {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = JobPending
	}
	if j.Errors == nil {
		j.Errors = []string{}
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = now
	}
}

// JobUpdate carries the fields to change; nil fields are left untouched.
type JobUpdate struct {
	Status        *JobStatus
	Message       *string
	Progress      *int
	TotalRows     *int
	ProcessedRows *int
	Errors        []string
	Result        any
}

// Apply merges u into j and maintains the timestamps: StartedAt is set the
// first time the job enters processing and CompletedAt when it reaches a
// final status.
func (j *Job) Apply(u JobUpdate, now time.Time) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Progress != nil {
		p := *u.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		j.Progress = p
	}
	if u.TotalRows != nil {
		j.TotalRows = *u.TotalRows
	}
	if u.ProcessedRows != nil {
		j.ProcessedRows = *u.ProcessedRows
	}
	if u.Errors != nil {
		j.Errors = u.Errors
	}
	if u.Result != nil {
		j.Result = u.Result
	}

	j.UpdatedAt = now
	if u.Status != nil && *u.Status == JobProcessing && j.StartedAt == nil {
		started := now
		j.StartedAt = &started
	}
	if u.Status != nil && u.Status.IsFinal() {
		completed := now
		j.CompletedAt = &completed
	}
}

// JobResponse is returned when an upload is accepted.
type JobResponse struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
}
