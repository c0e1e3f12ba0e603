package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"excelsql/internal/models"
	"excelsql/internal/repositories"
)

const (
	JobKindBalance   = "balance_general"
	JobKindFlujoCaja = "flujo_caja"
)

type JobService struct {
	repo repositories.JobRepository
	lggr *zap.Logger
}

func NewJobService(repo repositories.JobRepository, lggr *zap.Logger) *JobService {
	return &JobService{repo: repo, lggr: lggr}
}

// Create registers a pending job under id.
func (s *JobService) Create(ctx context.Context, id, kind string) (*models.Job, error) {
	job := &models.Job{
		ID:      id,
		Kind:    kind,
		Status:  models.JobPending,
		Message: "Trabajo creado, esperando procesamiento",
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) Get(ctx context.Context, id string) (*models.Job, error) {
	return s.repo.Get(ctx, id)
}

// Update applies u to the job. Progress writes must survive the task's own
// deadline, so cancellation of ctx is ignored.
func (s *JobService) Update(ctx context.Context, id string, u models.JobUpdate) (*models.Job, error) {
	job, err := s.repo.Update(context.WithoutCancel(ctx), id, u)
	if err != nil {
		s.lggr.Warn("failed to update job", zap.String("job_id", id), zap.Error(err))
		return nil, err
	}
	if u.Status != nil {
		s.lggr.Info("job status changed",
			zap.String("job_id", id),
			zap.String("status", string(job.Status)),
			zap.String("message", job.Message),
			zap.Int("progress", job.Progress),
		)
	}
	return job, nil
}

// Fail marks the job failed with message and errs.
func (s *JobService) Fail(ctx context.Context, id, message string, errs ...string) {
	if errs == nil {
		errs = []string{message}
	}
	status := models.JobFailed
	progress := 100
	_, err := s.Update(ctx, id, models.JobUpdate{
		Status:   &status,
		Message:  &message,
		Progress: &progress,
		Errors:   errs,
	})
	if err != nil {
		s.lggr.Error("failed to mark job failed",
			zap.String("job_id", id),
			zap.String("message", message),
			zap.Error(err),
		)
	}
}

func (s *JobService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *JobService) PurgeFinished(ctx context.Context, olderThan time.Duration) (int, error) {
	n, err := s.repo.PurgeFinished(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.lggr.Info("purged finished jobs", zap.Int("count", n))
	}
	return n, nil
}

// RunPurge removes expired jobs every interval until ctx is done.
func (s *JobService) RunPurge(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PurgeFinished(ctx, retention); err != nil {
				s.lggr.Warn("job purge failed", zap.Error(err))
			}
		}
	}
}

// progressUpdate is shorthand for the common status/message/progress update.
func progressUpdate(status models.JobStatus, message string, progress int) models.JobUpdate {
	u := models.JobUpdate{Message: &message, Progress: &progress}
	if status != "" {
		u.Status = &status
	}
	return u
}
