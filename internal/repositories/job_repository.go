package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"excelsql/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

// JobRepository stores the state of background upload jobs.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, id string, u models.JobUpdate) (*models.Job, error)
	Delete(ctx context.Context, id string) error
	// PurgeFinished removes completed or failed jobs last updated before
	// now-olderThan and returns how many were removed.
	PurgeFinished(ctx context.Context, olderThan time.Duration) (int, error)
}

func cloneJob(j *models.Job) *models.Job {
	c := *j
	c.Errors = slices.Clone(j.Errors)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// MemoryJobRepository keeps jobs in process memory. Jobs are lost on restart
// and are not shared between replicas.
type MemoryJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	now  func() time.Time
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*models.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *models.Job) error {
	job.Prepare()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobRepository) Get(_ context.Context, id string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobRepository) Update(_ context.Context, id string, u models.JobUpdate) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	job.Apply(u, r.now())
	return cloneJob(job), nil
}

func (r *MemoryJobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *MemoryJobRepository) PurgeFinished(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, job := range r.jobs {
		if job.Status.IsFinal() && job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			purged++
		}
	}
	return purged, nil
}

// RedisJobRepository stores each job as JSON under "job:<id>". Every write
// refreshes the key TTL, so Redis expires jobs on its own after the
// retention period.
type RedisJobRepository struct {
	rdb       *redis.Client
	retention time.Duration
}

func NewRedisJobRepository(rdb *redis.Client, retention time.Duration) *RedisJobRepository {
	return &RedisJobRepository{rdb: rdb, retention: retention}
}

func jobKey(id string) string {
	return "job:" + id
}

func (r *RedisJobRepository) Create(ctx context.Context, job *models.Job) error {
	job.Prepare()

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return r.rdb.Set(ctx, jobKey(job.ID), payload, r.retention).Err()
}

func (r *RedisJobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	payload, err := r.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job models.Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update applies u with optimistic locking, retrying when another writer
// changed the job between the read and the write.
func (r *RedisJobRepository) Update(ctx context.Context, id string, u models.JobUpdate) (*models.Job, error) {
	key := jobKey(id)
	var updated *models.Job

	txf := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrJobNotFound
			}
			return err
		}

		var job models.Job
		if err := json.Unmarshal(payload, &job); err != nil {
			return fmt.Errorf("failed to decode job %s: %w", id, err)
		}
		job.Apply(u, time.Now().UTC())

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.retention)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for attempt := 0; attempt < 5; attempt++ {
		err := r.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("job %s: too many concurrent updates", id)
}

func (r *RedisJobRepository) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// PurgeFinished is a no-op: key expiry already enforces the retention.
func (r *RedisJobRepository) PurgeFinished(context.Context, time.Duration) (int, error) {
	return 0, nil
}
