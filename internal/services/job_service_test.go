package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"excelsql/internal/models"
	"excelsql/internal/repositories"
)

func TestJobService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	jobs := NewJobService(repositories.NewMemoryJobRepository(), zap.NewNop())

	job, err := jobs.Create(ctx, "j1", JobKindFlujoCaja)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, "Trabajo creado, esperando procesamiento", job.Message)

	got, err := jobs.Update(ctx, "j1", progressUpdate(models.JobProcessing, "Leyendo archivo Excel...", 10))
	require.NoError(t, err)
	assert.Equal(t, 10, got.Progress)
	assert.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	jobs.Fail(ctx, "j1", "Validación fallida")
	got, err = jobs.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, []string{"Validación fallida"}, got.Errors)
	assert.NotNil(t, got.CompletedAt)

	jobs.Fail(ctx, "j1", "Validación fallida", "fila 3", "fila 9")
	got, _ = jobs.Get(ctx, "j1")
	assert.Equal(t, []string{"fila 3", "fila 9"}, got.Errors)

	require.NoError(t, jobs.Delete(ctx, "j1"))
	_, err = jobs.Get(ctx, "j1")
	assert.ErrorIs(t, err, repositories.ErrJobNotFound)
}

func TestJobService_UpdateSurvivesCancelledContext(t *testing.T) {
	jobs := NewJobService(repositories.NewMemoryJobRepository(), zap.NewNop())
	_, err := jobs.Create(context.Background(), "j1", JobKindBalance)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = jobs.Update(ctx, "j1", progressUpdate(models.JobSaving, "Guardando", 60))
	require.NoError(t, err)
}

func TestJobService_UpdateUnknown(t *testing.T) {
	jobs := NewJobService(repositories.NewMemoryJobRepository(), zap.NewNop())

	_, err := jobs.Update(context.Background(), "missing", progressUpdate("", "x", 1))
	assert.ErrorIs(t, err, repositories.ErrJobNotFound)
}

func TestJobService_FailLogsStoreError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	jobs := NewJobService(repositories.NewMemoryJobRepository(), zap.New(core))

	jobs.Fail(context.Background(), "missing", "Error inesperado: disk full")

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "failed to mark job failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "missing", fields["job_id"])
	assert.Equal(t, repositories.ErrJobNotFound.Error(), fields["error"])
}

func TestJobService_RunPurge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	jobs := NewJobService(repositories.NewMemoryJobRepository(), zap.NewNop())
	_, err := jobs.Create(ctx, "done", JobKindBalance)
	require.NoError(t, err)
	jobs.Fail(ctx, "done", "x")
	_, err = jobs.Create(ctx, "running", JobKindBalance)
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		jobs.RunPurge(ctx, 10*time.Millisecond, 0)
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		_, err := jobs.Get(context.Background(), "done")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = jobs.Get(context.Background(), "running")
	assert.NoError(t, err, "unfinished jobs are kept")

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("RunPurge did not stop")
	}
}
