package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"excelsql/internal/logger"
)

func newLogFixture(t *testing.T) (*LogService, string) {
	t.Helper()
	dir := t.TempDir()

	app := strings.Join([]string{
		"2024-06-30 10:00:00 - INFO - Iniciando procesamiento",
		"2024-06-30 10:00:01 - WARNING - Fila vacía",
		"2024-06-30 10:00:02 - INFO - Conexión exitosa a SQL Server",
		"2024-06-30 10:00:03 - ERROR - Error en transacción",
		"2024-06-30 10:00:04 - INFO - Proceso completado",
	}, "\n") + "\n"
	errs := "2024-06-30 10:00:03 - ERROR - Error en transacción\n2024-06-30 11:00:00 - ERROR - Timeout\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, logger.ApplicationLog), []byte(app), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, logger.ErrorsLog), []byte(errs), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a log"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, logger.ErrorsLog), old, old))

	svc := NewLogService(dir, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 30, 12, 30, 45, 0, time.UTC) }
	return svc, dir
}

func TestLogService_List(t *testing.T) {
	svc, _ := newLogFixture(t)

	logs, err := svc.List()
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, logger.ApplicationLog, logs[0].Name, "most recent first")
	assert.Equal(t, logger.ErrorsLog, logs[1].Name)
}

func TestLogService_ListMissingDir(t *testing.T) {
	svc := NewLogService(filepath.Join(t.TempDir(), "missing"), zap.NewNop())

	logs, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestLogService_View(t *testing.T) {
	svc, _ := newLogFixture(t)

	v, err := svc.View(logger.ApplicationLog, 100, "", "")
	require.NoError(t, err)
	assert.Equal(t, 5, v.TotalLines)
	assert.Equal(t, 5, v.FilteredLines)
	assert.Equal(t, 5, v.DisplayedLines)

	v, err = svc.View(logger.ApplicationLog, 100, "", "info")
	require.NoError(t, err)
	assert.Equal(t, 3, v.FilteredLines)
	assert.Equal(t, "info", v.Filters.Level)

	v, err = svc.View(logger.ApplicationLog, 1, "", "INFO")
	require.NoError(t, err)
	assert.Equal(t, 3, v.FilteredLines)
	assert.Equal(t, 1, v.DisplayedLines)
	assert.Equal(t, "2024-06-30 10:00:04 - INFO - Proceso completado\n", v.Content)

	v, err = svc.View(logger.ApplicationLog, 100, "SQL SERVER", "INFO")
	require.NoError(t, err)
	assert.Equal(t, 1, v.FilteredLines)
	assert.Contains(t, v.Content, "Conexión exitosa")
}

func TestLogService_ResolveOrder(t *testing.T) {
	svc, _ := newLogFixture(t)

	_, err := svc.View("missing.log", 10, "", "")
	assert.ErrorIs(t, err, ErrLogNotFound)

	_, err = svc.View("missing.txt", 10, "", "")
	assert.ErrorIs(t, err, ErrLogNotFound, "existence is checked first")

	_, err = svc.View("notes.txt", 10, "", "")
	assert.ErrorIs(t, err, ErrNotALogFile)

	_, err = svc.Tail("notes.txt", 10)
	assert.ErrorIs(t, err, ErrNotALogFile)

	for _, name := range []string{"../application.log", "sub/application.log", "..", ""} {
		_, err = svc.Path(name)
		assert.ErrorIs(t, err, ErrInvalidLogName, name)
	}
}

func TestLogService_Errors(t *testing.T) {
	svc, dir := newLogFixture(t)

	e, err := svc.Errors(1)
	require.NoError(t, err)
	assert.Equal(t, 2, e.TotalErrors)
	assert.Equal(t, 1, e.DisplayedErrors)
	assert.Equal(t, "2024-06-30 11:00:00 - ERROR - Timeout\n", e.Errors)

	require.NoError(t, os.Remove(filepath.Join(dir, logger.ErrorsLog)))
	e, err = svc.Errors(50)
	require.NoError(t, err)
	assert.Zero(t, e.TotalErrors)
	assert.Empty(t, e.Errors)
}

func TestLogService_Tail(t *testing.T) {
	svc, _ := newLogFixture(t)

	tail, err := svc.Tail(logger.ApplicationLog, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, tail.TotalLines)
	assert.Equal(t, 2, tail.TailLines)
	assert.True(t, strings.HasPrefix(tail.Content, "2024-06-30 10:00:03"))
}

func TestLogService_Clear(t *testing.T) {
	svc, dir := newLogFixture(t)
	original, err := os.ReadFile(filepath.Join(dir, logger.ApplicationLog))
	require.NoError(t, err)

	res, err := svc.Clear(logger.ApplicationLog)
	require.NoError(t, err)
	assert.Equal(t, "application.log.backup.20240630_123045", res.Backup)
	assert.Equal(t, filepath.Join(dir, res.Backup), res.BackupPath)

	backup, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, original, backup)

	cleared, err := os.ReadFile(filepath.Join(dir, logger.ApplicationLog))
	require.NoError(t, err)
	assert.Equal(t, "# Log cleared at 2024-06-30T12:30:45Z\n# Backup saved as: application.log.backup.20240630_123045\n\n", string(cleared))

	logs, err := svc.List()
	require.NoError(t, err)
	assert.Len(t, logs, 2, "backups are not listed as logs")
}

func TestLogService_Stats(t *testing.T) {
	svc, dir := newLogFixture(t)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLogs)
	assert.Equal(t, 2, stats.TotalErrors)
	assert.Equal(t, dir, stats.LogDirectory)
	require.NotNil(t, stats.LatestModification)

	info, err := os.Stat(filepath.Join(dir, logger.ApplicationLog))
	require.NoError(t, err)
	assert.True(t, stats.LatestModification.Equal(info.ModTime()))
}
