package services

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"excelsql/internal/logger"
	"excelsql/internal/models"
)

var (
	ErrLogNotFound    = errors.New("log no encontrado")
	ErrNotALogFile    = errors.New("solo se permiten archivos .log")
	ErrInvalidLogName = errors.New("nombre de log inválido")
)

// LogService exposes the files of the log directory.
type LogService struct {
	dir  string
	lggr *zap.Logger
	now  func() time.Time
}

func NewLogService(dir string, lggr *zap.Logger) *LogService {
	return &LogService{dir: dir, lggr: lggr, now: time.Now}
}

func (s *LogService) Dir() string {
	if abs, err := filepath.Abs(s.dir); err == nil {
		return abs
	}
	return s.dir
}

// resolve maps a log name to its path. Existence is checked before the
// extension, so unknown names report not found.
func (s *LogService) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidLogName
	}
	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrLogNotFound
	}
	if !strings.HasSuffix(name, ".log") {
		s.lggr.Warn("Intento de acceso a archivo no log", zap.String("log_name", name))
		return "", ErrNotALogFile
	}
	return path, nil
}

// Path returns the on-disk path of a downloadable log.
func (s *LogService) Path(name string) (string, error) {
	return s.resolve(name)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (s *LogService) logFiles() ([]os.FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var files []os.FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	return files, nil
}

// List returns the .log files, most recently modified first.
func (s *LogService) List() ([]models.LogFileInfo, error) {
	files, err := s.logFiles()
	if err != nil {
		return nil, fmt.Errorf("error listando logs: %w", err)
	}

	logs := make([]models.LogFileInfo, 0, len(files))
	for _, f := range files {
		logs = append(logs, models.LogFileInfo{
			Name:     f.Name(),
			SizeKB:   roundTo(float64(f.Size())/1024, 2),
			SizeMB:   roundTo(float64(f.Size())/(1024*1024), 2),
			Modified: f.ModTime(),
		})
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Modified.After(logs[j].Modified) })

	s.lggr.Info(fmt.Sprintf("Listado de %d archivos de log obtenido.", len(logs)))
	return logs, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, strings.ToValidUTF8(line, "�"))
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func lastN(lines []string, n int) []string {
	if n < len(lines) {
		return lines[len(lines)-n:]
	}
	return lines
}

// View returns the last n lines of a log after the optional level and
// case-insensitive text filters.
func (s *LogService) View(name string, n int, search, level string) (*models.LogView, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	s.lggr.Info(fmt.Sprintf("Visualizando log '%s' con filtros - lines: %d, search: %s, level: %s", name, n, search, level))

	all, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("error leyendo log: %w", err)
	}

	filtered := all
	if level != "" {
		upper := strings.ToUpper(level)
		filtered = filterLines(filtered, func(l string) bool { return strings.Contains(l, upper) })
	}
	if search != "" {
		needle := strings.ToLower(search)
		filtered = filterLines(filtered, func(l string) bool { return strings.Contains(strings.ToLower(l), needle) })
	}
	shown := lastN(filtered, n)

	return &models.LogView{
		LogName:        name,
		TotalLines:     len(all),
		FilteredLines:  len(filtered),
		DisplayedLines: len(shown),
		Content:        strings.Join(shown, ""),
		Filters:        models.LogFilters{Search: search, Level: level, Lines: n},
	}, nil
}

func filterLines(lines []string, keep func(string) bool) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

// Errors returns the last n lines of the error log. A missing error log
// yields an empty result.
func (s *LogService) Errors(n int) (*models.LogErrors, error) {
	lines, err := readLines(filepath.Join(s.dir, logger.ErrorsLog))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &models.LogErrors{}, nil
		}
		return nil, fmt.Errorf("error leyendo errores: %w", err)
	}
	shown := lastN(lines, n)
	s.lggr.Info(fmt.Sprintf("Mostrando %d errores del log de errores.", len(shown)))
	return &models.LogErrors{
		TotalErrors:     len(lines),
		DisplayedErrors: len(shown),
		Errors:          strings.Join(shown, ""),
	}, nil
}

func (s *LogService) Tail(name string, n int) (*models.LogTail, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("error leyendo log: %w", err)
	}
	shown := lastN(lines, n)
	return &models.LogTail{
		LogName:    name,
		TotalLines: len(lines),
		TailLines:  len(shown),
		Content:    strings.Join(shown, ""),
	}, nil
}

// Clear copies the log to <name>.backup.<timestamp> and truncates it to a
// short header naming the backup.
func (s *LogService) Clear(name string) (*models.LogClearResult, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	backupName := fmt.Sprintf("%s.backup.%s", name, now.Format("20060102_150405"))
	backupPath := filepath.Join(s.dir, backupName)
	if err := copyFile(path, backupPath); err != nil {
		return nil, fmt.Errorf("error creando backup: %w", err)
	}
	s.lggr.Info(fmt.Sprintf("Backup del log '%s' creado como '%s' antes de limpieza.", name, backupName))

	header := fmt.Sprintf("# Log cleared at %s\n# Backup saved as: %s\n\n", now.Format(time.RFC3339), backupName)
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		return nil, fmt.Errorf("error limpiando log: %w", err)
	}
	s.lggr.Info(fmt.Sprintf("Log '%s' limpiado exitosamente.", name))

	return &models.LogClearResult{
		LogName:    name,
		Backup:     backupName,
		BackupPath: backupPath,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (s *LogService) Stats() (*models.LogStats, error) {
	files, err := s.logFiles()
	if err != nil {
		return nil, fmt.Errorf("error obteniendo estadísticas: %w", err)
	}

	stats := &models.LogStats{LogDirectory: s.Dir()}
	var total int64
	for _, f := range files {
		total += f.Size()
		stats.TotalLogs++
		mod := f.ModTime()
		if stats.LatestModification == nil || mod.After(*stats.LatestModification) {
			stats.LatestModification = &mod
		}
	}
	stats.TotalSizeKB = roundTo(float64(total)/1024, 2)
	stats.TotalSizeMB = roundTo(float64(total)/(1024*1024), 2)

	if lines, err := readLines(filepath.Join(s.dir, logger.ErrorsLog)); err == nil {
		stats.TotalErrors = len(lines)
	}
	s.lggr.Info(fmt.Sprintf("Estadísticas de logs obtenidas: %d archivos, %d errores.", stats.TotalLogs, stats.TotalErrors))
	return stats, nil
}
