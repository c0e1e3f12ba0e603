package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	Name = "app_logger"

	ApplicationLog = "application.log"
	ErrorsLog      = "errors.log"

	maxSizeMB  = 10
	maxBackups = 10
)

type Options struct {
	Dir     string
	Level   string
	Console bool
}

// New builds the application logger: every entry at Level or above goes to
// application.log and the console, errors also go to errors.log. Both files
// rotate at 10 MB keeping 10 backups. The returned func flushes and closes the
// files.
func New(opts Options) (*zap.Logger, func(), error) {
	if opts.Dir == "" {
		opts.Dir = "logs"
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	appFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, ApplicationLog),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	errFile := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, ErrorsLog),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}

	encoder := newKVEncoder(encoderConfig())
	atLeast := func(min zapcore.Level) zap.LevelEnablerFunc {
		return func(l zapcore.Level) bool { return l >= min }
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(appFile), atLeast(level)),
		zapcore.NewCore(encoder, zapcore.AddSync(errFile), atLeast(zapcore.ErrorLevel)),
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), atLeast(level)))
	}

	lggr := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Named(Name)

	cleanup := func() {
		_ = lggr.Sync()
		_ = appFile.Close()
		_ = errFile.Close()
	}
	return lggr, cleanup, nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      paddedLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " | ",
	}
}

// kvEncoder writes the console layout with structured fields appended to
// the message as "| k=v k=v" instead of a trailing JSON object.
type kvEncoder struct {
	*zapcore.MapObjectEncoder
	console zapcore.Encoder
}

func newKVEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &kvEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		console:          zapcore.NewConsoleEncoder(cfg),
	}
}

func (e *kvEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &kvEncoder{MapObjectEncoder: clone, console: e.console}
}

func (e *kvEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	m := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		m.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(m)
	}
	if kv := formatFields(m.Fields); kv != "" {
		ent.Message += " | " + kv
	}
	return e.console.EncodeEntry(ent, nil)
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

func paddedLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(fmt.Sprintf("%-8s", l.CapitalString()))
}

func LogDatabaseConnection(lggr *zap.Logger, success bool, details map[string]any) {
	if success {
		lggr.Info("Conexión a BD exitosa")
		return
	}
	lggr.Error("Error de conexión a BD", zap.Any("details", details))
}

// LogExcelProcessing logs a job step; FAILED and ERROR statuses are logged as
// errors and WARNING as a warning.
func LogExcelProcessing(lggr *zap.Logger, jobID, status, message string, fields ...zap.Field) {
	msg := fmt.Sprintf("[Job: %s] %s - %s", jobID, status, message)
	switch status {
	case "FAILED", "ERROR":
		lggr.Error(msg, fields...)
	case "WARNING":
		lggr.Warn(msg, fields...)
	default:
		lggr.Info(msg, fields...)
	}
}

func LogTransaction(lggr *zap.Logger, action, details string, success bool) {
	if success {
		lggr.Info(fmt.Sprintf("Transacción: %s - %s", action, details))
		return
	}
	lggr.Error(fmt.Sprintf("Transacción FALLIDA: %s - %s", action, details))
}

func LogValidation(lggr *zap.Logger, validationType string, passed bool, details string) {
	if passed {
		lggr.Info(fmt.Sprintf("Validación [%s] PASÓ: %s", validationType, details))
		return
	}
	lggr.Warn(fmt.Sprintf("Validación [%s] FALLÓ: %s", validationType, details))
}
