package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Loggers split by concern. They are no-ops until InitLoggers runs, so
// packages and tests can log unconditionally.
var (
	ErrorLogger    = zap.NewNop()
	AuditLogger    = zap.NewNop()
	RequestLogger  = zap.NewNop()
	SecurityLogger = zap.NewNop()
	SystemLogger   = zap.NewNop()
)

func newLogger(dir, name string, level zapcore.Level) (*zap.Logger, error) {
	ws := zapcore.AddSync(os.Stdout)
	if dir != "" {
		file, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		ws = zapcore.AddSync(file)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		ws,
		level,
	)
	return zap.New(core).With(zap.String("logger", name)), nil
}

// InitLoggers builds the loggers. With an empty dir everything goes to
// stdout; otherwise each concern gets its own file under dir. level is the
// floor for the audit, request and system loggers.
func InitLoggers(dir, level string) error {
	base, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	specs := []struct {
		target **zap.Logger
		name   string
		level  zapcore.Level
	}{
		{&ErrorLogger, "errors", zapcore.ErrorLevel},
		{&AuditLogger, "audit", base},
		{&RequestLogger, "request", base},
		{&SecurityLogger, "security", zapcore.WarnLevel},
		{&SystemLogger, "system", base},
	}
	for _, s := range specs {
		l, err := newLogger(dir, s.name, s.level)
		if err != nil {
			return fmt.Errorf("create %s logger: %w", s.name, err)
		}
		*s.target = l
	}
	return nil
}

func SyncLoggers() {
	_ = ErrorLogger.Sync()
	_ = AuditLogger.Sync()
	_ = RequestLogger.Sync()
	_ = SecurityLogger.Sync()
	_ = SystemLogger.Sync()
}
