package portals

import (
	"os"
	"reflect"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// LogFileConfig configures the rotating file sink. An empty Path disables it.
type LogFileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func DefaultLogFileConfig(path string) LogFileConfig {
	return LogFileConfig{
		Path:       path,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// ZapLogger adapts a zap sugared logger to the engine Logger interface.
type ZapLogger struct {
	level zap.AtomicLevel
	base  zapcore.Level
	log   *zap.Logger
	sugar *zap.SugaredLogger
}

// NewZapLogger builds a logger writing to stdout and, optionally, to a
// lumberjack-rotated file.
func NewZapLogger(prefix string, level string, file LogFileConfig, console bool) *ZapLogger {
	base := ParseLogLevel(level)
	atom := zap.NewAtomicLevelAt(base)

	var cores []zapcore.Core
	if console {
		encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:          "time",
			LevelKey:         "level",
			NameKey:          "logger",
			MessageKey:       "msg",
			EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05.000"),
			EncodeLevel:      zapcore.CapitalColorLevelEncoder,
			EncodeName:       zapcore.FullNameEncoder,
			ConsoleSeparator: " ",
		})
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), atom))
	}
	if file.Path != "" {
		writer := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
			LocalTime:  true,
		}
		encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
			TimeKey:          "time",
			LevelKey:         "level",
			NameKey:          "logger",
			MessageKey:       "msg",
			EncodeTime:       zapcore.ISO8601TimeEncoder,
			EncodeLevel:      zapcore.CapitalLevelEncoder,
			EncodeName:       zapcore.FullNameEncoder,
			ConsoleSeparator: " ",
		})
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), atom))
	}

	return newZapLoggerFromCore(prefix, zapcore.NewTee(cores...), atom, base)
}

// NewZapLoggerWithCore wraps an existing core, typically an observer in tests.
// The core's own level still applies on top of SetDebug.
func NewZapLoggerWithCore(prefix string, core zapcore.Core) *ZapLogger {
	atom := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return newZapLoggerFromCore(prefix, core, atom, zapcore.InfoLevel)
}

func newZapLoggerFromCore(prefix string, core zapcore.Core, atom zap.AtomicLevel, base zapcore.Level) *ZapLogger {
	log := zap.New(&levelGate{Core: core, level: atom})
	if prefix != "" {
		log = log.Named(prefix)
	}
	return &ZapLogger{
		level: atom,
		base:  base,
		log:   log,
		sugar: log.Sugar(),
	}
}

func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) DebugEnabled() bool {
	return l.level.Enabled(zapcore.DebugLevel)
}

// SetDebug(false) falls back to the level the logger was built with, or Info
// when that was Debug.
func (l *ZapLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.SetLevel(zapcore.DebugLevel)
		return
	}
	if l.base == zapcore.DebugLevel {
		l.level.SetLevel(zapcore.InfoLevel)
		return
	}
	l.level.SetLevel(l.base)
}

func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

func (l *ZapLogger) Sync() {
	_ = l.log.Sync()
}

// levelGate filters entries through an atomic level before the wrapped core
// sees them.
type levelGate struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (g *levelGate) Enabled(lvl zapcore.Level) bool {
	return g.level.Enabled(lvl) && g.Core.Enabled(lvl)
}

func (g *levelGate) With(fields []zapcore.Field) zapcore.Core {
	return &levelGate{Core: g.Core.With(fields), level: g.level}
}

func (g *levelGate) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !g.level.Enabled(entry.Level) {
		return checked
	}
	return g.Core.Check(entry, checked)
}

// LoggingModule installs a zap logger as a resource.
type LoggingModule struct {
	Prefix  string
	Level   string
	LogFile string
	// Quiet disables console output; the file sink is unaffected.
	Quiet bool
}

func (m LoggingModule) Install(app *App, cmd *Commands) {
	file := LogFileConfig{}
	if m.LogFile != "" {
		file = DefaultLogFileConfig(m.LogFile)
	}
	app.addResources(NewZapLogger(m.Prefix, m.Level, file, !m.Quiet))
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// Logger returns the installed Logger resource, or a no-op logger.
// Never returns nil.
func (app *App) Logger() Logger {
	if app == nil {
		return NewNopLogger()
	}
	if l, ok := app.resources[reflect.TypeOf(ZapLogger{})]; ok {
		return l.(Logger)
	}
	for _, r := range app.resources {
		if l, ok := r.(Logger); ok {
			return l
		}
	}
	return NewNopLogger()
}
