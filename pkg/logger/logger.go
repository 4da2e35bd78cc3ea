package logger

import (
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog"
)

const (
	permission = 0664
)

// Logger is the structured logger every component writes to.
// args are alternating key-value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

type LogBuild struct {
	writer io.Writer
	path   string
	level  zerolog.Level
	fields map[string]any
}

type LogData struct {
	LogFile *os.File
	Logger  zerolog.Logger
}

var _ Logger = (*LogData)(nil)

func New() *LogBuild {
	return &LogBuild{level: zerolog.InfoLevel}
}

func (build *LogBuild) FromPath(path string) *LogBuild {
	build.path = path
	return build
}

func (build *LogBuild) FromBuffer(w io.Writer) *LogBuild {
	build.writer = w
	return build
}

// Level sets the minimum level by name ("debug", "info", ...).
// Unknown names leave the current level untouched.
func (build *LogBuild) Level(name string) *LogBuild {
	if lvl, err := zerolog.ParseLevel(name); err == nil && lvl != zerolog.NoLevel {
		build.level = lvl
	}
	return build
}

// With attaches a field to every line written by the built logger.
func (build *LogBuild) With(key string, value any) *LogBuild {
	if build.fields == nil {
		build.fields = make(map[string]any)
	}
	build.fields[key] = value
	return build
}

func (build *LogBuild) Make() (logData *LogData, err error) {
	logData = new(LogData)
	var writer io.Writer = os.Stdout
	if build.writer != nil {
		writer = build.writer
	}
	if build.path != "" {
		logData.LogFile, err = os.OpenFile(build.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		writer = zerolog.SyncWriter(logData.LogFile)
	}
	ctx := zerolog.New(writer).Level(build.level).With().Timestamp()
	if len(build.fields) > 0 {
		ctx = ctx.Fields(build.fields)
	}
	logData.Logger = ctx.Logger()
	return
}

// Close releases the log file, if any.
func (l *LogData) Close() error {
	if l.LogFile == nil {
		return nil
	}
	return l.LogFile.Close()
}

// Child returns a logger carrying the extra key-value pairs on every line.
func (l *LogData) Child(args ...any) *LogData {
	return &LogData{Logger: l.Logger.With().Fields(args).Logger()}
}

func (l *LogData) Error(msg string, args ...any) {
	l.Logger.Error().Fields(args).Msg(msg)
}

func (l *LogData) Warn(msg string, args ...any) {
	l.Logger.Warn().Fields(args).Msg(msg)
}

func (l *LogData) Info(msg string, args ...any) {
	l.Logger.Info().Fields(args).Msg(msg)
}

func (l *LogData) Debug(msg string, args ...any) {
	l.Logger.Debug().Fields(args).Msg(msg)
}

type nop struct{}

func (nop) Error(string, ...any) {}
func (nop) Warn(string, ...any)  {}
func (nop) Info(string, ...any)  {}
func (nop) Debug(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nop{}
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return nop{}
	}
	return l
}

type withFields struct {
	parent Logger
	fields []any
}

func (w withFields) Error(msg string, args ...any) { w.parent.Error(msg, slices.Concat(w.fields, args)...) }
func (w withFields) Warn(msg string, args ...any)  { w.parent.Warn(msg, slices.Concat(w.fields, args)...) }
func (w withFields) Info(msg string, args ...any)  { w.parent.Info(msg, slices.Concat(w.fields, args)...) }
func (w withFields) Debug(msg string, args ...any) { w.parent.Debug(msg, slices.Concat(w.fields, args)...) }

// With returns a Logger that adds args to every line written through l.
func With(l Logger, args ...any) Logger {
	switch l := l.(type) {
	case nil, nop:
		return nop{}
	case *LogData:
		return l.Child(args...)
	default:
		return withFields{parent: l, fields: slices.Clone(args)}
	}
}
