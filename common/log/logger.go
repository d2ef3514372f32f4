package log

import (
	"go.uber.org/zap"

	"github.com/qiubz/rethinkdb/common/log/tag"
)

// Logger is the structured logging interface used across the repo. Messages
// are fixed strings; everything variable travels in typed tags.
type Logger interface {
	Debug(msg string, tags ...tag.Tag)
	Info(msg string, tags ...tag.Tag)
	Warn(msg string, tags ...tag.Tag)
	Error(msg string, tags ...tag.Tag)
	Fatal(msg string, tags ...tag.Tag)

	// WithTags returns a child logger that carries the given tags on every
	// line it emits.
	WithTags(tags ...tag.Tag) Logger
}

type loggerImpl struct {
	zapLogger *zap.Logger
}

// NewLogger wraps a zap logger in the Logger interface.
func NewLogger(zapLogger *zap.Logger) Logger {
	return &loggerImpl{zapLogger: zapLogger}
}

// NewNoop returns a logger that discards everything.
func NewNoop() Logger {
	return &loggerImpl{zapLogger: zap.NewNop()}
}

func (l *loggerImpl) Debug(msg string, tags ...tag.Tag) {
	l.zapLogger.Debug(msg, fields(tags)...)
}

func (l *loggerImpl) Info(msg string, tags ...tag.Tag) {
	l.zapLogger.Info(msg, fields(tags)...)
}

func (l *loggerImpl) Warn(msg string, tags ...tag.Tag) {
	l.zapLogger.Warn(msg, fields(tags)...)
}

func (l *loggerImpl) Error(msg string, tags ...tag.Tag) {
	l.zapLogger.Error(msg, fields(tags)...)
}

func (l *loggerImpl) Fatal(msg string, tags ...tag.Tag) {
	l.zapLogger.Fatal(msg, fields(tags)...)
}

func (l *loggerImpl) WithTags(tags ...tag.Tag) Logger {
	return &loggerImpl{zapLogger: l.zapLogger.With(fields(tags)...)}
}

func fields(tags []tag.Tag) []zap.Field {
	fs := make([]zap.Field, 0, len(tags))
	for _, t := range tags {
		fs = append(fs, t.Field())
	}
	return fs
}
