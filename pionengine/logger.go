// Copyright (c) 2025, Grigory Buteyko aka Hrissan
// Licensed under the MIT License. See LICENSE for details.

package pionengine

import (
	"github.com/pion/logging"
	log "github.com/sirupsen/logrus"
)

// logrusLogger implements logging.LeveledLogger over logrus entry.
type logrusLogger struct {
	entry *log.Entry
}

func (l *logrusLogger) Trace(msg string)                          { l.entry.Trace(msg) }
func (l *logrusLogger) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }
func (l *logrusLogger) Debug(msg string)                          { l.entry.Debug(msg) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *logrusLogger) Info(msg string)                           { l.entry.Info(msg) }
func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warn(msg string)                           { l.entry.Warn(msg) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Error(msg string)                          { l.entry.Error(msg) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

type logrusFactory struct {
	logger *log.Logger
}

// NewLogrusFactory returns pion logger factory writing to logger with "scope" field.
func NewLogrusFactory(logger *log.Logger) logging.LoggerFactory {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &logrusFactory{logger: logger}
}

func (f *logrusFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logrusLogger{entry: f.logger.WithField("scope", scope)}
}
