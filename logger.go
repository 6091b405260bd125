// Copyright (C) 2025 authkit authors. All rights reserved.
//
// authkit is licensed under the Apache License Version 2.0.

package authkit

import (
	"go.uber.org/zap"
)

// Logger is the logging interface used throughout the package. Any
// implementation with printf-style leveled methods satisfies it.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

// zapLogger adapts a zap sugared logger to Logger.
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Debug(args ...interface{})                 { z.sugar.Debug(args...) }
func (z *zapLogger) Debugf(format string, args ...interface{}) { z.sugar.Debugf(format, args...) }
func (z *zapLogger) Info(args ...interface{})                  { z.sugar.Info(args...) }
func (z *zapLogger) Infof(format string, args ...interface{})  { z.sugar.Infof(format, args...) }
func (z *zapLogger) Warn(args ...interface{})                  { z.sugar.Warn(args...) }
func (z *zapLogger) Warnf(format string, args ...interface{})  { z.sugar.Warnf(format, args...) }
func (z *zapLogger) Error(args ...interface{})                 { z.sugar.Error(args...) }
func (z *zapLogger) Errorf(format string, args ...interface{}) { z.sugar.Errorf(format, args...) }

// GetDefaultLogger returns a zap-backed logger suitable for production.
// It falls back to a development logger if production construction fails.
func GetDefaultLogger() Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l, _ = zap.NewDevelopment()
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}
