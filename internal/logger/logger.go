package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var sugar *zap.SugaredLogger

func init() {
	// Usable before Init for early startup errors.
	l, _ := zap.NewProduction()
	sugar = l.Sugar()
}

// Init configures the process-wide logger. When file is non-empty, output
// additionally goes to a size-rotated log file.
func Init(level, file string) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), parseLevel(level)),
	}

	if file != "" {
		rotated := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rotated), parseLevel(level)))
	}

	sugar = zap.New(zapcore.NewTee(cores...)).Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
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

func Debugf(format string, args ...interface{}) { sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { sugar.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { sugar.Fatalf(format, args...) }

// Sync flushes buffered log entries. Call on shutdown.
func Sync() { _ = sugar.Sync() }
