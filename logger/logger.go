package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides leveled logging. Info, warning and debug go to one
// writer, errors to another.
type Logger struct {
	sugar *zap.SugaredLogger
	debug bool
}

func New(debug bool) *Logger {
	return NewWithWriters(os.Stdout, os.Stderr, debug)
}

// NewWithWriters routes info/warning/debug to out and errors to errOut.
func NewWithWriters(out, errOut io.Writer, debug bool) *Logger {
	minLevel := zapcore.InfoLevel
	if debug {
		minLevel = zapcore.DebugLevel
	}
	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= minLevel && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.ErrorLevel
	})

	enc := zapcore.NewConsoleEncoder(encoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), low),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(zapcore.AddSync(errOut)), high),
	)

	// skip the exported level method
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{sugar: z.Sugar(), debug: debug}
}

// Discard returns a logger that writes nowhere.
func Discard() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Debug is a no-op unless the logger was created in debug mode.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.sugar.Debugf(format, v...)
}

func (l *Logger) DebugEnabled() bool {
	return l.debug
}

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

// Println satisfies the recovery logger interface of gorilla/handlers.
func (l *Logger) Println(v ...interface{}) {
	l.sugar.Error(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
