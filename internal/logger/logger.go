package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// writerCloser is the rotating file opened by NewFromEnv, closed by Sync.
var (
	writerCloser   io.Closer
	writerCloserMu sync.Mutex
)

// Logger is a logrus entry that carries service and context fields.
type Logger struct {
	*logrus.Entry
}

// Config configures a Logger that writes to a single destination.
// Level is one of debug, info, warn or error; Format is json or text.
type Config struct {
	Level       string
	Format      string
	Output      io.Writer
	ServiceName string
}

// DefaultConfig logs JSON at info level to stdout.
func DefaultConfig() *Config {
	return &Config{
		Level:       "info",
		Format:      "json",
		Output:      os.Stdout,
		ServiceName: "jobalerts",
	}
}

// New builds a Logger from cfg; nil means DefaultConfig.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		return build(cfg.Level, cfg.Format, cfg.ServiceName, os.Stdout)
	}
	return build(cfg.Level, cfg.Format, cfg.ServiceName, cfg.Output)
}

// NewFromEnv builds a Logger from envCfg; nil reads the environment.
func NewFromEnv(envCfg *EnvConfig) *Logger {
	if envCfg == nil {
		envCfg = LoadFromEnv()
	}
	return build(envCfg.Level, envCfg.Format, envCfg.ServiceName, envOutput(envCfg))
}

// envOutput picks stdout, a rotating file, or both.
func envOutput(c *EnvConfig) io.Writer {
	if c.Output != nil {
		return c.Output
	}
	if c.local() || c.LogFile == "" {
		return os.Stdout
	}

	file := &lumberjack.Logger{
		Filename:   c.LogFile,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   c.Compress,
	}
	writerCloserMu.Lock()
	writerCloser = file
	writerCloserMu.Unlock()

	if c.LogFileOnly {
		return file
	}
	return io.MultiWriter(os.Stdout, file)
}

// NewDefault creates a new Logger using environment variable configuration.
func NewDefault() *Logger {
	return NewFromEnv(nil)
}

func build(levelName, format, service string, out io.Writer) *Logger {
	log := logrus.New()
	log.SetOutput(out)

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetReportCaller(true)
	log.SetFormatter(newFormatter(format))

	return &Logger{Entry: log.WithField("service", service)}
}

func newFormatter(format string) logrus.Formatter {
	if strings.ToLower(format) == "text" {
		return &logrus.TextFormatter{
			FullTimestamp:    true,
			TimestampFormat:  timestampFormat,
			CallerPrettyfier: callerPrettyfier,
		}
	}
	return &logrus.JSONFormatter{
		TimestampFormat: timestampFormat,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: callerPrettyfier,
	}
}

// Sync closes the rotating log file, if any. Call it on the way out of main.
func Sync() error {
	writerCloserMu.Lock()
	defer writerCloserMu.Unlock()
	if writerCloser == nil {
		return nil
	}
	err := writerCloser.Close()
	writerCloser = nil
	return err
}

// WithFields returns a derived Logger; l is unchanged.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{Entry: l.Entry.WithFields(logrus.Fields(fields))}
}

// WithField returns a new Logger with a single additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{Entry: l.Entry.WithField(key, value)}
}

// WithError returns a new Logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Entry: l.Entry.WithError(err)}
}

// callerPrettyfier shortens caller info to pkg.Func and file:line
func callerPrettyfier(frame *runtime.Frame) (function string, file string) {
	funcName := frame.Function
	if idx := strings.LastIndex(funcName, "/"); idx != -1 {
		funcName = funcName[idx+1:]
	}
	return funcName, filepath.Base(frame.File) + ":" + strconv.Itoa(frame.Line)
}

// CtxDebug logs at Debug level through the logger carried by ctx.
func CtxDebug(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Debugf(format, args...)
}

func CtxInfo(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Infof(format, args...)
}

func CtxWarn(ctx context.Context, format string, args ...interface{}) {
	FromContext(ctx).Warnf(format, args...)
}
