// Package logger provides structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stderr" (default), "stdout", or "file"
	Level  string // "debug", "info", "warn" (default), "error"
	File   string // Log file path when Output is "file"
}

// Init initializes the global zerolog logger and returns a function that
// releases the log file, if any.
//
// Console output goes to stderr by default so log lines do not interleave
// with the prompt on stdout.
func Init(cfg Config) (func() error, error) {
	level := parseLevel(cfg.Level)
	output := strings.ToLower(cfg.Output)

	var writer io.Writer
	closer := func() error { return nil }
	switch output {
	case "stderr", "":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		if cfg.File == "" {
			return nil, errors.New("log file path is required for file output")
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open log file")
		}
		writer = f
		closer = f.Close
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"
	zerolog.CallerMarshalFunc = shortCaller

	zlog.Logger = New(writer, output == "stderr" || output == "stdout" || output == "", level)
	zerolog.DefaultContextLogger = &zlog.Logger

	return closer, nil
}

// New builds a logger writing to w. Console loggers are colored and human
// readable; others emit JSON. Caller info is added at debug level.
func New(w io.Writer, console bool, level zerolog.Level) zerolog.Logger {
	var ctx zerolog.Context
	if console {
		cw := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.TimeOnly,
		}
		if level == zerolog.DebugLevel {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i interface{}) string {
				s, _ := i.(string)
				return "(" + s + ")"
			}
		}
		ctx = zerolog.New(cw).With().Timestamp()
	} else {
		ctx = zerolog.New(w).With().Timestamp()
	}
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger().Level(level)
}

// shortCaller renders the caller as dir/file.go:line.
func shortCaller(_ uintptr, file string, line int) string {
	parts := strings.Split(file, string(filepath.Separator))
	if len(parts) > 1 {
		return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning", "":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
