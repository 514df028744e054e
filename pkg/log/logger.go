// Package log holds the process-wide zerolog logger used by every filehost package.
package log

import (
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// The first stack line "goroutine 123 [running]:" fits easily.
	stackBufSize = 32
	// Shortest usable prefix: "goroutine N ".
	minStackLen = 12
	// len("goroutine ").
	goroutinePrefixLen = 10

	consoleTimeFormat = "15:04:05"
	productionEnv     = "production"
)

var (
	Logger    zerolog.Logger
	stackBufs = sync.Pool{New: func() any { return make([]byte, stackBufSize) }}
)

func init() {
	Logger = New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}, zerolog.InfoLevel)
	log.Logger = Logger
}

// goroutineID returns the id of the calling goroutine or "unknown".
func goroutineID() string {
	buf, ok := stackBufs.Get().([]byte)
	if !ok {
		return "unknown"
	}
	defer stackBufs.Put(buf) //nolint:staticcheck // small fixed-size slice

	n := runtime.Stack(buf, false)
	if n < minStackLen {
		return "unknown"
	}

	end := goroutinePrefixLen
	for end < n && buf[end] >= '0' && buf[end] <= '9' {
		end++
	}
	if end == goroutinePrefixLen {
		return "unknown"
	}
	return string(buf[goroutinePrefixLen:end])
}

// New builds a timestamped logger writing to w that tags every event with its goroutine id.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
			e.Str("goid", goroutineID())
		}))
}

// Configure replaces the global logger according to the runtime environment.
// The production environment logs JSON lines, everything else uses the console writer.
func Configure(env string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: consoleTimeFormat}
	if env == productionEnv {
		out = os.Stderr
	}

	Logger = New(out, level).With().Str("env", env).Logger()
	log.Logger = Logger
}

// SetDebugMode switches the logger to debug level.
func SetDebugMode() {
	Logger = Logger.Level(zerolog.DebugLevel)
	log.Logger = Logger
}

func Info() *zerolog.Event {
	return Logger.Info()
}

func Error() *zerolog.Event {
	return Logger.Error()
}

func Warn() *zerolog.Event {
	return Logger.Warn()
}

func Debug() *zerolog.Event {
	return Logger.Debug()
}

// Fatal logs and exits the process.
func Fatal() *zerolog.Event {
	return Logger.Fatal()
}
