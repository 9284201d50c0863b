package logger

import (
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/irrigatectl/internal/errors"
	"github.com/rs/zerolog"
)

// Logger defines the interface for logging operations.
type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	ErrorWithCode(err error) *LogEvent
	WarnWithCode(err error) *LogEvent
	With(component string) Logger
}

type LogLevel int8

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// ParseLevel maps a configured level name to a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}
}

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

type zlogger struct {
	log zerolog.Logger
}

// Init sets the global level and returns the console logger. Services get no timestamps since
// journald adds its own.
func Init(level LogLevel, isService bool) Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	SetLogLevel(level)

	return &zlogger{log: zerolog.New(output).With().Timestamp().Logger()}
}

// New returns a JSON logger writing to w. Used where console formatting
// gets in the way, such as tests asserting on output.
func New(w io.Writer) Logger {
	return &zlogger{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zlogger{log: zerolog.Nop()}
}

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerolog.Level(level))
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

func (l *zlogger) Debug() *LogEvent {
	return &LogEvent{l.log.Debug()}
}

func (l *zlogger) Info() *LogEvent {
	return &LogEvent{l.log.Info()}
}

func (l *zlogger) Warn() *LogEvent {
	return &LogEvent{l.log.Warn()}
}

func (l *zlogger) Error() *LogEvent {
	return &LogEvent{l.log.Error()}
}

// ErrorWithCode logs err at error level tagged with its error code.
func (l *zlogger) ErrorWithCode(err error) *LogEvent {
	return withCode(l.log.Error(), err)
}

// WarnWithCode is ErrorWithCode for failures that are recovered from.
func (l *zlogger) WarnWithCode(err error) *LogEvent {
	return withCode(l.log.Warn(), err)
}

func withCode(ev *zerolog.Event, err error) *LogEvent {
	return &LogEvent{ev.
		Str("error_code", string(errors.CodeOf(err))).
		Err(err)}
}

// With returns a child logger tagged with a component name.
func (l *zlogger) With(component string) Logger {
	return &zlogger{log: l.log.With().Str("component", component).Logger()}
}
