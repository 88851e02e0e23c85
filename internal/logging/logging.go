package logging

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrParseStrToLevel = errors.New("string can't be parsed to level, use: `error`, `info`, `debug`")
)

type Level int

const (
	ERR Level = iota
	INF
	DBG
)

func (l Level) String() string { return [3]string{"Error", "Info", "Debug"}[l] }

// Logger is a small leveled logger. The zero value is not usable; use New or Discard.
type Logger struct {
	err, inf, dbg *log.Logger
	lvl           Level
	out           io.Writer
	closer        io.Closer
}

type Option func(l *Logger)

// WithLevel sets the most verbose level that is written.
func WithLevel(level Level) Option { return func(l *Logger) { l.lvl = level } }

// WithOutput writes every level to w.
func WithOutput(w io.Writer) Option { return func(l *Logger) { l.out = w } }

// WithFile writes to a size-rotated log file.
func WithFile(path string, maxSizeMB, maxBackups, maxAgeDays int) Option {
	return func(l *Logger) {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		l.out = lj
		l.closer = lj
	}
}

func New(opts ...Option) *Logger {
	l := &Logger{lvl: INF, out: os.Stderr}
	for _, opt := range opts {
		opt(l)
	}
	l.err = log.New(l.out, "ERR: ", log.Ldate|log.Ltime)
	l.inf = log.New(l.out, "INF: ", log.Ldate|log.Ltime)
	l.dbg = log.New(l.out, "DBG: ", log.Ldate|log.Ltime)
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(WithOutput(io.Discard), WithLevel(ERR))
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if l.lvl < DBG {
		return
	}
	l.dbg.Printf(format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	if l.lvl < INF {
		return
	}
	l.inf.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.err.Printf(format, v...)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func ParseLevel(lvl string) (Level, error) {
	levels := map[string]Level{
		strings.ToLower(ERR.String()): ERR,
		strings.ToLower(INF.String()): INF,
		strings.ToLower(DBG.String()): DBG,
	}
	level, ok := levels[strings.ToLower(lvl)]
	if !ok {
		return INF, fmt.Errorf("%s %w", lvl, ErrParseStrToLevel)
	}
	return level, nil
}
