package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"
)

type Logger interface {
	SetEnabled(enabled bool)
	SetLevel(level string)
	Debug(msg string, args ...any)
	Debugj(msg string, data json.RawMessage)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

var levels = []string{"debug", "info", "error"}

//--------------------------------------------------------------------------------------------------

var _ Logger = (*noOpLogger)(nil)

type noOpLogger struct{}

func NoOp() Logger {
	return &noOpLogger{}
}

func (n *noOpLogger) SetEnabled(_ bool)                  {}
func (n *noOpLogger) SetLevel(_ string)                  {}
func (n *noOpLogger) Debug(_ string, _ ...any)           {}
func (n *noOpLogger) Debugj(_ string, _ json.RawMessage) {}
func (n *noOpLogger) Info(_ string, _ ...any)            {}
func (n *noOpLogger) Error(_ string, _ ...any)           {}

//--------------------------------------------------------------------------------------------------

var _ Logger = (*logger)(nil)

type syncer interface {
	Sync() error
}

type logger struct {
	mux     sync.RWMutex
	enabled bool
	level   string
	out     io.Writer
}

// New returns a logger writing one JSON object per line to out. It starts enabled at level
// "error"; *os.File outputs are synced after every line.
func New(out io.Writer) Logger {
	return &logger{
		enabled: true,
		level:   "error",
		out:     out,
	}
}

func (l *logger) SetEnabled(enabled bool) {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.enabled = enabled
}

func (l *logger) SetLevel(level string) {
	if !slices.Contains(levels, level) {
		panic(fmt.Sprintf("invalid log level: %s", level))
	}
	l.mux.Lock()
	defer l.mux.Unlock()
	l.level = level
}

func (l *logger) Debug(msg string, args ...any) {
	l.log("debug", fmt.Sprintf(msg, args...), nil)
}

func (l *logger) Debugj(msg string, data json.RawMessage) {
	if !json.Valid(data) {
		data = nil
	}
	l.log("debug", msg, data)
}

func (l *logger) Info(msg string, args ...any) {
	l.log("info", fmt.Sprintf(msg, args...), nil)
}

func (l *logger) Error(msg string, args ...any) {
	l.log("error", fmt.Sprintf(msg, args...), nil)
}

type logLineData struct {
	Ts      string          `json:"ts"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (l *logger) log(level string, msg string, data json.RawMessage) {
	l.mux.RLock()
	_enabled, _level := l.enabled, l.level
	l.mux.RUnlock()
	if !_enabled || l.out == nil {
		return
	}
	logLevelIdx, loggerLevelIdx := slices.Index(levels, level), slices.Index(levels, _level)
	if logLevelIdx < loggerLevelIdx {
		return
	}
	logLineDataBytes, err := json.Marshal(logLineData{
		Ts:      time.Now().Format(time.RFC3339),
		Level:   level,
		Message: msg,
		Data:    data,
	})
	if err != nil {
		panic(fmt.Sprintf("error marshalling log line: %v", err))
	}
	l.mux.Lock()
	defer l.mux.Unlock()
	if _, err := l.out.Write(append(logLineDataBytes, '\n')); err != nil {
		panic(fmt.Sprintf("error writing log line: %v", err))
	}
	if s, ok := l.out.(syncer); ok {
		if err := s.Sync(); err != nil {
			panic(fmt.Sprintf("error syncing log file: %v", err))
		}
	}
}
