// Package logger provides the concrete structured logger used across the
// orchestrator: a JSON-lines writer implementing core.Logger /
// core.ComponentAwareLogger, in the vein of the teacher framework's
// SimpleLogger/ProductionLogger but collapsed onto the single map-based
// field contract the rest of this module shares.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sergiobayona/lexi-commerce-sub001/core"
)

// Level is the minimum severity a JSONLogger will emit.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func parseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// correlationKey is the context key the message_id / session key is stashed
// under so *Context log calls can stitch it into the line automatically.
type correlationKey struct{}

// WithCorrelationID returns a context carrying an id (typically a
// message_id) that *Context logging calls will attach to every field set.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok
}

// JSONLogger writes one JSON object per line to an io.Writer (stdout by
// default), tagged with a component name and a fixed set of bound fields.
type JSONLogger struct {
	mu        sync.Mutex
	out       io.Writer
	level     Level
	component string
	fields    map[string]interface{}
}

// NewJSONLogger creates a logger at the level named by LOG_LEVEL (default
// INFO), writing to stdout.
func NewJSONLogger() *JSONLogger {
	return &JSONLogger{
		out:   os.Stdout,
		level: parseLevel(os.Getenv("LOG_LEVEL")),
	}
}

// NewDefaultLogger returns the process default: a JSONLogger at the level
// named by LOG_LEVEL (INFO when unset).
func NewDefaultLogger() core.Logger {
	return NewJSONLogger()
}

func (l *JSONLogger) clone() *JSONLogger {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return &JSONLogger{out: l.out, level: l.level, component: l.component, fields: fields}
}

// WithComponent returns a child logger tagging every line with component.
func (l *JSONLogger) WithComponent(component string) core.Logger {
	child := l.clone()
	child.component = component
	return child
}

// With returns a child logger with additional bound fields.
func (l *JSONLogger) With(fields map[string]interface{}) core.ComponentAwareLogger {
	child := l.clone()
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

func (l *JSONLogger) emit(level Level, levelName string, ctx context.Context, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}
	line := make(map[string]interface{}, len(l.fields)+len(fields)+4)
	for k, v := range l.fields {
		line[k] = v
	}
	for k, v := range fields {
		line[k] = v
	}
	if l.component != "" {
		line["component"] = l.component
	}
	if ctx != nil {
		if id, ok := correlationID(ctx); ok {
			line["correlation_id"] = id
		}
	}
	line["level"] = levelName
	line["msg"] = msg
	line["ts"] = time.Now().UTC().Format(time.RFC3339Nano)

	l.mu.Lock()
	defer l.mu.Unlock()
	enc, err := json.Marshal(line)
	if err != nil {
		fmt.Fprintf(l.out, `{"level":"ERROR","msg":"log encode failed: %v"}`+"\n", err)
		return
	}
	l.out.Write(append(enc, '\n'))
}

func (l *JSONLogger) Debug(msg string, fields map[string]interface{}) { l.emit(DebugLevel, "DEBUG", nil, msg, fields) }
func (l *JSONLogger) Info(msg string, fields map[string]interface{})  { l.emit(InfoLevel, "INFO", nil, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields map[string]interface{})  { l.emit(WarnLevel, "WARN", nil, msg, fields) }
func (l *JSONLogger) Error(msg string, fields map[string]interface{}) { l.emit(ErrorLevel, "ERROR", nil, msg, fields) }

func (l *JSONLogger) DebugContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.emit(DebugLevel, "DEBUG", ctx, msg, fields)
}
func (l *JSONLogger) InfoContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.emit(InfoLevel, "INFO", ctx, msg, fields)
}
func (l *JSONLogger) WarnContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.emit(WarnLevel, "WARN", ctx, msg, fields)
}
func (l *JSONLogger) ErrorContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.emit(ErrorLevel, "ERROR", ctx, msg, fields)
}
