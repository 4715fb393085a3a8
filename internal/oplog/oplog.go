// Package oplog provides structured operation logging with correlation-id
// propagation and an optional persistent sink.
//
// Convention: [OPERATION] method | STATUS | key=value pairs
//
//	[SEARCH] outlook | START | query="quarterly report" limit=10 correlation_id=ab12cd34
//	[SEARCH] outlook | SUCCESS | results=15 elapsed_sec=1.234 correlation_id=ab12cd34
//
// Logging is best-effort: sink failures never surface to callers.
package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"searchrelay/pkg/middleware"
)

// Operation types.
const (
	OpSearch  = "SEARCH"
	OpFetch   = "FETCH"
	OpResolve = "RESOLVE"
	OpBuild   = "BUILD"
	OpRoute   = "ROUTE"
	OpAuth    = "AUTH"
	OpCRUD    = "CRUD"
	OpAPICall = "API_CALL"
)

// Status values. START transitions to exactly one of SUCCESS or FAILED;
// IN_PROGRESS is an optional non-terminal emission for long operations.
const (
	StatusStart      = "START"
	StatusInProgress = "IN_PROGRESS"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusWarning    = "WARNING"
)

// Entry is one persisted log row.
type Entry struct {
	Text          string
	Level         string
	TS            int64 // epoch millis
	Operation     string
	Method        string
	Status        string
	CorrelationID string
	ElapsedSec    float64 // 0 when not a terminal emission
	Metadata      map[string]any
	UserID        string
	SourceID      string
}

// Sink receives entries fire-and-forget. Append must not block the caller.
type Sink interface {
	Append(e Entry)
}

// Logger wraps zap with the operation convention and mirrors every emission
// to the sink when one is configured.
type Logger struct {
	log  *zap.SugaredLogger
	sink Sink
}

func New(log *zap.SugaredLogger, sink Sink) *Logger {
	return &Logger{log: log, sink: sink}
}

// Timer tracks one operation from Start to its terminal emission.
type Timer struct {
	l      *Logger
	op     string
	method string
	corr   string
	start  time.Time
}

// Start logs the START emission and returns a timer for the terminal call.
// The correlation id is read from ctx (see middleware.CorrelationID).
func (l *Logger) Start(ctx context.Context, op, method string, kv ...any) *Timer {
	t := &Timer{l: l, op: op, method: method, corr: middleware.CorrelationIDFrom(ctx), start: time.Now()}
	l.emit("info", op, method, StatusStart, t.corr, 0, kv)
	return t
}

// Progress logs a non-terminal IN_PROGRESS emission.
func (t *Timer) Progress(kv ...any) {
	t.l.emit("info", t.op, t.method, StatusInProgress, t.corr, 0, kv)
}

// Success logs the terminal SUCCESS emission with elapsed wall-clock time.
func (t *Timer) Success(kv ...any) {
	t.l.emit("info", t.op, t.method, StatusSuccess, t.corr, t.elapsed(), kv)
}

// Failed logs the terminal FAILED emission.
func (t *Timer) Failed(err error, kv ...any) {
	kv = append(kv, "error", err.Error())
	t.l.emit("error", t.op, t.method, StatusFailed, t.corr, t.elapsed(), kv)
}

// Warn logs a standalone WARNING emission (no timer).
func (l *Logger) Warn(ctx context.Context, op, method, msg string, kv ...any) {
	kv = append(kv, "warning", msg)
	l.emit("warn", op, method, StatusWarning, middleware.CorrelationIDFrom(ctx), 0, kv)
}

// elapsed is the wall-clock delta rounded to millisecond precision.
func (t *Timer) elapsed() float64 {
	return time.Since(t.start).Round(time.Millisecond).Seconds()
}

func (l *Logger) emit(level, op, method, status, corr string, elapsedSec float64, kv []any) {
	fields := kvMap(kv)
	if corr != "" {
		fields["correlation_id"] = corr
	}
	if elapsedSec > 0 {
		fields["elapsed_sec"] = elapsedSec
	}
	text := fmt.Sprintf("[%s] %s | %s | %s", op, method, status, kvString(fields))
	switch level {
	case "error":
		l.log.Error(text)
	case "warn":
		l.log.Warn(text)
	default:
		l.log.Info(text)
	}
	if l.sink != nil {
		l.sink.Append(Entry{
			Text:          text,
			Level:         strings.ToUpper(level),
			TS:            time.Now().UnixMilli(),
			Operation:     op,
			Method:        method,
			Status:        status,
			CorrelationID: corr,
			ElapsedSec:    elapsedSec,
			Metadata:      fields,
		})
	}
}

func kvMap(kv []any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		m[k] = kv[i+1]
	}
	return m
}

func kvString(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(m[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		if x == "" || strings.ContainsRune(x, ' ') {
			return fmt.Sprintf("%q", x)
		}
		return x
	case int, int64, float64, bool:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
