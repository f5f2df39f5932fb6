package observability

import (
	"fmt"
	"sync"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

type anyField struct {
	key string
	val interface{}
}

func (f anyField) Key() string        { return f.key }
func (f anyField) Value() interface{} { return f.val }

func String(key, value string) Field      { return stringField{key, value} }
func Int(key string, value int) Field     { return intField{key, value} }
func Int64(key string, value int64) Field { return int64Field{key, value} }
func Float64(key string, v float64) Field { return float64Field{key, v} }
func Error(key string, err error) Field   { return errorField{key, err} }
func Any(key string, v interface{}) Field { return anyField{key, v} }

// KeyVals flattens fields into alternating key/value pairs, the shape most
// structured loggers accept.
func KeyVals(fields []Field) []interface{} {
	out := make([]interface{}, 0, 2*len(fields))
	for _, f := range fields {
		out = append(out, f.Key(), f.Value())
	}
	return out
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// Or returns l, or a NopLogger when l is nil.
func Or(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// Entry is one message captured by a Recorder.
type Entry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// Recorder keeps every message in memory. It is meant for tests and for
// callers that want to inspect what a run reported.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	base    []Field
}

func NewRecorder() *Recorder { return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}} }

func (r *Recorder) log(level, msg string, fields []Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := Entry{Level: level, Msg: msg, Fields: make(map[string]interface{})}
	for _, f := range append(append([]Field{}, r.base...), fields...) {
		e.Fields[f.Key()] = f.Value()
	}
	*r.entries = append(*r.entries, e)
}

func (r *Recorder) Debug(msg string, fields ...Field) { r.log("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...Field)  { r.log("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...Field)  { r.log("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...Field) { r.log("error", msg, fields) }

func (r *Recorder) With(fields ...Field) Logger {
	return &Recorder{mu: r.mu, entries: r.entries, base: append(append([]Field{}, r.base...), fields...)}
}

// Entries returns a copy of the captured messages.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), (*r.entries)...)
}

// Find returns the first entry whose message equals msg.
func (r *Recorder) Find(msg string) (Entry, bool) {
	for _, e := range r.Entries() {
		if e.Msg == msg {
			return e, true
		}
	}
	return Entry{}, false
}

func (e Entry) String() string { return fmt.Sprintf("%s %s %v", e.Level, e.Msg, e.Fields) }
