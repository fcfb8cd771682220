package setting

import (
	"bytes"
	"slices"
	"sync"
)

// StructuredLogger defines the logging interface used by the Logger.
// *logging.Logger satisfies it.
type StructuredLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Option adjusts a single mutation call.
type Option func(*mutation)

type mutation struct {
	silent bool
}

// WithoutEvent applies a mutation to the live table without appending an
// event or consuming an order index. Use it for internal corrections that
// must not show up in the recorded history.
func WithoutEvent() Option {
	return func(m *mutation) { m.silent = true }
}

func buildMutation(opts []Option) mutation {
	var m mutation
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Logger is the thread-safe store of device settings and their change
// history.
//
// Every public method acquires mu exactly once for its full duration.
// Methods suffixed with Locked require mu to be held by the caller.
type Logger struct {
	mu sync.Mutex

	values   map[Key]Value // live table
	starting map[Key]Value // live table as of the last reset
	events   []Event       // logged changes since the last reset
	busy     map[string]uint

	counter            uint64 // next order index
	counterAtLastReset uint64
	globalImageCount   uint64

	scratch bytes.Buffer // reused by PackAndReset
	log     StructuredLogger
}

// NewLogger creates an empty Logger. All counters start at zero, so the
// first logged event gets index 0 and the first packed frame reports a
// global image count of 1.
func NewLogger() *Logger {
	return &Logger{
		values:   make(map[Key]Value),
		starting: make(map[Key]Value),
		busy:     make(map[string]uint),
		log:      noopLogger{},
	}
}

// SetLogger sets the diagnostic logger. Typed reads that hit a value of a
// different kind are reported at debug level.
func (l *Logger) SetLogger(logger StructuredLogger) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	l.log = logger
}

// SetInteger stores an integer under (device, name) and logs the change.
func (l *Logger) SetInteger(device, name string, v int64, opts ...Option) {
	l.set(Key{Device: device, Name: name}, IntegerValue(v), opts)
}

// SetFloat stores a float under (device, name) and logs the change.
func (l *Logger) SetFloat(device, name string, v float64, opts ...Option) {
	l.set(Key{Device: device, Name: name}, FloatValue(v), opts)
}

// SetString stores a string under (device, name) and logs the change.
func (l *Logger) SetString(device, name string, v string, opts ...Option) {
	l.set(Key{Device: device, Name: name}, StringValue(v), opts)
}

// FireOneShot records a momentary action such as a trigger pulse.
// It does not mark the device busy.
func (l *Logger) FireOneShot(device, name string, opts ...Option) {
	l.set(Key{Device: device, Name: name}, OneShotValue(), opts)
}

// GetInteger returns the integer stored under (device, name), or 0 when the
// key is unset or holds another kind.
func (l *Logger) GetInteger(device, name string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(Key{Device: device, Name: name}, KindInteger).Integer()
}

// GetFloat returns the float stored under (device, name), or 0.0 when the
// key is unset or holds another kind.
func (l *Logger) GetFloat(device, name string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(Key{Device: device, Name: name}, KindFloat).Float()
}

// GetString returns the string stored under (device, name), or "" when the
// key is unset or holds another kind.
func (l *Logger) GetString(device, name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lookupLocked(Key{Device: device, Name: name}, KindString).Text()
}

// Settings returns a copy of the live table sorted by key.
func (l *Logger) Settings() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedEntries(l.values)
}

// Counter returns the order index the next logged event will receive.
func (l *Logger) Counter() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counter
}

// GlobalImageCount returns the number of frames packed so far.
func (l *Logger) GlobalImageCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.globalImageCount
}

// PendingEvents returns how many events have been logged since the last
// successful pack.
func (l *Logger) PendingEvents() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *Logger) set(key Key, v Value, opts []Option) {
	m := buildMutation(opts)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.storeLocked(key, v, m)
}

// storeLocked writes v to the live table and, unless silent, appends an
// event with the next order index.
func (l *Logger) storeLocked(key Key, v Value, m mutation) {
	l.values[key] = v
	if m.silent {
		return
	}
	l.events = append(l.events, Event{Key: key, Value: v, Index: l.nextIndexLocked()})
}

func (l *Logger) nextIndexLocked() uint64 {
	idx := l.counter
	l.counter++
	return idx
}

func (l *Logger) lookupLocked(key Key, want Kind) Value {
	v, ok := l.values[key]
	if ok && v.kind != want {
		l.log.Debug("setting read with mismatched type",
			"device", key.Device,
			"setting", key.Name,
			"stored", v.kind.String(),
			"requested", want.String(),
		)
	}
	return v
}

// resetLocked starts a new history window.
func (l *Logger) resetLocked() {
	l.starting = make(map[Key]Value, len(l.values))
	for k, v := range l.values {
		l.starting[k] = v
	}
	l.counterAtLastReset = l.counter
	l.events = nil
}

func sortedEntries(m map[Key]Value) []Entry {
	out := make([]Entry, 0, len(m))
	for k, v := range m {
		out = append(out, Entry{Key: k, Value: v})
	}
	slices.SortFunc(out, func(a, b Entry) int { return a.Key.Compare(b.Key) })
	return out
}
