package setting

import (
	"fmt"
	"sync"
	"testing"
)

// recordingLogger captures debug messages.
type recordingLogger struct {
	mu     sync.Mutex
	debugs []string
}

func (r *recordingLogger) Debug(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugs = append(r.debugs, msg)
}
func (r *recordingLogger) Info(string, ...any)  {}
func (r *recordingLogger) Warn(string, ...any)  {}
func (r *recordingLogger) Error(string, ...any) {}

// packSnapshot packs l into a generous buffer and decodes the result.
func packSnapshot(t *testing.T, l *Logger, frame FrameInfo) *Snapshot {
	t.Helper()

	buf := make([]byte, 1<<16)
	n, err := l.PackAndReset(buf, frame)
	if err != nil {
		t.Fatalf("PackAndReset() error = %v", err)
	}
	snap, err := Unpack(buf[:n])
	if err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	return snap
}

func TestLogger_SetAndGet(t *testing.T) {
	l := NewLogger()
	l.SetInteger("Cam1", "Binning", 2)
	l.SetFloat("Cam1", "Exposure", 12.5)
	l.SetString("Shutter", "State", "Open")

	if got := l.GetInteger("Cam1", "Binning"); got != 2 {
		t.Errorf("GetInteger() = %d, want 2", got)
	}
	if got := l.GetFloat("Cam1", "Exposure"); got != 12.5 {
		t.Errorf("GetFloat() = %v, want 12.5", got)
	}
	if got := l.GetString("Shutter", "State"); got != "Open" {
		t.Errorf("GetString() = %q, want %q", got, "Open")
	}

	l.SetInteger("Cam1", "Binning", 4)
	if got := l.GetInteger("Cam1", "Binning"); got != 4 {
		t.Errorf("GetInteger() after overwrite = %d, want 4", got)
	}
}

func TestLogger_MissingKeyDefaults(t *testing.T) {
	l := NewLogger()

	if got := l.GetInteger("Nope", "X"); got != 0 {
		t.Errorf("GetInteger() = %d, want 0", got)
	}
	if got := l.GetFloat("Nope", "X"); got != 0 {
		t.Errorf("GetFloat() = %v, want 0", got)
	}
	if got := l.GetString("Nope", "X"); got != "" {
		t.Errorf("GetString() = %q, want empty", got)
	}
}

func TestLogger_TypeMismatchReturnsDefault(t *testing.T) {
	l := NewLogger()
	rec := &recordingLogger{}
	l.SetLogger(rec)

	l.SetString("Cam1", "Mode", "Fast")

	if got := l.GetInteger("Cam1", "Mode"); got != 0 {
		t.Errorf("GetInteger() on string = %d, want 0", got)
	}
	if got := l.GetFloat("Cam1", "Mode"); got != 0 {
		t.Errorf("GetFloat() on string = %v, want 0", got)
	}
	if got := l.GetString("Cam1", "Mode"); got != "Fast" {
		t.Errorf("GetString() = %q, want %q", got, "Fast")
	}

	if len(rec.debugs) != 2 {
		t.Errorf("debug messages = %d, want 2 (one per mismatched read)", len(rec.debugs))
	}
}

func TestLogger_ReadsDoNotLog(t *testing.T) {
	l := NewLogger()
	l.SetInteger("Cam1", "Gain", 1)
	before := l.Counter()

	_ = l.GetInteger("Cam1", "Gain")
	_ = l.GetFloat("Cam1", "Gain")
	_ = l.GetString("Cam1", "Gain")
	_ = l.Settings()

	if got := l.Counter(); got != before {
		t.Errorf("Counter() after reads = %d, want %d", got, before)
	}
	if got := l.PendingEvents(); got != 1 {
		t.Errorf("PendingEvents() = %d, want 1", got)
	}
}

func TestLogger_WithoutEvent(t *testing.T) {
	l := NewLogger()
	l.SetInteger("Cam1", "Gain", 1)
	l.SetInteger("Cam1", "Gain", 7, WithoutEvent())
	l.FireOneShot("Cam1", "Trigger", WithoutEvent())
	l.SetFloat("Cam1", "Exposure", 3)

	if got := l.GetInteger("Cam1", "Gain"); got != 7 {
		t.Errorf("GetInteger() = %d, want silent update 7", got)
	}

	snap := packSnapshot(t, l, FrameInfo{Camera: "Cam1"})

	if len(snap.History) != 2 {
		t.Fatalf("History len = %d, want 2: %+v", len(snap.History), snap.History)
	}
	for _, ev := range snap.History {
		if ev.Key.Name == "Trigger" || ev.Value.Equal(IntegerValue(7)) {
			t.Errorf("silent mutation appeared in history: %+v", ev)
		}
	}
	if snap.History[0].Index != 0 || snap.History[1].Index != 1 {
		t.Errorf("indices = %d, %d; silent mutations must not consume indices",
			snap.History[0].Index, snap.History[1].Index)
	}
}

func TestLogger_FireOneShot(t *testing.T) {
	l := NewLogger()
	l.FireOneShot("Cam1", "Trigger")

	if l.PeekBusy("Cam1") {
		t.Error("FireOneShot marked the device busy")
	}

	snap := packSnapshot(t, l, FrameInfo{Camera: "Cam1"})
	if len(snap.History) != 1 {
		t.Fatalf("History len = %d, want 1", len(snap.History))
	}
	ev := snap.History[0]
	if ev.Key != (Key{Device: "Cam1", Name: "Trigger"}) || ev.Value.Kind() != KindOneShot {
		t.Errorf("event = %+v, want Cam1/Trigger one-shot", ev)
	}
}

func TestLogger_ConcurrentOrdering(t *testing.T) {
	const (
		writers   = 8
		perWriter = 200
	)

	l := NewLogger()
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			device := fmt.Sprintf("Dev%d", w)
			for i := range perWriter {
				l.SetInteger(device, "Seq", int64(i))
			}
		}()
	}
	wg.Wait()

	snap := packSnapshot(t, l, FrameInfo{Camera: "Cam1"})

	if len(snap.History) != writers*perWriter {
		t.Fatalf("History len = %d, want %d", len(snap.History), writers*perWriter)
	}

	last := make(map[string]int64)
	for i, ev := range snap.History {
		if ev.Index != uint64(i) {
			t.Fatalf("History[%d].Index = %d, want %d", i, ev.Index, i)
		}
		// Within a single writer, values must appear in call order.
		if prev, ok := last[ev.Key.Device]; ok && ev.Value.Integer() != prev+1 {
			t.Fatalf("%s: value %d follows %d", ev.Key.Device, ev.Value.Integer(), prev)
		}
		last[ev.Key.Device] = ev.Value.Integer()
	}
}

func TestLogger_ConcurrentPackSeesWholeEvents(t *testing.T) {
	l := NewLogger()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := range 500 {
			l.SetInteger("Stage", "X", int64(i))
		}
	}()

	var total int
	var next uint64
	buf := make([]byte, 1<<20)
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
		}
		n, err := l.PackAndReset(buf, FrameInfo{Camera: "Cam1", IsSequence: true})
		if err != nil {
			t.Fatalf("PackAndReset() error = %v", err)
		}
		snap, err := Unpack(buf[:n])
		if err != nil {
			t.Fatalf("Unpack() error = %v", err)
		}
		if snap.StartCounter != next {
			t.Fatalf("StartCounter = %d, want %d", snap.StartCounter, next)
		}
		for _, ev := range snap.History {
			if ev.Index != next {
				t.Fatalf("event index = %d, want %d", ev.Index, next)
			}
			next++
		}
		total += len(snap.History)
	}

	if total != 500 {
		t.Errorf("events across packs = %d, want 500", total)
	}
}

func TestLogger_Settings(t *testing.T) {
	l := NewLogger()
	l.SetString("Shutter", "State", "Closed")
	l.SetInteger("Cam1", "Gain", 3)
	l.SetFloat("Cam1", "Exposure", 1)

	got := l.Settings()
	want := []Key{{"Cam1", "Exposure"}, {"Cam1", "Gain"}, {"Shutter", "State"}}
	if len(got) != len(want) {
		t.Fatalf("Settings() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Key != want[i] {
			t.Errorf("Settings()[%d].Key = %v, want %v", i, got[i].Key, want[i])
		}
	}
}
