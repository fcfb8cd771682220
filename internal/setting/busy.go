package setting

import "slices"

// MarkBusy adds one busy marker for device. Unless WithoutEvent is given,
// it also records a one-shot under (device, BusyName) so the transition
// appears in the ordered history.
func (l *Logger) MarkBusy(device string, opts ...Option) {
	m := buildMutation(opts)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.busy[device]++
	if !m.silent {
		l.storeLocked(Key{Device: device, Name: BusyName}, OneShotValue(), m)
	}
}

// IsBusy reports whether device holds any busy markers and consumes one
// when it does. A second call after a single MarkBusy returns false.
func (l *Logger) IsBusy(device string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.busy[device]
	if n == 0 {
		return false
	}
	if n == 1 {
		delete(l.busy, device)
	} else {
		l.busy[device] = n - 1
	}
	return true
}

// PeekBusy reports whether device holds any busy markers without
// consuming one.
func (l *Logger) PeekBusy(device string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy[device] > 0
}

// busyDevicesLocked returns devices with a nonzero busy count, sorted.
func (l *Logger) busyDevicesLocked() []string {
	out := make([]string, 0, len(l.busy))
	for device, n := range l.busy {
		if n > 0 {
			out = append(out, device)
		}
	}
	slices.Sort(out)
	return out
}
