// Package camera simulates the sequence tester camera.
//
// The Simulator is the consumer side of setting.Logger: every frame it
// produces is a packed snapshot of the device settings and their change
// history since the previous frame. Frames are handed to Sinks (MQTT,
// archive, metrics) after packing.
//
//	SnapImage / StartSequence
//	        │
//	        ▼
//	FireOneShot + MarkBusy ──▶ PackAndReset (buffer grows on ErrBufferTooSmall)
//	        │
//	        ▼
//	Frame ──▶ Sink, Sink, ...
//
// A single snap and a running sequence are mutually exclusive.
package camera
