package setting

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Top-level snapshot map keys, in wire order.
const (
	fieldCamera         = "camera"
	fieldStartCounter   = "start_counter"
	fieldCurrentCounter = "current_counter"
	fieldBusyDevices    = "busy_devices"
	fieldStartingState  = "starting_state"
	fieldHistory        = "history"

	snapshotFields = 6
)

// Frame descriptor keys.
const (
	frameName          = "name"
	frameIsSequence    = "is_sequence"
	frameCameraSeq     = "camera_seq_nr"
	frameAcquisition   = "acquisition_seq_nr"
	frameGlobalImageNr = "global_image_nr"

	frameFields = 5
)

// PackAndReset serialises the current log into dst and starts a new history
// window.
//
// The snapshot holds the frame descriptor (with the incremented global image
// count), the busy devices, the starting values captured at the previous
// reset and every event logged since then. On success the live table becomes
// the new starting values, the event list is cleared and the global image
// count advances by one.
//
// When the snapshot does not fit, PackAndReset returns an error wrapping
// ErrBufferTooSmall and changes nothing, so the caller can retry with a
// larger buffer without losing events. dst is not retained.
//
// Parameters:
//   - dst: Destination buffer; its length is the available capacity
//   - frame: The frame that triggered the pack
//
// Returns:
//   - int: Number of bytes written to dst
//   - error: ErrBufferTooSmall (wrapped) if dst is too short
func (l *Logger) PackAndReset(dst []byte, frame FrameInfo) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	imageNr := l.globalImageCount + 1

	l.scratch.Reset()
	enc := msgpack.GetEncoder()
	defer msgpack.PutEncoder(enc)
	enc.Reset(&l.scratch)

	if err := l.encodeLocked(enc, frame, imageNr); err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}

	size := l.scratch.Len()
	if size > len(dst) {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, size, len(dst))
	}

	n := copy(dst, l.scratch.Bytes())
	l.globalImageCount = imageNr
	l.resetLocked()
	return n, nil
}

func (l *Logger) encodeLocked(enc *msgpack.Encoder, frame FrameInfo, imageNr uint64) error {
	if err := enc.EncodeMapLen(snapshotFields); err != nil {
		return err
	}

	if err := enc.EncodeString(fieldCamera); err != nil {
		return err
	}
	if err := encodeFrame(enc, frame, imageNr); err != nil {
		return err
	}

	if err := encodeUintField(enc, fieldStartCounter, l.counterAtLastReset); err != nil {
		return err
	}
	if err := encodeUintField(enc, fieldCurrentCounter, l.counter); err != nil {
		return err
	}

	if err := enc.EncodeString(fieldBusyDevices); err != nil {
		return err
	}
	busy := l.busyDevicesLocked()
	if err := enc.EncodeArrayLen(len(busy)); err != nil {
		return err
	}
	for _, device := range busy {
		if err := enc.EncodeString(device); err != nil {
			return err
		}
	}

	if err := enc.EncodeString(fieldStartingState); err != nil {
		return err
	}
	starting := sortedEntries(l.starting)
	if err := enc.EncodeArrayLen(len(starting)); err != nil {
		return err
	}
	for _, e := range starting {
		if err := encodeEntry(enc, e); err != nil {
			return err
		}
	}

	if err := enc.EncodeString(fieldHistory); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(l.events)); err != nil {
		return err
	}
	for _, ev := range l.events {
		if err := ev.EncodeMsgpack(enc); err != nil {
			return fmt.Errorf("event %d (%s): %w", ev.Index, ev.Key, err)
		}
	}
	return nil
}

func encodeFrame(enc *msgpack.Encoder, frame FrameInfo, imageNr uint64) error {
	if err := enc.EncodeMapLen(frameFields); err != nil {
		return err
	}
	if err := enc.EncodeString(frameName); err != nil {
		return err
	}
	if err := enc.EncodeString(frame.Camera); err != nil {
		return err
	}
	if err := enc.EncodeString(frameIsSequence); err != nil {
		return err
	}
	if err := enc.EncodeBool(frame.IsSequence); err != nil {
		return err
	}
	if err := encodeUintField(enc, frameCameraSeq, frame.CameraSeqNum); err != nil {
		return err
	}
	if err := encodeUintField(enc, frameAcquisition, frame.AcquisitionSeqNum); err != nil {
		return err
	}
	return encodeUintField(enc, frameGlobalImageNr, imageNr)
}

func encodeUintField(enc *msgpack.Encoder, name string, v uint64) error {
	if err := enc.EncodeString(name); err != nil {
		return err
	}
	return enc.EncodeUint(v)
}

func encodeEntry(enc *msgpack.Encoder, e Entry) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := e.Key.EncodeMsgpack(enc); err != nil {
		return err
	}
	if err := e.Value.EncodeMsgpack(enc); err != nil {
		return fmt.Errorf("starting value %s: %w", e.Key, err)
	}
	return nil
}
