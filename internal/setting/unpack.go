package setting

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is the decoded form of a buffer written by PackAndReset.
type Snapshot struct {
	Frame            FrameInfo `json:"frame"`
	GlobalImageCount uint64    `json:"global_image_nr"`
	StartCounter     uint64    `json:"start_counter"`
	CurrentCounter   uint64    `json:"current_counter"`
	BusyDevices      []string  `json:"busy_devices"`
	StartingValues   []Entry   `json:"starting_values"`
	History          []Event   `json:"history"`
}

// StartingValue returns the starting value recorded for key, if any.
func (s *Snapshot) StartingValue(key Key) (Value, bool) {
	for _, e := range s.StartingValues {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Unpack decodes a snapshot written by PackAndReset.
//
// Unknown top-level or frame keys are skipped, so readers tolerate fields
// added later.
func Unpack(data []byte) (*Snapshot, error) {
	src := bytes.NewReader(data)
	dec := msgpack.NewDecoder(src)

	var snap Snapshot
	if err := snap.decode(dec, src); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated", ErrMalformedSnapshot)
		}
		if errors.Is(err, ErrMalformedSnapshot) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	return &snap, nil
}

func (s *Snapshot) decode(dec *msgpack.Decoder, src *bytes.Reader) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: nil snapshot", ErrMalformedSnapshot)
	}

	for range n {
		field, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch field {
		case fieldCamera:
			err = s.decodeFrame(dec)
		case fieldStartCounter:
			s.StartCounter, err = dec.DecodeUint64()
		case fieldCurrentCounter:
			s.CurrentCounter, err = dec.DecodeUint64()
		case fieldBusyDevices:
			s.BusyDevices, err = decodeStrings(dec, src)
		case fieldStartingState:
			s.StartingValues, err = decodeEntries(dec, src)
		case fieldHistory:
			s.History, err = decodeEvents(dec, src)
		default:
			err = dec.Skip()
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}

func (s *Snapshot) decodeFrame(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	for range n {
		field, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch field {
		case frameName:
			s.Frame.Camera, err = dec.DecodeString()
		case frameIsSequence:
			s.Frame.IsSequence, err = dec.DecodeBool()
		case frameCameraSeq:
			s.Frame.CameraSeqNum, err = dec.DecodeUint64()
		case frameAcquisition:
			s.Frame.AcquisitionSeqNum, err = dec.DecodeUint64()
		case frameGlobalImageNr:
			s.GlobalImageCount, err = dec.DecodeUint64()
		default:
			err = dec.Skip()
		}
		if err != nil {
			return fmt.Errorf("camera.%s: %w", field, err)
		}
	}
	return nil
}

func decodeStrings(dec *msgpack.Decoder, src *bytes.Reader) ([]string, error) {
	n, err := decodeArrayLen(dec, src, "busy devices")
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, 0, n)
	for range n {
		s, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeEntries(dec *msgpack.Decoder, src *bytes.Reader) ([]Entry, error) {
	n, err := decodeArrayLen(dec, src, "starting values")
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]Entry, 0, n)
	for range n {
		if err := expectArray(dec, 2, "starting value"); err != nil {
			return nil, err
		}
		var e Entry
		if err := e.Key.DecodeMsgpack(dec); err != nil {
			return nil, err
		}
		if err := e.Value.DecodeMsgpack(dec); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeEvents(dec *msgpack.Decoder, src *bytes.Reader) ([]Event, error) {
	n, err := decodeArrayLen(dec, src, "history")
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]Event, 0, n)
	for range n {
		var ev Event
		if err := ev.DecodeMsgpack(dec); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// decodeArrayLen reads an array header and rejects lengths the remaining
// input cannot hold. Every element takes at least one byte, so a larger
// count is corrupt and must not size an allocation.
func decodeArrayLen(dec *msgpack.Decoder, src *bytes.Reader, what string) (int, error) {
	n, err := dec.DecodeArrayLen()
	if err != nil || n <= 0 {
		return 0, err
	}
	if n > src.Len() {
		return 0, fmt.Errorf("%w: %s claims %d elements with %d bytes left", ErrMalformedSnapshot, what, n, src.Len())
	}
	return n, nil
}

func expectArray(dec *msgpack.Decoder, want int, what string) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("%w: %s has %d elements, want %d", ErrMalformedSnapshot, what, n, want)
	}
	return nil
}
