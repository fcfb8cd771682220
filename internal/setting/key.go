package setting

import (
	"cmp"

	"github.com/vmihailenco/msgpack/v5"
)

// BusyName is the reserved setting name under which MarkBusy records its
// events, so busy transitions share the ordered history with value changes.
const BusyName = "Busy"

// Key identifies a setting by the device that owns it and the setting name.
// Keys order by device, then name.
type Key struct {
	Device string `json:"device"`
	Name   string `json:"name"`
}

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal to,
// or after o.
func (k Key) Compare(o Key) int {
	if c := cmp.Compare(k.Device, o.Device); c != 0 {
		return c
	}
	return cmp.Compare(k.Name, o.Name)
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool { return k.Compare(o) < 0 }

// String returns "device/name".
func (k Key) String() string { return k.Device + "/" + k.Name }

// EncodeMsgpack writes k as [device, name].
func (k Key) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString(k.Device); err != nil {
		return err
	}
	return enc.EncodeString(k.Name)
}

// DecodeMsgpack reads a key written by EncodeMsgpack.
func (k *Key) DecodeMsgpack(dec *msgpack.Decoder) error {
	if err := expectArray(dec, 2, "key"); err != nil {
		return err
	}
	device, err := dec.DecodeString()
	if err != nil {
		return err
	}
	name, err := dec.DecodeString()
	if err != nil {
		return err
	}
	*k = Key{Device: device, Name: name}
	return nil
}

// Entry pairs a key with its value.
type Entry struct {
	Key   Key   `json:"key"`
	Value Value `json:"value"`
}
