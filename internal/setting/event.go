package setting

import "github.com/vmihailenco/msgpack/v5"

// Event records that Key changed to Value at global position Index.
type Event struct {
	Key   Key    `json:"key"`
	Value Value  `json:"value"`
	Index uint64 `json:"index"`
}

// EncodeMsgpack writes e as [key, value, index].
func (e Event) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(3); err != nil {
		return err
	}
	if err := e.Key.EncodeMsgpack(enc); err != nil {
		return err
	}
	if err := e.Value.EncodeMsgpack(enc); err != nil {
		return err
	}
	return enc.EncodeUint(e.Index)
}

// DecodeMsgpack reads an event written by EncodeMsgpack.
func (e *Event) DecodeMsgpack(dec *msgpack.Decoder) error {
	if err := expectArray(dec, 3, "event"); err != nil {
		return err
	}
	var out Event
	if err := out.Key.DecodeMsgpack(dec); err != nil {
		return err
	}
	if err := out.Value.DecodeMsgpack(dec); err != nil {
		return err
	}
	idx, err := dec.DecodeUint64()
	if err != nil {
		return err
	}
	out.Index = idx
	*e = out
	return nil
}
