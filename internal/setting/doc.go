// Package setting records device setting changes for the sequence tester and
// packs them into per-frame snapshots.
//
// Simulated devices (cameras, stages, shutters) report every configuration
// change to a shared Logger. Each logged change becomes an Event carrying a
// global order index, so a test harness can later reconstruct exactly which
// values were in effect, and in which order they were applied, at the moment
// a frame was captured.
//
// # Architecture
//
//	 device mocks ──Set*/FireOneShot/MarkBusy──▶ ┌──────────────────────┐
//	                                             │        Logger        │
//	                                             │  live values         │
//	                                             │  starting values     │
//	                                             │  events since reset  │
//	                                             │  busy counts         │
//	 camera ─────────PackAndReset(dst, frame)──▶ │  counters            │
//	                                             └──────────┬───────────┘
//	                                                        │ msgpack
//	                                                        ▼
//	                                                 dst []byte ──▶ Unpack
//
// # Key Types
//
//   - Value: closed variant over integer, float, string and one-shot
//   - Key: (device, name) identity of a setting, ordered device first
//   - Event: a logged change with its order index
//   - FrameInfo: the camera frame that triggered a pack
//   - Snapshot: the decoded form of a packed frame
//
// # Snapshot Format
//
// PackAndReset writes a single msgpack map with keys in this order:
//
//	camera           {name, is_sequence, camera_seq_nr, acquisition_seq_nr, global_image_nr}
//	start_counter    counter value at the previous reset
//	current_counter  counter value now
//	busy_devices     [device, ...]                      sorted
//	starting_state   [[[device, name], value], ...]     sorted by key
//	history          [[[device, name], value, index], ...] in index order
//
// Every value is a two-element array [tag, payload] where tag is one of
// "int", "float", "string" or "one_shot" (payload nil).
//
// # Thread Safety
//
// All Logger methods are safe for concurrent use. Each public method takes
// the logger's mutex exactly once; unexported helpers with a Locked suffix
// expect the caller to hold it.
//
// # Usage
//
//	log := setting.NewLogger()
//	log.SetInteger("Cam1", "Gain", 5)
//	log.SetFloat("Cam1", "Exposure", 10.0)
//
//	buf := make([]byte, 4096)
//	n, err := log.PackAndReset(buf, setting.FrameInfo{Camera: "Cam1"})
//	if errors.Is(err, setting.ErrBufferTooSmall) {
//	    // retry with a larger buffer; nothing was lost
//	}
//	snap, err := setting.Unpack(buf[:n])
package setting
