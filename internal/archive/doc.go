// Package archive stores packed camera frames in SQLite.
//
// Frames are kept byte-for-byte as produced by the setting logger, keyed by
// simulator run and global image number, so a run can be replayed or
// inspected after the fact. The repository doubles as a camera.Sink.
package archive
