// Package api implements the HTTP REST API and WebSocket frame stream for
// the sequence tester.
//
// This package provides:
//   - REST endpoints to read and write device settings and busy flags
//   - Camera control: single snaps and sequence acquisitions
//   - Access to archived frames, decoded or as raw packed bytes
//   - A WebSocket hub broadcasting captured frames and setting changes
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Routes
//
//	GET    /api/v1/health
//	GET    /api/v1/metrics
//	GET    /api/v1/ws
//	GET    /api/v1/settings
//	GET    /api/v1/settings/{device}/{setting}
//	PUT    /api/v1/settings/{device}/{setting}
//	GET    /api/v1/devices/{device}/busy
//	POST   /api/v1/devices/{device}/busy
//	GET    /api/v1/camera
//	POST   /api/v1/camera/snap
//	POST   /api/v1/camera/sequence
//	DELETE /api/v1/camera/sequence
//	GET    /api/v1/frames
//	GET    /api/v1/frames/{nr}
//	GET    /api/v1/frames/{nr}/raw
//
// # Graceful Degradation
//
// The server operates without MQTT or the frame archive. Health and metrics
// report what is missing; frame endpoints answer 503 without an archive.
package api
