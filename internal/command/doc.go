// Package command applies externally issued setting commands to a
// setting.Logger.
//
// Commands arrive as JSON, either over MQTT on
// seqtester/{tester}/command/{device}/{setting} or through the HTTP API:
//
//	{"id": "c-17", "type": "float", "value": 12.5}
//	{"type": "int", "value": 4, "silent": true}
//	{"type": "one_shot"}
//	{"type": "busy"}
//
// Silent commands update the value without logging an event. Over MQTT every
// command that carries an id is acknowledged on the matching ack topic.
package command
