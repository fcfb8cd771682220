package mqtt

import (
	"fmt"
	"strings"
)

// TopicRoot is the first level of every sequence tester topic.
const TopicRoot = "seqtester"

// Topics builds MQTT topics scoped to one tester instance.
//
// Layout:
//
//	seqtester/{tester}/status                      retained online/offline
//	seqtester/{tester}/frame/{camera}              packed snapshot bytes
//	seqtester/{tester}/command/{device}/{setting}  JSON setting command
//	seqtester/{tester}/ack/{device}/{setting}      JSON command acknowledgement
type Topics struct {
	TesterID string
}

// Status returns the retained tester status topic used for LWT.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicRoot, t.TesterID)
}

// Frame returns the topic packed frames from camera are published on.
//
// Example: seqtester/bench-1/frame/Cam1
func (t Topics) Frame(camera string) string {
	return fmt.Sprintf("%s/%s/frame/%s", TopicRoot, t.TesterID, camera)
}

// AllFrames matches frames from every camera.
func (t Topics) AllFrames() string {
	return fmt.Sprintf("%s/%s/frame/+", TopicRoot, t.TesterID)
}

// Command returns the topic for a command targeting one setting.
//
// Example: seqtester/bench-1/command/Stage/Position
func (t Topics) Command(device, setting string) string {
	return fmt.Sprintf("%s/%s/command/%s/%s", TopicRoot, t.TesterID, device, setting)
}

// Ack returns the topic acknowledgements for a setting command go to.
func (t Topics) Ack(device, setting string) string {
	return fmt.Sprintf("%s/%s/ack/%s/%s", TopicRoot, t.TesterID, device, setting)
}

// AllCommands matches every command topic for this tester.
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/%s/command/+/+", TopicRoot, t.TesterID)
}

// ParseCommand extracts device and setting from a command topic.
// It returns ok=false for topics outside this tester's command tree.
func (t Topics) ParseCommand(topic string) (device, setting string, ok bool) {
	prefix := fmt.Sprintf("%s/%s/command/", TopicRoot, t.TesterID)
	rest, found := strings.CutPrefix(topic, prefix)
	if !found {
		return "", "", false
	}
	device, setting, found = strings.Cut(rest, "/")
	if !found || device == "" || setting == "" || strings.Contains(setting, "/") {
		return "", "", false
	}
	return device, setting, true
}
