package command

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/seqtester/internal/infrastructure/mqtt"
	"github.com/nerrad567/seqtester/internal/setting"
)

// AckStatus is the outcome reported for a command.
type AckStatus string

const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// Ack is published after a command with an ID has been handled.
type Ack struct {
	CommandID string        `json:"command_id"`
	Timestamp time.Time     `json:"timestamp"`
	Device    string        `json:"device"`
	Setting   string        `json:"setting"`
	Status    AckStatus     `json:"status"`
	Value     setting.Value `json:"value,omitzero"`
	Error     string        `json:"error,omitempty"`
}

// Publisher is the subset of the MQTT client used for acknowledgements.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Handler.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Handler applies MQTT command messages to a setting.Logger.
type Handler struct {
	settings *setting.Logger
	topics   mqtt.Topics
	pub      Publisher
	qos      byte
	logger   Logger
}

// NewHandler creates a command handler. pub may be nil, in which case no
// acknowledgements are sent.
func NewHandler(settings *setting.Logger, topics mqtt.Topics, pub Publisher, qos byte) *Handler {
	return &Handler{
		settings: settings,
		topics:   topics,
		pub:      pub,
		qos:      qos,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// HandleMessage is an mqtt.MessageHandler for the AllCommands topic.
//
// Returning an error only gets it logged by the MQTT client; malformed
// commands with an ID are additionally acknowledged as failed.
func (h *Handler) HandleMessage(topic string, payload []byte) error {
	device, name, ok := h.topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("not a command topic: %s", topic)
	}

	cmd, err := Parse(payload)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", device, name, err)
	}

	value, err := Apply(h.settings, device, name, cmd)
	if err != nil {
		h.logger.Warn("command rejected",
			"command_id", cmd.ID, "device", device, "setting", name, "type", cmd.Type, "error", err)
		h.ack(cmd, device, name, setting.Value{}, err)
		return err
	}

	h.logger.Info("command applied",
		"command_id", cmd.ID, "device", device, "setting", name, "type", cmd.Type, "silent", cmd.Silent)
	h.ack(cmd, device, name, value, nil)
	return nil
}

func (h *Handler) ack(cmd Command, device, name string, value setting.Value, cmdErr error) {
	if h.pub == nil || cmd.ID == "" {
		return
	}

	ack := Ack{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Device:    device,
		Setting:   name,
		Status:    AckAccepted,
		Value:     value,
	}
	if cmdErr != nil {
		ack.Status = AckFailed
		ack.Error = cmdErr.Error()
	}

	payload, err := json.Marshal(ack)
	if err != nil {
		h.logger.Warn("marshalling ack", "command_id", cmd.ID, "error", err)
		return
	}
	if err := h.pub.Publish(h.topics.Ack(device, name), payload, h.qos, false); err != nil {
		h.logger.Warn("publishing ack", "command_id", cmd.ID, "error", err)
	}
}
