package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/nerrad567/seqtester/internal/setting"
)

// Type selects which setting.Logger mutation a command performs.
type Type string

const (
	TypeInteger Type = "int"
	TypeFloat   Type = "float"
	TypeString  Type = "string"
	TypeOneShot Type = "one_shot"

	// TypeBusy marks the target device busy. The setting part of the
	// target is ignored.
	TypeBusy Type = "busy"
)

// Command is a single setting mutation.
type Command struct {
	// ID correlates the command with its acknowledgement. Optional.
	ID string `json:"id,omitempty"`

	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`

	// Silent updates the stored value without logging an event.
	Silent bool `json:"silent,omitempty"`
}

// Parse decodes a JSON command.
func Parse(payload []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return Command{}, fmt.Errorf("parsing command: %w", err)
	}
	return cmd, nil
}

// Apply performs cmd against settings for the given device and setting.
//
// Parameters:
//   - settings: Logger to mutate
//   - device: Target device name
//   - name: Target setting name (ignored for TypeBusy)
//   - cmd: The command to apply
//
// Returns:
//   - setting.Value: The value written, or a one-shot marker for one-shot
//     and busy commands
//   - error: ErrInvalidTarget, ErrUnknownType or ErrInvalidValue; settings
//     is untouched on error
func Apply(settings *setting.Logger, device, name string, cmd Command) (setting.Value, error) {
	if device == "" || (name == "" && cmd.Type != TypeBusy) {
		return setting.Value{}, ErrInvalidTarget
	}

	var opts []setting.Option
	if cmd.Silent {
		opts = append(opts, setting.WithoutEvent())
	}

	switch cmd.Type {
	case TypeInteger:
		v, err := parseInteger(cmd.Value)
		if err != nil {
			return setting.Value{}, err
		}
		settings.SetInteger(device, name, v, opts...)
		return setting.IntegerValue(v), nil

	case TypeFloat:
		v, err := parseFloat(cmd.Value)
		if err != nil {
			return setting.Value{}, err
		}
		settings.SetFloat(device, name, v, opts...)
		return setting.FloatValue(v), nil

	case TypeString:
		var v string
		if err := json.Unmarshal(cmd.Value, &v); err != nil {
			return setting.Value{}, fmt.Errorf("%w: want a JSON string", ErrInvalidValue)
		}
		settings.SetString(device, name, v, opts...)
		return setting.StringValue(v), nil

	case TypeOneShot:
		settings.FireOneShot(device, name, opts...)
		return setting.OneShotValue(), nil

	case TypeBusy:
		settings.MarkBusy(device, opts...)
		return setting.OneShotValue(), nil

	default:
		return setting.Value{}, fmt.Errorf("%w: %q", ErrUnknownType, cmd.Type)
	}
}

// parseInteger accepts a JSON integer. Fractional or out-of-range numbers
// are rejected rather than truncated.
func parseInteger(raw json.RawMessage) (int64, error) {
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return 0, fmt.Errorf("%w: want a JSON integer", ErrInvalidValue)
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a 64-bit integer", ErrInvalidValue, n)
	}
	return v, nil
}

// parseFloat accepts a JSON number, or one of the strings "NaN", "Inf",
// "+Inf" and "-Inf" which JSON cannot express as numbers.
func parseFloat(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: want a JSON number", ErrInvalidValue)
	}
	switch s {
	case "NaN":
		return math.NaN(), nil
	case "Inf", "+Inf":
		return math.Inf(1), nil
	case "-Inf":
		return math.Inf(-1), nil
	}
	return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
}
