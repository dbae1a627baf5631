package models

import (
	"encoding/json"
	"fmt"
)

// Action is what a control message asks the active scenario to do.
type Action string

const (
	ActionSelect Action = "select"
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionToggle Action = "toggle"
	ActionReset  Action = "reset"
)

// Control is a message sent by a live client.
type Control struct {
	Action   Action `json:"action"`
	Scenario string `json:"scenario,omitempty"`
}

// Validate checks the action and its argument.
func (c *Control) Validate() error {
	switch c.Action {
	case ActionSelect:
		if c.Scenario == "" {
			return &ValidationError{Field: "scenario", Message: "is required for select"}
		}
	case ActionPlay, ActionPause, ActionToggle, ActionReset:
	case "":
		return &ValidationError{Field: "action", Message: "is required"}
	default:
		return &ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", c.Action)}
	}
	return nil
}

// ParseControl decodes and validates a control message.
func ParseControl(data []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(data, &c); err != nil {
		return Control{}, fmt.Errorf("invalid control message: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Control{}, err
	}
	return c, nil
}
