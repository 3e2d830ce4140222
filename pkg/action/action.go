// Package action defines the JSON messages exchanged with monitoring clients.
package action

import (
	"encoding/json"
	"fmt"
)

// Type names a message.
type Type string

const (
	StartMonitoring    Type = "start-monitoring"
	StopMonitoring     Type = "stop-monitoring"
	SetMonitoringState Type = "set-monitoring-state"
)

// Action is one message. IsMonitoring is set only on set-monitoring-state.
type Action struct {
	Type         Type   `json:"type"`
	IsMonitoring *bool  `json:"isMonitoring,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}

// Start requests monitoring to begin.
func Start() Action { return Action{Type: StartMonitoring} }

// Stop requests monitoring to end.
func Stop() Action { return Action{Type: StopMonitoring} }

// State announces the current monitoring state.
func State(active bool) Action {
	return Action{Type: SetMonitoringState, IsMonitoring: &active}
}

// Validate checks the type and its payload.
func (a Action) Validate() error {
	switch a.Type {
	case StartMonitoring, StopMonitoring:
		return nil
	case SetMonitoringState:
		if a.IsMonitoring == nil {
			return fmt.Errorf("%s requires isMonitoring", a.Type)
		}
		return nil
	case "":
		return fmt.Errorf("missing action type")
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
}

// Active reports IsMonitoring, false when unset.
func (a Action) Active() bool {
	return a.IsMonitoring != nil && *a.IsMonitoring
}

// Decode parses and validates one message.
func Decode(data []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, a.Validate()
}
