package monitor

import (
	"github.com/GriffinCanCode/coordwatch/internal/coords"
	"github.com/GriffinCanCode/coordwatch/internal/tracker"
)

// Stats counts cycle outcomes since the process started.
type Stats struct {
	Cycles              uint64 `json:"cycles"`
	Skipped             uint64 `json:"skipped"`
	RecognitionFailures uint64 `json:"recognitionFailures"`
	SubmitFailures      uint64 `json:"submitFailures"`
	LastText            string `json:"lastText,omitempty"`
	LastDecision        string `json:"lastDecision,omitempty"`
}

// Status is a snapshot of the session.
type Status struct {
	State        string             `json:"state"`
	IsMonitoring bool               `json:"isMonitoring"`
	Source       string             `json:"source"`
	LastAccepted *coords.Coordinate `json:"lastAccepted,omitempty"`
	Pending      *tracker.Candidate `json:"pending,omitempty"`
	Stats        Stats              `json:"stats"`
}

// Status returns a snapshot of the session.
func (c *Controller) Status() Status {
	st := Status{
		State:        c.State().String(),
		IsMonitoring: c.Announced(),
		Source:       c.deps.Source.Name(),
		Stats:        c.stats.Get(),
	}
	if last, ok := c.tracker.Last(); ok {
		st.LastAccepted = &last
	}
	if p, ok := c.tracker.Pending(); ok {
		st.Pending = &p
	}
	return st
}
