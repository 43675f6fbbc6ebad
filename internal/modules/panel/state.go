package panel

import (
	"github.com/goccy/go-json"
)

// State is either Collapsed or Expanded with exactly one KPI. The zero value is Collapsed.
type State struct {
	key      KPI
	expanded bool
}

// Collapsed returns the state with no tile expanded
func Collapsed() State {
	return State{}
}

// Expanded returns the state with k expanded
func Expanded(k KPI) State {
	return State{key: k, expanded: true}
}

// Key returns the expanded KPI, if any
func (s State) Key() (KPI, bool) {
	return s.key, s.expanded
}

// IsExpanded reports whether a tile is expanded
func (s State) IsExpanded() bool {
	return s.expanded
}

func (s State) String() string {
	if !s.expanded {
		return "collapsed"
	}
	return "expanded(" + string(s.key) + ")"
}

type stateJSON struct {
	Status string `json:"status"`
	Key    KPI    `json:"key,omitempty"`
}

// MarshalJSON encodes {"status": "collapsed"} or {"status": "expanded", "key": ...}
func (s State) MarshalJSON() ([]byte, error) {
	if !s.expanded {
		return json.Marshal(stateJSON{Status: "collapsed"})
	}
	return json.Marshal(stateJSON{Status: "expanded", Key: s.key})
}

// UnmarshalJSON decodes the MarshalJSON form. Unknown keys are rejected.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Status != "expanded" {
		*s = Collapsed()
		return nil
	}
	k, err := ParseKPI(string(raw.Key))
	if err != nil {
		return err
	}
	*s = Expanded(k)
	return nil
}
