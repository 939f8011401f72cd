package domain

import (
	"strconv"
	"strings"
)

type PowerState int

const (
	PowerUnknown PowerState = iota
	PowerOff
	PowerOn
)

func (s PowerState) String() string {
	switch s {
	case PowerOn:
		return "ON"
	case PowerOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParsePowerState maps the textual relay state. Anything that is not ON or OFF
// is reported as PowerUnknown, never coerced.
func ParsePowerState(s string) PowerState {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		return PowerOn
	case "OFF":
		return PowerOff
	default:
		return PowerUnknown
	}
}

func PowerStateFromBool(on bool) PowerState {
	if on {
		return PowerOn
	}
	return PowerOff
}

// OutletState is one physical outlet. Index is 1-based and stable; an empty
// Label means the outlet has no name on the unit.
type OutletState struct {
	Index int        `json:"index" yaml:"index"`
	Label string     `json:"label,omitempty" yaml:"label,omitempty"`
	State PowerState `json:"-" yaml:"-"`
}

func (o OutletState) HasLabel() bool {
	return o.Label != ""
}

// DisplayLabel returns the label, or the stringified index for unnamed outlets.
func (o OutletState) DisplayLabel() string {
	if o.HasLabel() {
		return o.Label
	}
	return strconv.Itoa(o.Index)
}

func (o OutletState) IsOn() bool {
	return o.State == PowerOn
}

// StatusSnapshot holds one entry per outlet, entry i describes outlet i+1.
type StatusSnapshot []OutletState

func (s StatusSnapshot) Outlet(index int) (OutletState, bool) {
	if index < 1 || index > len(s) {
		return OutletState{}, false
	}
	return s[index-1], true
}

// OutletObjectId is the topic safe id of an outlet, outlet_<index>.
func OutletObjectId(index int) string {
	return "outlet_" + strconv.Itoa(index)
}

func OutletIndexFromObjectId(objectId string) (int, bool) {
	s, ok := strings.CutPrefix(objectId, "outlet_")
	if !ok {
		return 0, false
	}
	index, err := strconv.Atoi(s)
	if err != nil || index < 1 {
		return 0, false
	}
	return index, true
}
