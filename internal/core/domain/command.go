package domain

import (
	"fmt"
	"strings"
)

type OutletCommand string

const (
	OUTLET_COMMAND_ON    OutletCommand = "on"
	OUTLET_COMMAND_OFF   OutletCommand = "off"
	OUTLET_COMMAND_CYCLE OutletCommand = "cycle"
)

func ParseOutletCommand(s string) (OutletCommand, error) {
	switch cmd := OutletCommand(strings.ToLower(strings.TrimSpace(s))); cmd {
	case OUTLET_COMMAND_ON, OUTLET_COMMAND_OFF, OUTLET_COMMAND_CYCLE:
		return cmd, nil
	}
	return "", fmt.Errorf("unknown outlet command %q", s)
}
