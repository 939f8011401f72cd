package service

import (
	"fmt"
	"strconv"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

// RelaySwitch is the switch entity of one outlet as the host sees it.
type RelaySwitch struct {
	controller     *OutletController
	controllerName string
	hostname       string
	logger         *zap.Logger
}

func NewRelaySwitch(controller *OutletController, controllerName string, hostname string, logger *zap.Logger) *RelaySwitch {
	return &RelaySwitch{
		controller:     controller,
		controllerName: controllerName,
		hostname:       hostname,
		logger:         logger.With(zap.Int("outlet", controller.Index())),
	}
}

func (s *RelaySwitch) Index() int {
	return s.controller.Index()
}

// Name follows the outlet label, a relabelled outlet is renamed on the next
// refresh.
func (s *RelaySwitch) Name() string {
	return s.controllerName + "_" + s.controller.Last().DisplayLabel()
}

func (s *RelaySwitch) UniqueId() string {
	return s.hostname + "_" + strconv.Itoa(s.Index())
}

func (s *RelaySwitch) ObjectId() string {
	return domain.OutletObjectId(s.Index())
}

func (s *RelaySwitch) Label() string {
	return s.controller.Last().Label
}

func (s *RelaySwitch) State() domain.PowerState {
	return s.controller.Last().State
}

func (s *RelaySwitch) IsOn() bool {
	return s.controller.Last().IsOn()
}

func (s *RelaySwitch) ShouldPoll() bool {
	return true
}

func (s *RelaySwitch) TurnOn() error {
	return s.controller.SetState(true)
}

func (s *RelaySwitch) TurnOff() error {
	return s.controller.SetState(false)
}

func (s *RelaySwitch) Cycle() error {
	return s.controller.Cycle()
}

// Execute applies an on, off or cycle command.
func (s *RelaySwitch) Execute(command domain.OutletCommand) error {
	switch command {
	case domain.OUTLET_COMMAND_ON:
		return s.TurnOn()
	case domain.OUTLET_COMMAND_OFF:
		return s.TurnOff()
	case domain.OUTLET_COMMAND_CYCLE:
		return s.Cycle()
	default:
		return fmt.Errorf("unknown outlet command %q", command)
	}
}

// Refresh keeps the last known state when the unit cannot be queried.
func (s *RelaySwitch) Refresh() error {
	_, err := s.controller.GetState()
	if err != nil {
		s.logger.Debug("relay_switch: refresh failed", zap.Error(err))
	}
	return err
}

func (s *RelaySwitch) Info() domain.OutletInfo {
	last := s.controller.Last()
	return domain.OutletInfo{
		Index:    last.Index,
		Label:    last.Label,
		Name:     s.Name(),
		UniqueId: s.UniqueId(),
		ObjectId: s.ObjectId(),
		State:    last.State,
	}
}
