package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// SwitchSensorUpdateEvent reports one outlet. Host and Index identify the
// physical outlet for sinks other than MQTT.
type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Host  string
	Index int
	Value PowerState
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
