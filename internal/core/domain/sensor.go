package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE       = "bridge"
	SENSOR_ID_RELAY_CONNECTIVITY = "relay_connectivity"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	DEVICE_CLASS_OUTLET          = "outlet"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	ENTITY_CLASS_CONFIG          = "config"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"
	RELAY_MANUFACTURER           = "Digital Loggers"
	RELAY_MODEL                  = "DIN III Relay"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("dinrelay_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "dinrelay2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("DINRelay bridge %s", md5HashShort(baseTopic)),
	}
}

func RelayDevice(info *RelayInfo) Device {
	return Device{
		Id:           fmt.Sprintf("dinrelay_%s", md5HashShort(info.Hostname)),
		Manufacturer: RELAY_MANUFACTURER,
		Model:        fmt.Sprintf("%s (%s)", RELAY_MODEL, info.Protocol),
		Name:         fmt.Sprintf("%s %s", info.Name, info.Hostname),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge state
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func RelaySensors(relayDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Relay reachable on last poll
	sensors = append(sensors, GenericSensor{
		Device:         relayDevice,
		Id:             SENSOR_ID_RELAY_CONNECTIVITY,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Relay connectivity",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(relayDevice.Id, SENSOR_ID_RELAY_CONNECTIVITY),
	})

	return sensors
}

// OutletSwitches keeps the outlet identity as is: the unique id is
// hostname_index and the name is controllerName_label.
func OutletSwitches(relayDevice Device, outlets []OutletInfo) []GenericSwitch {

	var switches []GenericSwitch

	for _, o := range outlets {
		switches = append(switches, GenericSwitch{
			Device:   relayDevice,
			Id:       o.ObjectId,
			Name:     o.Name,
			UniqueId: o.UniqueId,
			Icon:     "mdi:power-socket-eu",
		})
	}

	return switches
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
