package domain

const (
	ACTOR_ID_MASTER       = "master"
	ACTOR_ID_RELAY        = "relay"
	ACTOR_ID_OUTLETS      = "outlets"
	ACTOR_ID_MQTT         = "mqtt"
	ACTOR_ID_HA_DISCOVERY = "hadiscovery"
)

// OutletInfo is the presentation of one registered outlet entity.
type OutletInfo struct {
	Index    int        `json:"index" yaml:"index"`
	Label    string     `json:"label,omitempty" yaml:"label,omitempty"`
	Name     string     `json:"name" yaml:"name"`
	UniqueId string     `json:"unique_id" yaml:"unique_id"`
	ObjectId string     `json:"object_id" yaml:"object_id"`
	State    PowerState `json:"-" yaml:"-"`
}

type RelayInfo struct {
	Hostname string
	Name     string
	Protocol string
	Outlets  []OutletInfo
}

type GetDevicesInfoRequest struct {
	ActorRequestMixIn
}

type GetDevicesInfoResponse struct {
	ActorResponseMixIn
	Relay *RelayInfo
}

type RefreshOutletsRequest struct {
	ActorRequestMixIn
}

// RefreshOutletsResponse always carries the current presentation of every
// outlet. On failure Outlets holds the last known states and ResponseError
// tells why they could not be refreshed.
type RefreshOutletsResponse struct {
	ActorResponseMixIn
	Outlets []OutletInfo
}

type SetOutletRequest struct {
	ActorRequestMixIn
	Index   int
	Command OutletCommand
}

type SetOutletResponse struct {
	ActorResponseMixIn
	Index   int
	Command OutletCommand
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors  []GenericSensor
	Switches []GenericSwitch
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
