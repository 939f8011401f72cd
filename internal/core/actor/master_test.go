package actor

import (
	"testing"
	"time"

	adactor "github.com/berfenger/dinrelay2mqtt/internal/adapter/actor"
	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/service"
	"github.com/berfenger/dinrelay2mqtt/internal/mqtt"
	"github.com/berfenger/dinrelay2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type bridge struct {
	cfg       config.Config
	client    *service.TestRelayClient
	context   *actor.RootContext
	master    *actor.PID
	published chan adactor.MQTTMessage
}

func startBridge(t *testing.T, cfg config.Config, labels ...string) *bridge {
	t.Helper()
	logger := zap.NewNop()

	client := service.NewTestRelayClient("relay.lan", labels...)
	switches, err := service.SetupOutlets(cfg.Relay, client, logger)
	require.NoError(t, err)

	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)

	published := make(chan adactor.MQTTMessage, 256)
	es := &eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterActor(cfg, es, func() *adactor.RelayActor {
			return adactor.NewRelayActor(cfg.Relay, client, switches, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, published, logger)
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	return &bridge{cfg: cfg, client: client, context: as.Root, master: pid, published: published}
}

// waitPublished drains published until topic carries payload.
func waitPublished(t *testing.T, published <-chan adactor.MQTTMessage, topic, payload string, timeout time.Duration) adactor.MQTTMessage {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-published:
			if msg.Topic == topic && (payload == "" || msg.Payload == payload) {
				return msg
			}
		case <-deadline:
			t.Fatalf("%q never published on %s", payload, topic)
			return adactor.MQTTMessage{}
		}
	}
}

func TestMasterActorHealth(t *testing.T) {
	b := startBridge(t, util.LoadTestConfig(), "Server", "NAS")

	time.Sleep(500 * time.Millisecond)

	res, err := b.context.RequestFuture(b.master, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	healthResp, ok := res.(domain.ActorHealthResponse)
	require.True(t, ok)
	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)
}

func TestMasterActorMQTTCommand(t *testing.T) {
	b := startBridge(t, util.LoadTestConfig(), "Server", "NAS")

	waitPublished(t, b.published, "dinrelay/switch/outlet_1/state", mqtt.MQTT_PAYLOAD_OFF, 3*time.Second)

	b.context.Send(b.master, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		ObjectId: "outlet_1",
		Command:  domain.OUTLET_COMMAND_ON,
	}})

	msg := waitPublished(t, b.published, "dinrelay/switch/outlet_1/state", mqtt.MQTT_PAYLOAD_ON, 5*time.Second)
	assert.True(t, msg.Retain)
	assert.Equal(t, []string{"outlet_1=ON"}, b.client.Commands())
}

func TestMasterActorUnknownObjectId(t *testing.T) {
	b := startBridge(t, util.LoadTestConfig(), "Server")

	b.context.Send(b.master, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		ObjectId: "bridge",
		Command:  domain.OUTLET_COMMAND_ON,
	}})
	time.Sleep(500 * time.Millisecond)
	assert.Empty(t, b.client.Commands())
}

func TestMasterActorSetOutletRequest(t *testing.T) {
	b := startBridge(t, util.LoadTestConfig(), "Server", "NAS")

	res, err := b.context.RequestFuture(b.master, domain.SetOutletRequest{Index: 2, Command: domain.OUTLET_COMMAND_CYCLE}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.SetOutletResponse)
	require.True(t, ok)
	assert.False(t, resp.HasResponseError())
	assert.Equal(t, []string{"outlet_2=CYCLE"}, b.client.Commands())

	res, err = b.context.RequestFuture(b.master, domain.SetOutletRequest{Index: 5, Command: domain.OUTLET_COMMAND_ON}, 5*time.Second).Result()
	require.NoError(t, err)
	resp = res.(domain.SetOutletResponse)
	assert.ErrorIs(t, resp.GetResponseError(), domain.ErrInvalidOutlet)
}

func TestMasterActorForwardsInfo(t *testing.T) {
	b := startBridge(t, util.LoadTestConfig(), "Server", "NAS")

	res, err := b.context.RequestFuture(b.master, domain.GetDevicesInfoRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	resp, ok := res.(domain.GetDevicesInfoResponse)
	require.True(t, ok)
	require.NotNil(t, resp.Relay)
	assert.Len(t, resp.Relay.Outlets, 2)
}
