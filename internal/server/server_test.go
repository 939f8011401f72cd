package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	adactor "github.com/berfenger/dinrelay2mqtt/internal/adapter/actor"
	coreactor "github.com/berfenger/dinrelay2mqtt/internal/core/actor"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/service"
	"github.com/berfenger/dinrelay2mqtt/internal/util"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (http.Handler, *service.TestRelayClient) {
	t.Helper()
	cfg := util.LoadTestConfig()
	cfg.MQTT.HADiscoveryEnable = false
	logger := zap.NewNop()

	client := service.NewTestRelayClient("relay.lan", "Server", "", "NAS")
	switches, err := service.SetupOutlets(cfg.Relay, client, logger)
	require.NoError(t, err)

	as := actor.NewActorSystem()
	t.Cleanup(as.Shutdown)

	props := actor.PropsFromProducer(func() actor.Actor {
		return coreactor.NewMasterActor(cfg, &eventstream.EventStream{}, func() *adactor.RelayActor {
			return adactor.NewRelayActor(cfg.Relay, client, switches, logger)
		}, func(es *eventstream.EventStream) *adactor.MQTTActor {
			return adactor.NewTestMQTTActor(&cfg, es, nil, logger)
		}, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)

	return newServer(cfg, as.Root, pid).RegisterRoutes(), client
}

func doRequest(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	handler, _ := newTestServer(t)
	time.Sleep(500 * time.Millisecond)

	rec := doRequest(handler, http.MethodGet, "/healthcheck")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "health_check: OK", rec.Body.String())
}

func TestListOutlets(t *testing.T) {
	handler, client := newTestServer(t)
	client.SetState(3, domain.PowerUnknown)

	rec := doRequest(handler, http.MethodGet, "/outlets")
	require.Equal(t, http.StatusOK, rec.Code)

	var outlets []OutletView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outlets))
	require.Len(t, outlets, 3)
	assert.Equal(t, OutletView{Index: 1, Label: "Server", Name: "DINRelay_Server", UniqueId: "relay.lan_1", State: "OFF"}, outlets[0])
	assert.Equal(t, "DINRelay_2", outlets[1].Name)
	assert.Empty(t, outlets[1].Label)
}

func TestListOutletsUnreachable(t *testing.T) {
	handler, client := newTestServer(t)
	client.SetQueryError(fmt.Errorf("%w: connection refused", domain.ErrCommunication))
	// wait until the snapshot from setup is no longer fresh
	time.Sleep(1100 * time.Millisecond)

	rec := doRequest(handler, http.MethodGet, "/outlets")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Relay-Error"))

	var outlets []OutletView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outlets))
	assert.Len(t, outlets, 3, "last known states")
}

func TestOutletCommand(t *testing.T) {
	handler, client := newTestServer(t)

	cases := []struct {
		path string
		code int
	}{
		{"/outlets/1/on", http.StatusNoContent},
		{"/outlets/3/CYCLE", http.StatusNoContent},
		{"/outlets/2/toggle", http.StatusBadRequest},
		{"/outlets/9/off", http.StatusNotFound},
		{"/outlets/first/off", http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.path, func(t *testing.T) {
			rec := doRequest(handler, http.MethodPost, c.path)
			assert.Equal(t, c.code, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, []string{"outlet_1=ON", "outlet_3=CYCLE"}, client.Commands())

	client.SetCommandError(fmt.Errorf("%w: timeout", domain.ErrCommunication))
	rec := doRequest(handler, http.MethodPost, "/outlets/2/off")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
