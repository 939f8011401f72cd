package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const (
	HADISCOVERY_REPUBLISH_JOB = "hadiscovery_republish"
)

type HADiscoveryActor struct {
	config            *config.Config
	behavior          actor.Behavior
	stash             *actorutil.Stash
	relayActor        *actor.PID
	mqttActor         *actor.PID
	relayActorHealthy bool
	mqttActorHealthy  bool
	healthyRecv       int
	scheduler         quartz.Scheduler
	published         int

	logger *zap.Logger
}

type republishDiscovery struct {
}

func NewHADiscoveryActor(config *config.Config, relayActor *actor.PID, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:     config,
		relayActor: relayActor,
		mqttActor:  mqttActor,
		behavior:   actor.NewBehavior(),
		stash:      &actorutil.Stash{},
		logger:     actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")

		// Check Relay and MQTT actor healthy
		state.healthyRecv = 0
		state.relayActorHealthy = false
		state.mqttActorHealthy = false
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.relayActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_RELAY,
				Healthy: false,
			}
		})
		actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
			return domain.ActorHealthResponse{
				Id:      domain.ACTOR_ID_MQTT,
				Healthy: false,
			}
		})
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.healthyRecv++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_RELAY:
				state.relayActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.mqttActorHealthy = true
			}
		}
		if state.healthyRecv == 2 {
			if state.relayActorHealthy && state.mqttActorHealthy {
				state.requestInfo(ctx)
				state.stash.UnstashAll(ctx)
			} else {
				panic(errors.New("MQTT Actor or Relay Actor are not healthy"))
			}
		}
	default:
		state.logger.Debug("hadiscovery@healthcheck: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesInfoResponse:
		if msg.HasResponseError() {
			panic(msg.GetResponseError())
		}
		state.logger.Debug("hadiscovery@info: GetDevicesInfoResponse", zap.String("relay", msg.Relay.Hostname), zap.Int("outlets", len(msg.Relay.Outlets)))

		ctx.Send(state.mqttActor, DiscoveryRequest(state.config.MQTT.BaseTopic, msg.Relay))
		state.published++

		if state.scheduler == nil && state.config.MQTT.HADiscoveryCron != "" {
			if err := state.startScheduler(ctx); err != nil {
				state.logger.Error("hadiscovery@info: could not schedule republish", zap.Error(err))
			}
		}
		state.behavior.Become(state.Done)
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("hadiscovery@info: default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) Done(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case republishDiscovery:
		state.logger.Info("hadiscovery@done: republishing discovery", zap.Int("published", state.published))
		state.requestInfo(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   "done",
		})
	case *actor.Stopping:
		state.stopScheduler()
	default:
		state.logger.Debug("hadiscovery@done: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) requestInfo(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.relayActor, domain.GetDevicesInfoRequest{}, 2*time.Second), func(err error) any {
		return domain.GetDevicesInfoResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}
	})
	state.behavior.Become(state.WaitingInfoReceive)
}

func (state *HADiscoveryActor) startScheduler(ctx actor.Context) error {
	trigger, err := quartz.NewCronTrigger(state.config.MQTT.HADiscoveryCron)
	if err != nil {
		return err
	}
	root := ctx.ActorSystem().Root
	self := ctx.Self()
	republish := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		root.Send(self, republishDiscovery{})
		return true, nil
	})

	sched := quartz.NewStdScheduler()
	sched.Start(context.Background())
	if err := sched.ScheduleJob(quartz.NewJobDetail(republish, quartz.NewJobKey(HADISCOVERY_REPUBLISH_JOB)), trigger); err != nil {
		sched.Stop()
		return err
	}
	state.scheduler = sched
	state.logger.Info("hadiscovery: republish scheduled", zap.String("cron", state.config.MQTT.HADiscoveryCron))
	return nil
}

func (state *HADiscoveryActor) stopScheduler() {
	if state.scheduler != nil {
		state.scheduler.Stop()
		state.scheduler = nil
	}
}

// DiscoveryRequest assembles the discovery payload for the bridge, the relay
// unit and every registered outlet.
func DiscoveryRequest(baseTopic string, relay *domain.RelayInfo) domain.PublishDiscoveryRequest {
	var sensors []domain.GenericSensor

	bridgeDevice := domain.BridgeDevice(baseTopic)
	sensors = append(sensors, domain.BridgeSensors(bridgeDevice)...)

	relayDevice := domain.RelayDevice(relay)
	relayDevice.ViaDevice = bridgeDevice.Id
	sensors = append(sensors, domain.RelaySensors(relayDevice)...)

	// the relay device is announced by its connectivity sensor
	switches := domain.OutletSwitches(domain.IdDevice(relayDevice), relay.Outlets)

	return domain.PublishDiscoveryRequest{
		Sensors:  sensors,
		Switches: switches,
	}
}
