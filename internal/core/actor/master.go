package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/dinrelay2mqtt/internal/adapter/actor"
	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	. "github.com/berfenger/dinrelay2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type RelayActorProvider func() *adactor.RelayActor

// MasterActor spawns and supervises the bridge actors. Outlet commands, from
// MQTT or from the HTTP API, are routed through it.
type MasterActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck healthCheckResult
	eventStream        *eventstream.EventStream
	relayActor         *actor.PID
	mqttActor          *actor.PID
	outletsActor       *actor.PID
	relayActorProvider RelayActorProvider
	mqttActorProvider  MQTTActorProvider
	logger             *zap.Logger
}

type healthCheckResult struct {
	relayActorHealthy   bool
	mqttActorHealthy    bool
	outletsActorHealthy bool
	checksReceived      int
	respondTo           *actor.PID
}

func NewMasterActor(config config.Config, eventStream *eventstream.EventStream, relayActorProvider RelayActorProvider, mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterActor {
	act := &MasterActor{
		config:             config,
		behavior:           actor.NewBehavior(),
		stash:              &Stash{},
		logger:             ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:        eventStream,
		relayActorProvider: relayActorProvider,
		mqttActorProvider:  mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		relayActorPID, err := state.startRelayActor(ctx)
		if err != nil {
			panic(err)
		}
		state.relayActor = relayActorPID

		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		outletsActorPID, err := state.startOutletsActor(ctx)
		if err != nil {
			panic(err)
		}
		state.outletsActor = outletsActorPID

		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		state.requestHealth(ctx, state.relayActor, domain.ACTOR_ID_RELAY)
		state.requestHealth(ctx, state.mqttActor, domain.ACTOR_ID_MQTT)
		state.requestHealth(ctx, state.outletsActor, domain.ACTOR_ID_OUTLETS)

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command == nil {
			return
		}
		index, ok := domain.OutletIndexFromObjectId(msg.Command.ObjectId)
		if !ok {
			state.logger.Warn("master@default parsedCommand: unknown outlet", zap.String("object_id", msg.Command.ObjectId))
			return
		}
		state.setOutlet(ctx, domain.SetOutletRequest{Index: index, Command: msg.Command.Command}, nil)
	case domain.SetOutletRequest:
		state.logger.Debug("master@default SetOutletRequest", zap.Int("outlet", msg.Index), zap.String("command", string(msg.Command)))
		state.setOutlet(ctx, msg, ForRequest(msg).ReplyTo(ctx))
	case domain.RefreshOutletsRequest, domain.GetDevicesInfoRequest:
		ctx.Forward(state.relayActor)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_RELAY) {
			state.logger.Error("master@default relay error")
			panic(errors.New("relay terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		state.currentHealthCheck.respond(ctx)
		ctx.CancelReceiveTimeout()
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.checksReceived++
		if msg.Healthy {
			switch msg.Id {
			case domain.ACTOR_ID_RELAY:
				state.currentHealthCheck.relayActorHealthy = true
			case domain.ACTOR_ID_MQTT:
				state.currentHealthCheck.mqttActorHealthy = true
			case domain.ACTOR_ID_OUTLETS:
				state.currentHealthCheck.outletsActorHealthy = true
			}
		}
		if state.currentHealthCheck.allReceived() {
			state.currentHealthCheck.respond(ctx)
			ctx.CancelReceiveTimeout()
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterActor) requestHealth(ctx actor.Context, pid *actor.PID, id string) {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      id,
			Healthy: false,
		}
	})
}

// setOutlet sends the command to the relay actor. The outcome goes to the
// outlets actor, so it can pick up the new state, and to replyTo when set.
func (state *MasterActor) setOutlet(ctx actor.Context, req domain.SetOutletRequest, replyTo *actor.PID) {
	req.ActorRequestMixIn = domain.ActorRequestMixIn{}
	timeout := state.config.Relay.Timeout() + 2*time.Second
	if req.Command == domain.OUTLET_COMMAND_CYCLE {
		timeout += state.config.Relay.CycleTime()
	}
	ctx.ReenterAfter(ctx.RequestFuture(state.relayActor, req, timeout), func(res any, err error) {
		resp, ok := res.(domain.SetOutletResponse)
		if err != nil || !ok {
			if err == nil {
				err = fmt.Errorf("unexpected response %T", res)
			}
			state.logger.Error("master: set outlet", zap.Int("outlet", req.Index), zap.Error(err))
			resp = domain.SetOutletResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
				Index:              req.Index,
				Command:            req.Command,
			}
		}
		ctx.Send(state.outletsActor, resp)
		if replyTo != nil {
			ctx.Send(replyTo, resp)
		}
	})
}

func (state *MasterActor) startRelayActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	relayProps := actor.PropsFromProducer(func() actor.Actor {
		return state.relayActorProvider()
	}, actor.WithSupervisor(supervisor))
	relayActorPID, err := ctx.SpawnNamed(relayProps, domain.ACTOR_ID_RELAY)
	if err != nil {
		return nil, err
	}

	return relayActorPID, nil
}

func (state *MasterActor) startOutletsActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewAllForOneStrategy(1, 10*time.Second, decider)

	outletsProps := actor.PropsFromProducer(func() actor.Actor {
		return NewOutletsActor(&state.config, state.relayActor, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	outletsActorPID, err := ctx.SpawnNamed(outletsProps, domain.ACTOR_ID_OUTLETS)
	if err != nil {
		return nil, err
	}

	return outletsActorPID, nil
}

func (state *MasterActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, decider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.relayActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func (state *MasterActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *healthCheckResult) reset() {
	state.relayActorHealthy = false
	state.mqttActorHealthy = false
	state.outletsActorHealthy = false
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == 3
}

func (state *healthCheckResult) allHealthy() bool {
	return state.relayActorHealthy && state.mqttActorHealthy && state.outletsActorHealthy
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
