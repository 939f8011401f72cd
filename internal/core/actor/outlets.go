package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	. "github.com/berfenger/dinrelay2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// OutletsActor is the poll loop of the bridge. Every tick it refreshes all
// outlets through the relay actor and publishes their state.
type OutletsActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	relayActor  *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	hostname    string

	logger *zap.Logger
}

type outletsTick struct {
}

// outletsRefresh is a refresh outside the poll cadence, the next tick is not
// rescheduled.
type outletsRefresh struct {
}

func NewOutletsActor(config *config.Config, relayActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *OutletsActor {
	act := &OutletsActor{
		config:      config,
		relayActor:  relayActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_OUTLETS, logger),
		eventStream: eventStream,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *OutletsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *OutletsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("outlets@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)

		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.relayActor, domain.GetDevicesInfoRequest{}, 2*time.Second), func(err error) any {
			return domain.GetDevicesInfoResponse{
				ActorResponseMixIn: domain.ErrorResponse(err),
			}
		})
		state.behavior.Become(state.WaitingInfoReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("outlets@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OutletsActor) WaitingInfoReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetDevicesInfoResponse:
		if msg.HasResponseError() {
			state.logger.Error("outlets@waitingInfo GetDevicesInfoResponse", zap.Error(msg.GetResponseError()))
			panic(msg.GetResponseError())
		}
		state.logger.Debug("outlets@waitingInfo GetDevicesInfoResponse", zap.Int("outlets", len(msg.Relay.Outlets)))
		state.hostname = msg.Relay.Hostname
		state.publishOutlets(msg.Relay.Outlets)

		state.scheduler.RequestOnce(state.config.MonitorConfig.PollInterval(), ctx.Self(), outletsTick{})
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("outlets@waitingInfo: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OutletsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("outlets@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_OUTLETS,
			Healthy: true,
			State:   "idle",
		})
	case outletsTick:
		state.logger.Debug("outlets@default tick")
		state.refresh(ctx)
		// schedule next tick
		state.scheduler.RequestOnce(state.config.MonitorConfig.PollInterval(), ctx.Self(), outletsTick{})
	case outletsRefresh:
		state.logger.Debug("outlets@default refresh")
		state.refresh(ctx)
	case domain.SetOutletResponse:
		if msg.HasResponseError() {
			state.logger.Error("outlets@default SetOutletResponse error", zap.Int("outlet", msg.Index), zap.Error(msg.GetResponseError()))
			return
		}
		// look again once the cache may query the unit
		state.logger.Debug("outlets@default SetOutletResponse", zap.Int("outlet", msg.Index), zap.String("command", string(msg.Command)))
		state.scheduler.RequestOnce(state.config.Relay.MinRefreshInterval(), ctx.Self(), outletsRefresh{})
	case *actor.Stopping:
	default:
		state.logger.Debug("outlets@default: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *OutletsActor) WaitingRefreshReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.RefreshOutletsResponse:
		if msg.HasResponseError() {
			state.logger.Warn("outlets@waiting RefreshOutletsResponse error, keeping last known state", zap.Error(msg.GetResponseError()))
		} else {
			state.logger.Debug("outlets@waiting RefreshOutletsResponse")
		}
		state.publishOutlets(msg.Outlets)
		state.eventStream.Publish(domain.BinarySensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: domain.SENSOR_ID_RELAY_CONNECTIVITY,
			},
			Value: !msg.HasResponseError(),
		})

		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_OUTLETS,
			Healthy: true,
			State:   "refreshing",
		})
	case outletsRefresh:
		// a refresh is already running
	default:
		state.logger.Debug("outlets@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *OutletsActor) refresh(ctx actor.Context) {
	timeout := state.config.Relay.Timeout() + 2*time.Second
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.relayActor, domain.RefreshOutletsRequest{}, timeout), func(err error) any {
		return domain.RefreshOutletsResponse{
			ActorResponseMixIn: domain.ErrorResponse(err),
		}
	})
	state.behavior.BecomeStacked(state.WaitingRefreshReceive)
}

func (state *OutletsActor) publishOutlets(outlets []domain.OutletInfo) {
	for _, o := range outlets {
		state.eventStream.Publish(domain.SwitchSensorUpdateEvent{
			SensorUpdateEventMixIn: domain.SensorUpdateEventMixIn{
				Id: o.ObjectId,
			},
			Host:  state.hostname,
			Index: o.Index,
			Value: o.State,
		})
	}
}
