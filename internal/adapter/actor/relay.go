package actor

import (
	"errors"
	"fmt"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"
	"github.com/berfenger/dinrelay2mqtt/internal/core/service"
	"github.com/berfenger/dinrelay2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type RelayActor struct {
	cfg      config.RelayConfig
	behavior actor.Behavior
	stash    *actorutil.Stash
	client   port.RelayClient
	switches []*service.RelaySwitch
	logger   *zap.Logger
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

// NewRelayActor takes the switches registered by service.SetupOutlets. The
// actor owns the client from then on and closes it when stopped.
func NewRelayActor(cfg config.RelayConfig, client port.RelayClient, switches []*service.RelaySwitch, logger *zap.Logger) *RelayActor {
	act := &RelayActor{
		cfg:      cfg,
		client:   client,
		switches: switches,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_RELAY, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *RelayActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *RelayActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("relay@default started", zap.Int("outlets", len(state.switches)))
	case domain.ActorHealthRequest:
		state.logger.Debug("relay@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_RELAY,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetDevicesInfoRequest:
		state.logger.Debug("relay@default GetDevicesInfoRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.GetDevicesInfoResponse{
			Relay: state.relayInfo(),
		})
	case domain.RefreshOutletsRequest:
		state.logger.Debug("relay@default RefreshOutletsRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, state.refreshOutlets),
			mapTaskResult[domain.RefreshOutletsResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.RefreshOutletsResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Outlets:            state.outletInfos(),
				},
				replyTo: sender,
			}
		}).WithTimeout(state.cfg.Timeout() + time.Second).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingRelay)
	case domain.SetOutletRequest:
		state.logger.Debug("relay@default SetOutletRequest", zap.Int("outlet", msg.Index), zap.String("command", string(msg.Command)))
		sw := state.switchByIndex(msg.Index)
		if sw == nil {
			actorutil.ForRequest(msg).Respond(ctx, domain.SetOutletResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.InvalidOutletError(msg.Index, len(state.switches))),
				Index:              msg.Index,
				Command:            msg.Command,
			})
			return
		}
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTaskNoError(ctx, func() *domain.SetOutletResponse {
			return &domain.SetOutletResponse{
				ActorResponseMixIn: domain.ErrorResponse(sw.Execute(msg.Command)),
				Index:              msg.Index,
				Command:            msg.Command,
			}
		}), mapTaskResult[domain.SetOutletResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.SetOutletResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
					Index:              msg.Index,
					Command:            msg.Command,
				},
				replyTo: sender,
			}
		}).WithTimeout(state.commandTimeout(msg.Command)).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingRelay)
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("relay@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// WaitingRelay holds every message but health checks until the running
// device call completes.
func (state *RelayActor) WaitingRelay(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("relay@waiting backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_RELAY,
			Healthy: true,
			State:   "busy",
		})
	case *actor.Stopping:
		state.close()
	default:
		state.logger.Debug("relay@waiting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// refreshOutlets refreshes every switch. They share one throttled cache, so
// this is a single query to the unit at most.
func (state *RelayActor) refreshOutlets() *domain.RefreshOutletsResponse {
	var errs []error
	for _, sw := range state.switches {
		if err := sw.Refresh(); err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	if len(errs) > 0 {
		// all switches report the same failure of the shared query
		err = errs[0]
		if errors.Is(err, domain.ErrInvalidOutlet) {
			err = errors.Join(errs...)
		}
		state.logger.Warn("relay@refresh outlets refresh failed", zap.Error(err))
	}
	return &domain.RefreshOutletsResponse{
		ActorResponseMixIn: domain.ErrorResponse(err),
		Outlets:            state.outletInfos(),
	}
}

func (state *RelayActor) commandTimeout(cmd domain.OutletCommand) time.Duration {
	timeout := state.cfg.Timeout() + time.Second
	if cmd == domain.OUTLET_COMMAND_CYCLE {
		timeout += state.cfg.CycleTime()
	}
	return timeout
}

func (state *RelayActor) switchByIndex(index int) *service.RelaySwitch {
	for _, sw := range state.switches {
		if sw.Index() == index {
			return sw
		}
	}
	return nil
}

func (state *RelayActor) outletInfos() []domain.OutletInfo {
	infos := make([]domain.OutletInfo, 0, len(state.switches))
	for _, sw := range state.switches {
		infos = append(infos, sw.Info())
	}
	return infos
}

func (state *RelayActor) relayInfo() *domain.RelayInfo {
	return &domain.RelayInfo{
		Hostname: state.client.Hostname(),
		Name:     state.cfg.Name,
		Protocol: state.cfg.Protocol,
		Outlets:  state.outletInfos(),
	}
}

func (state *RelayActor) close() {
	state.logger.Debug("relay: close client")
	if err := state.client.Close(); err != nil {
		state.logger.Warn("relay: close client", zap.Error(err))
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
