package influx

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/config"
	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

const (
	MEASUREMENT_OUTLET_STATE = "outlet_state"
)

type pointWriter interface {
	WritePoint(point *write.Point)
}

// OutletHistory writes a point every time an outlet changes state. Repeated
// polls of an unchanged outlet write nothing.
type OutletHistory struct {
	writer pointWriter
	closer func()
	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	last         map[string]domain.PowerState
	subscription *eventstream.Subscription
	eventStream  *eventstream.EventStream
}

// NewOutletHistory connects to InfluxDB. The server must answer a ping.
func NewOutletHistory(ctx context.Context, cfg config.InfluxDBConfig, logger *zap.Logger) (*OutletHistory, error) {
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(20).
			SetFlushInterval(1000))

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb ping: %w", err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("influxdb %s not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	h := newOutletHistory(writeAPI, func() {
		writeAPI.Flush()
		client.Close()
	}, logger)
	go h.logWriteErrors(writeAPI.Errors())
	return h, nil
}

func newOutletHistory(writer pointWriter, closer func(), logger *zap.Logger) *OutletHistory {
	return &OutletHistory{
		writer: writer,
		closer: closer,
		logger: logger.With(zap.String("component", "influx")),
		now:    time.Now,
		last:   make(map[string]domain.PowerState),
	}
}

func (h *OutletHistory) logWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		h.logger.Warn("influx: write failed", zap.Error(err))
	}
}

// Record writes ev when its outlet changed state and reports whether a point
// was written. Unknown states are not recorded.
func (h *OutletHistory) Record(ev domain.SwitchSensorUpdateEvent) bool {
	if ev.Value == domain.PowerUnknown {
		return false
	}
	key := ev.Host + "/" + strconv.Itoa(ev.Index)

	h.mu.Lock()
	prev, seen := h.last[key]
	h.last[key] = ev.Value
	h.mu.Unlock()

	if seen && prev == ev.Value {
		return false
	}
	point := write.NewPoint(MEASUREMENT_OUTLET_STATE,
		map[string]string{
			"host":   ev.Host,
			"outlet": strconv.Itoa(ev.Index),
		},
		map[string]interface{}{
			"on": ev.Value == domain.PowerOn,
		},
		h.now())
	h.writer.WritePoint(point)
	h.logger.Debug("influx: outlet state recorded", zap.String("host", ev.Host), zap.Int("outlet", ev.Index), zap.Stringer("state", ev.Value))
	return true
}

// Subscribe records every outlet update published on es.
func (h *OutletHistory) Subscribe(es *eventstream.EventStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscription != nil {
		return
	}
	h.eventStream = es
	h.subscription = es.Subscribe(func(evt any) {
		if ev, ok := evt.(domain.SwitchSensorUpdateEvent); ok {
			h.Record(ev)
		}
	})
}

// Close unsubscribes and flushes pending points.
func (h *OutletHistory) Close() {
	h.mu.Lock()
	if h.subscription != nil {
		h.eventStream.Unsubscribe(h.subscription)
		h.subscription = nil
	}
	h.mu.Unlock()
	if h.closer != nil {
		h.closer()
	}
}
