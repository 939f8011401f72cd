package modbusrelay

import (
	"fmt"
	"sync"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"
	"github.com/berfenger/dinrelay2mqtt/internal/core/port"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

type CoilRelayConfig struct {
	Host        string
	Port        uint
	UnitId      uint8
	OutletCount int
	Timeout     time.Duration
	CycleTime   time.Duration
}

// CoilRelay drives a relay board exposing one coil per outlet, coil 0 is
// outlet 1.
type CoilRelay struct {
	cfg        CoilRelayConfig
	client     *modbus.ModbusClient
	instrument []Instrument
	logger     *zap.Logger

	mu     sync.Mutex
	opened bool
	sleep  func(time.Duration)
}

type Instrument struct {
	RecordTime func(fnName string, duration time.Duration)
}

func NewCoilRelay(cfg CoilRelayConfig, logger *zap.Logger, instrumentation *Instrument) (*CoilRelay, error) {
	if cfg.OutletCount < 1 {
		return nil, fmt.Errorf("invalid outlet count %d", cfg.OutletCount)
	}
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port),
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.UnitId > 0 {
		if err := client.SetUnitId(cfg.UnitId); err != nil {
			return nil, err
		}
	}
	logger = logger.With(zap.String("relay", cfg.Host), zap.Uint8("unit", cfg.UnitId))
	inst := []Instrument{traceLoggerInstrumentation(logger)}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}
	return &CoilRelay{
		cfg:        cfg,
		client:     client,
		instrument: inst,
		logger:     logger,
		sleep:      time.Sleep,
	}, nil
}

func traceLoggerInstrumentation(logger *zap.Logger) Instrument {
	return Instrument{
		RecordTime: func(fnName string, duration time.Duration) {
			logger.Debug("modbus: call", zap.String("fn", fnName), zap.Int64("millis", duration.Milliseconds()))
		},
	}
}

func (r *CoilRelay) Hostname() string {
	return r.cfg.Host
}

func (r *CoilRelay) Verify() error {
	if _, err := r.QueryAll(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	return nil
}

func (r *CoilRelay) QueryAll() (domain.StatusSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.open(); err != nil {
		return nil, err
	}
	coils, err := r.readCoils(0, uint16(r.cfg.OutletCount))
	if err != nil {
		return nil, r.fail(err)
	}
	snapshot := make(domain.StatusSnapshot, 0, len(coils))
	for i, on := range coils {
		snapshot = append(snapshot, domain.OutletState{
			Index: i + 1,
			State: domain.PowerStateFromBool(on),
		})
	}
	return snapshot, nil
}

func (r *CoilRelay) SetOutlet(index int, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkIndex(index); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	if err := r.writeCoil(uint16(index-1), on); err != nil {
		return r.fail(err)
	}
	return nil
}

// CycleOutlet switches the coil off, waits the configured cycle time and
// switches it on again. The client stays locked for the whole cycle.
func (r *CoilRelay) CycleOutlet(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkIndex(index); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	addr := uint16(index - 1)
	if err := r.writeCoil(addr, false); err != nil {
		return r.fail(err)
	}
	r.sleep(r.cfg.CycleTime)
	if err := r.writeCoil(addr, true); err != nil {
		return r.fail(err)
	}
	return nil
}

func (r *CoilRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return nil
	}
	r.opened = false
	return r.client.Close()
}

func (r *CoilRelay) checkIndex(index int) error {
	if index < 1 || index > r.cfg.OutletCount {
		return domain.InvalidOutletError(index, r.cfg.OutletCount)
	}
	return nil
}

func (r *CoilRelay) open() error {
	if r.opened {
		return nil
	}
	if err := r.client.Open(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrCommunication, err)
	}
	r.opened = true
	return nil
}

// fail drops the connection so that the next call reconnects.
func (r *CoilRelay) fail(err error) error {
	r.logger.Debug("modbus: call failed, closing connection", zap.Error(err))
	_ = r.client.Close()
	r.opened = false
	return fmt.Errorf("%w: %w", domain.ErrCommunication, err)
}

func (r *CoilRelay) readCoils(addr uint16, quantity uint16) ([]bool, error) {
	defer RecordTimer("ReadCoils", r.instrument)()
	return r.client.ReadCoils(addr, quantity)
}

func (r *CoilRelay) writeCoil(addr uint16, value bool) error {
	defer RecordTimer("WriteCoil", r.instrument)()
	return r.client.WriteCoil(addr, value)
}

func RecordTimer(name string, instrument []Instrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

// ensure interface compliance
var _ port.RelayClient = (*CoilRelay)(nil)
