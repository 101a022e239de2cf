package curtain

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"curtain-bridge/internal/frame"
	"curtain-bridge/internal/zcl"
)

// ErrNoSession is returned for commands addressed to an endpoint that has
// no session.
var ErrNoSession = errors.New("no session for endpoint")

// EndpointSource enumerates the endpoints the host knows for the device.
type EndpointSource interface {
	Endpoints() []int
}

// StaticEndpoints is a fixed endpoint list, typically from configuration.
type StaticEndpoints []int

func (s StaticEndpoints) Endpoints() []int { return slices.Clone(s) }

// Sender hands a batch to the transport. It must not wait for the batch
// to be delivered.
type Sender interface {
	Send(batch frame.Batch) error
}

// Config holds device options.
type Config struct {
	Name    string
	Spacing time.Duration
}

// Device owns the endpoint -> session table of one curtain module and
// connects it to the host collaborators. Frame handling and command
// issuance are serialized by one mutex; events are emitted after it is
// released so handlers may issue commands.
type Device struct {
	mu       sync.Mutex
	name     string
	sessions map[int]*Session

	endpoints EndpointSource
	sender    Sender
	builder   *Builder
	registry  *zcl.Registry
	events    *EventBus
	logger    *slog.Logger
}

// NewDevice creates a device and a session for every enumerated endpoint.
func NewDevice(cfg Config, endpoints EndpointSource, sender Sender, registry *zcl.Registry, events *EventBus, logger *slog.Logger) *Device {
	if registry == nil {
		registry = zcl.NewRegistry(logger)
	}
	d := &Device{
		name:      cfg.Name,
		sessions:  make(map[int]*Session),
		endpoints: endpoints,
		sender:    sender,
		builder:   NewBuilder(cfg.Spacing),
		registry:  registry,
		events:    events,
		logger:    logger.With("component", "curtain", "device", cfg.Name),
	}
	d.Sync()
	return d
}

// Name returns the configured device name.
func (d *Device) Name() string { return d.name }

// Events returns the event bus state changes are published on.
func (d *Device) Events() *EventBus { return d.events }

// Sync reconciles the session table with the endpoint source: new
// endpoints get a fresh session, vanished endpoints lose theirs.
func (d *Device) Sync() {
	d.mu.Lock()
	defer d.mu.Unlock()
	known := d.endpoints.Endpoints()
	for _, ep := range known {
		if _, ok := d.sessions[ep]; !ok {
			d.sessions[ep] = newSession(ep, d.builder, d.logger)
			d.logger.Debug("session created", "endpoint", ep)
		}
	}
	for ep := range d.sessions {
		if !slices.Contains(known, ep) {
			delete(d.sessions, ep)
			d.logger.Debug("session removed", "endpoint", ep)
		}
	}
}

// Endpoints returns the endpoints that have a session, in ascending order.
func (d *Device) Endpoints() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	eps := make([]int, 0, len(d.sessions))
	for ep := range d.sessions {
		eps = append(eps, ep)
	}
	slices.Sort(eps)
	return eps
}

// State returns a snapshot of one gang's state.
func (d *Device) State(ep int) (State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[ep]
	if !ok {
		return State{}, false
	}
	return s.State(), true
}

// Reset re-initializes one gang's session to all-unknown.
func (d *Device) Reset(ep int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[ep]
	if !ok {
		return fmt.Errorf("%w %d", ErrNoSession, ep)
	}
	s.Reset()
	return nil
}

func (d *Device) Open(ep int) error {
	return d.command(ep, "open", (*Session).Open)
}

func (d *Device) Close(ep int) error {
	return d.command(ep, "close", (*Session).Close)
}

func (d *Device) Stop(ep int) error {
	return d.command(ep, "stop", (*Session).Stop)
}

// SetPosition moves a gang to a user position (0 = open, 100 = closed).
func (d *Device) SetPosition(ep, user int) error {
	return d.command(ep, "set_position", func(s *Session) frame.Batch { return s.SetPosition(user) })
}

func (d *Device) StartCalibration(ep int) error {
	return d.command(ep, "start_calibration", (*Session).StartCalibration)
}

func (d *Device) StopCalibration(ep int) error {
	return d.command(ep, "stop_calibration", (*Session).StopCalibration)
}

func (d *Device) SetMotorReversal(ep int, reversed bool) error {
	return d.command(ep, "set_motor_reversal", func(s *Session) frame.Batch { return s.SetMotorReversal(reversed) })
}

func (d *Device) SetCalibrationTime(ep int, seconds float64) error {
	return d.command(ep, "set_calibration_time", func(s *Session) frame.Batch { return s.SetCalibrationTime(seconds) })
}

func (d *Device) Refresh(ep int) error {
	return d.command(ep, "refresh", (*Session).Refresh)
}

// RefreshAll refreshes every gang, stopping at the first send error.
func (d *Device) RefreshAll() error {
	for _, ep := range d.Endpoints() {
		if err := d.Refresh(ep); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) command(ep int, op string, build func(*Session) frame.Batch) error {
	d.mu.Lock()
	s, ok := d.sessions[ep]
	if !ok {
		d.mu.Unlock()
		d.logger.Warn("command for endpoint without session, dropped", "endpoint", ep, "op", op)
		return fmt.Errorf("%s: %w %d", op, ErrNoSession, ep)
	}
	batch := build(s)
	d.mu.Unlock()

	if batch.Empty() {
		return nil
	}
	cmds := batch.Commands()
	d.logger.Debug("sending batch", "endpoint", ep, "op", op, "frames", len(cmds))
	if err := d.sender.Send(batch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	d.events.Emit(Event{Type: EventCommandSent, Data: CommandSent{
		Device:    d.name,
		Endpoint:  ep,
		Operation: op,
		Frames:    len(cmds),
	}})
	return nil
}
