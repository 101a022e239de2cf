package curtain

import (
	"log/slog"

	"curtain-bridge/internal/frame"
)

// Fields reported through EventStateChanged.
const (
	FieldPosition         = "position"
	FieldDevicePosition   = "device_position"
	FieldShadeState       = "shade_state"
	FieldCalibrationMode  = "calibration_mode"
	FieldCalibrationState = "calibration_state"
	FieldMotorDirection   = "motor_direction"
	FieldCalibrationTime  = "calibration_time"
)

// State is the latest decoded state of one gang. Zero values mean unknown.
type State struct {
	UserPosition         int
	DevicePosition       int
	PositionKnown        bool
	Shade                ShadeState
	Calibration          CalibrationMode
	CalibrationState     CalibrationState
	Motor                MotorDirection
	CalibrationTime      CalibrationTime
	CalibrationTimeKnown bool
}

// Change is one field update produced by applying a report.
type Change struct {
	Field string
	Value any
}

// Session holds one gang's state and builds its command batches.
// State changes only through Apply; issuing commands never touches it.
type Session struct {
	endpoint    int
	builder     *Builder
	state       State
	calibration Calibration
	logger      *slog.Logger
}

func newSession(ep int, builder *Builder, logger *slog.Logger) *Session {
	return &Session{
		endpoint: ep,
		builder:  builder,
		logger:   logger.With("endpoint", ep),
	}
}

// Endpoint returns the gang's endpoint ID.
func (s *Session) Endpoint() int { return s.endpoint }

// State returns a copy of the current state.
func (s *Session) State() State { return s.state }

// Reset re-initializes the session to all-unknown.
func (s *Session) Reset() {
	s.state = State{}
	s.calibration = Calibration{}
}

// Apply updates the session from one decoded attribute value and returns
// the fields that changed.
func (s *Session) Apply(v Value) []Change {
	var changes []Change
	switch val := v.(type) {
	case DevicePosition:
		dev := clampPercent(int(val))
		user := ToUser(dev)
		if !s.state.PositionKnown || s.state.DevicePosition != dev {
			changes = append(changes,
				Change{FieldDevicePosition, dev},
				Change{FieldPosition, user})
		}
		s.state.DevicePosition = dev
		s.state.UserPosition = user
		s.state.PositionKnown = true
		changes = s.setShade(ShadeStateFor(user), changes)

	case MovementStatus:
		if val == MovementUnknown {
			s.logger.Warn("unknown movement status, ignored")
			break
		}
		changes = s.setShade(ShadeStateForMovement(val, s.state.Shade), changes)

	case CalibrationMode:
		if val == CalibrationUnknown {
			s.logger.Warn("unexpected calibration mode value, ignored")
			break
		}
		changed, answered := s.calibration.Confirm(val)
		if answered {
			s.logger.Info("calibration change confirmed", "mode", val, "state", s.calibration.State())
		}
		s.state.Calibration = val
		s.state.CalibrationState = s.calibration.State()
		if changed {
			changes = append(changes,
				Change{FieldCalibrationMode, val.String()},
				Change{FieldCalibrationState, s.state.CalibrationState.String()})
		}

	case MotorDirection:
		if val == MotorUnknown {
			s.logger.Warn("unexpected motor reversal value, ignored")
			break
		}
		if s.state.Motor != val {
			changes = append(changes, Change{FieldMotorDirection, val.String()})
		}
		s.state.Motor = val

	case CalibrationTime:
		if !s.state.CalibrationTimeKnown || s.state.CalibrationTime != val {
			changes = append(changes, Change{FieldCalibrationTime, val.Seconds()})
		}
		s.state.CalibrationTime = val
		s.state.CalibrationTimeKnown = true
	}
	return changes
}

func (s *Session) setShade(shade ShadeState, changes []Change) []Change {
	if shade == s.state.Shade {
		return changes
	}
	s.state.Shade = shade
	return append(changes, Change{FieldShadeState, shade.String()})
}

// rejectCalibration drops a pending calibration request after the device
// refused the write; the confirmed mode is kept.
func (s *Session) rejectCalibration() {
	if p := s.calibration.Reject(); p != CalibrationUnknown {
		s.logger.Warn("calibration change rejected", "requested", p, "mode", s.calibration.Mode())
	}
}

func (s *Session) Open() frame.Batch  { return s.builder.Open(s.endpoint) }
func (s *Session) Close() frame.Batch { return s.builder.Close(s.endpoint) }
func (s *Session) Stop() frame.Batch  { return s.builder.Stop(s.endpoint) }

// SetPosition moves to a user position; out-of-range input is clamped.
func (s *Session) SetPosition(user int) frame.Batch {
	return s.builder.SetPosition(s.endpoint, user)
}

// StartCalibration clears the learned limits and enters calibration.
func (s *Session) StartCalibration() frame.Batch {
	s.calibration.Request(CalibrationActive)
	return s.builder.StartCalibration(s.endpoint)
}

// StopCalibration leaves calibration, saving the learned limits.
func (s *Session) StopCalibration() frame.Batch {
	s.calibration.Request(CalibrationInactive)
	return s.builder.StopCalibration(s.endpoint)
}

func (s *Session) SetMotorReversal(reversed bool) frame.Batch {
	return s.builder.SetMotorReversal(s.endpoint, reversed)
}

func (s *Session) SetCalibrationTime(seconds float64) frame.Batch {
	return s.builder.SetCalibrationTime(s.endpoint, seconds)
}

func (s *Session) Refresh() frame.Batch { return s.builder.Refresh(s.endpoint) }
