package curtain

// CalibrationState is the two-state calibration model.
type CalibrationState uint8

const (
	CalibrationStateUnknown CalibrationState = iota
	CalibrationIdle
	CalibrationCalibrating
)

func (c CalibrationState) String() string {
	switch c {
	case CalibrationIdle:
		return "idle"
	case CalibrationCalibrating:
		return "calibrating"
	default:
		return "unknown"
	}
}

// Calibration tracks the last calibration mode the device confirmed and
// the mode most recently requested. Only a read-back report moves the
// confirmed mode; a request that is never answered leaves it unchanged.
type Calibration struct {
	confirmed CalibrationMode
	pending   CalibrationMode
}

// Request records that a write of mode has been issued.
func (c *Calibration) Request(mode CalibrationMode) {
	c.pending = mode
}

// Confirm applies a reported mode. It returns whether the confirmed mode
// changed and whether the report answered the pending request.
func (c *Calibration) Confirm(mode CalibrationMode) (changed, answered bool) {
	if mode == CalibrationUnknown {
		return false, false
	}
	answered = c.pending != CalibrationUnknown && c.pending == mode
	if answered {
		c.pending = CalibrationUnknown
	}
	changed = c.confirmed != mode
	c.confirmed = mode
	return changed, answered
}

// Reject drops the pending request after the device refused the write.
// It returns the mode that was pending.
func (c *Calibration) Reject() CalibrationMode {
	p := c.pending
	c.pending = CalibrationUnknown
	return p
}

// Mode returns the last confirmed mode.
func (c *Calibration) Mode() CalibrationMode { return c.confirmed }

// Pending returns the requested but unconfirmed mode.
func (c *Calibration) Pending() CalibrationMode { return c.pending }

// State maps the confirmed mode onto the idle/calibrating model.
func (c *Calibration) State() CalibrationState {
	switch c.confirmed {
	case CalibrationActive:
		return CalibrationCalibrating
	case CalibrationInactive:
		return CalibrationIdle
	default:
		return CalibrationStateUnknown
	}
}
