package curtain

// ShadeState is the controller-facing window shade state.
type ShadeState uint8

const (
	ShadeUnknown ShadeState = iota
	ShadeOpen
	ShadeClosed
	ShadePartiallyOpen
	ShadeOpening
	ShadeClosing
)

func (s ShadeState) String() string {
	switch s {
	case ShadeOpen:
		return "open"
	case ShadeClosed:
		return "closed"
	case ShadePartiallyOpen:
		return "partially_open"
	case ShadeOpening:
		return "opening"
	case ShadeClosing:
		return "closing"
	default:
		return "unknown"
	}
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ToDevice converts a user position (0 = open, 100 = closed) to the
// device's inverted lift percentage. Input and output are clamped to 0..100.
func ToDevice(user int) int {
	return clampPercent(100 - clampPercent(user))
}

// ToUser converts a device lift percentage (0 = closed, 100 = open) to a
// user position. Input and output are clamped to 0..100.
func ToUser(device int) int {
	return clampPercent(100 - clampPercent(device))
}

// ShadeStateFor derives the resting shade state from a user position.
func ShadeStateFor(user int) ShadeState {
	switch clampPercent(user) {
	case 0:
		return ShadeOpen
	case 100:
		return ShadeClosed
	default:
		return ShadePartiallyOpen
	}
}

// ShadeStateForMovement applies a movement status on top of the current
// shade state. A stop does not reveal where the curtain came to rest, so
// stopped and unknown statuses leave the state for the next position
// report to settle.
func ShadeStateForMovement(status MovementStatus, current ShadeState) ShadeState {
	switch status {
	case MovementOpening:
		return ShadeOpening
	case MovementClosing:
		return ShadeClosing
	default:
		return current
	}
}
