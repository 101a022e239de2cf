// Package curtain translates between the two-gang curtain module's Window
// Covering attributes and per-gang window shade state.
package curtain

import (
	"errors"
	"fmt"
	"math"

	"curtain-bridge/internal/zcl"
	"curtain-bridge/internal/zcl/clusters"
)

var (
	// ErrUnknownAttribute is returned by Decode for attributes the codec does not model.
	ErrUnknownAttribute = errors.New("unknown attribute")
	// ErrReadOnly is returned by Encode for values the device only reports.
	ErrReadOnly = errors.New("attribute is read-only")
	// ErrUnencodable is returned by Encode for unknown enum values.
	ErrUnencodable = errors.New("value cannot be encoded")
)

// Value is a decoded attribute value.
type Value interface {
	Attribute() uint16
}

// DevicePosition is the lift percentage as the device reports it:
// 0 = fully closed, 100 = fully open.
type DevicePosition int

// MovementStatus is the decoded operational status.
type MovementStatus uint8

const (
	MovementUnknown MovementStatus = iota
	MovementStopped
	MovementOpening
	MovementClosing
)

func (m MovementStatus) String() string {
	switch m {
	case MovementStopped:
		return "stopped"
	case MovementOpening:
		return "opening"
	case MovementClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// CalibrationMode is the vendor calibration toggle. The device writes and
// reports 0 for active (limits cleared, learning) and 1 for inactive
// (learned limits saved).
type CalibrationMode uint8

const (
	CalibrationUnknown CalibrationMode = iota
	CalibrationActive
	CalibrationInactive
)

func (c CalibrationMode) String() string {
	switch c {
	case CalibrationActive:
		return "active"
	case CalibrationInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// MotorDirection is the vendor motor reversal setting.
type MotorDirection uint8

const (
	MotorUnknown MotorDirection = iota
	MotorNormal
	MotorReversed
)

func (m MotorDirection) String() string {
	switch m {
	case MotorNormal:
		return "normal"
	case MotorReversed:
		return "reversed"
	default:
		return "unknown"
	}
}

// CalibrationTime is the full-travel time in tenths of a second, the
// device's native unit.
type CalibrationTime uint16

// CalibrationTimeFromSeconds converts seconds to tenths, rounding to the
// nearest tenth and clamping into the attribute's range.
func CalibrationTimeFromSeconds(seconds float64) CalibrationTime {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	tenths := math.Round(seconds * 10)
	if tenths > math.MaxUint16 {
		return math.MaxUint16
	}
	return CalibrationTime(tenths)
}

// Seconds returns the travel time in seconds with one decimal.
func (c CalibrationTime) Seconds() float64 {
	return float64(c) / 10
}

func (DevicePosition) Attribute() uint16  { return clusters.AttrPositionLiftPercentage }
func (MovementStatus) Attribute() uint16  { return clusters.AttrOperationalStatus }
func (CalibrationMode) Attribute() uint16 { return clusters.AttrCalibrationMode }
func (MotorDirection) Attribute() uint16  { return clusters.AttrMotorReversal }
func (CalibrationTime) Attribute() uint16 { return clusters.AttrCalibrationTime }

// Decode maps a raw Window Covering attribute value to its semantic value.
// Out-of-table enum values decode to the type's Unknown member.
func Decode(attrID uint16, raw uint64) (Value, error) {
	switch attrID {
	case clusters.AttrPositionLiftPercentage:
		if raw > math.MaxInt32 {
			raw = math.MaxInt32
		}
		return DevicePosition(raw), nil
	case clusters.AttrOperationalStatus:
		switch raw {
		case 0:
			return MovementStopped, nil
		case 1:
			return MovementOpening, nil
		case 2:
			return MovementClosing, nil
		}
		return MovementUnknown, nil
	case clusters.AttrCalibrationMode:
		switch raw {
		case 0:
			return CalibrationActive, nil
		case 1:
			return CalibrationInactive, nil
		}
		return CalibrationUnknown, nil
	case clusters.AttrMotorReversal:
		switch raw {
		case 0:
			return MotorNormal, nil
		case 1:
			return MotorReversed, nil
		}
		return MotorUnknown, nil
	case clusters.AttrCalibrationTime:
		if raw > math.MaxUint16 {
			raw = math.MaxUint16
		}
		return CalibrationTime(raw), nil
	}
	return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownAttribute, attrID)
}

// Encode maps a semantic value to the attribute it is written to, the
// wire data type, and the raw value.
func Encode(v Value) (attrID uint16, typ uint8, raw uint64, err error) {
	attrID = v.Attribute()
	switch val := v.(type) {
	case DevicePosition:
		return attrID, zcl.TypeUint8, uint64(clampPercent(int(val))), nil
	case MovementStatus:
		return attrID, 0, 0, fmt.Errorf("%w: operational status", ErrReadOnly)
	case CalibrationMode:
		switch val {
		case CalibrationActive:
			return attrID, zcl.TypeEnum8, 0, nil
		case CalibrationInactive:
			return attrID, zcl.TypeEnum8, 1, nil
		}
	case MotorDirection:
		switch val {
		case MotorNormal:
			return attrID, zcl.TypeEnum8, 0, nil
		case MotorReversed:
			return attrID, zcl.TypeEnum8, 1, nil
		}
	case CalibrationTime:
		return attrID, zcl.TypeUint16, uint64(val), nil
	}
	return attrID, 0, 0, fmt.Errorf("%w: %v", ErrUnencodable, v)
}
