package curtain

import (
	"errors"
	"testing"

	"curtain-bridge/internal/zcl"
	"curtain-bridge/internal/zcl/clusters"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		attr uint16
		raw  uint64
		want Value
	}{
		{"position", clusters.AttrPositionLiftPercentage, 30, DevicePosition(30)},
		{"position out of range kept raw", clusters.AttrPositionLiftPercentage, 150, DevicePosition(150)},
		{"stopped", clusters.AttrOperationalStatus, 0, MovementStopped},
		{"opening", clusters.AttrOperationalStatus, 1, MovementOpening},
		{"closing", clusters.AttrOperationalStatus, 2, MovementClosing},
		{"status other", clusters.AttrOperationalStatus, 7, MovementUnknown},
		{"calibration 0 is active", clusters.AttrCalibrationMode, 0, CalibrationActive},
		{"calibration 1 is inactive", clusters.AttrCalibrationMode, 1, CalibrationInactive},
		{"calibration other", clusters.AttrCalibrationMode, 2, CalibrationUnknown},
		{"motor normal", clusters.AttrMotorReversal, 0, MotorNormal},
		{"motor reversed", clusters.AttrMotorReversal, 1, MotorReversed},
		{"calibration time", clusters.AttrCalibrationTime, 255, CalibrationTime(255)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.attr, tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Decode(0x%04X, %d) = %#v, want %#v", tt.attr, tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeUnknownAttribute(t *testing.T) {
	_, err := Decode(0x0000, 1)
	if !errors.Is(err, ErrUnknownAttribute) {
		t.Errorf("err = %v, want ErrUnknownAttribute", err)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		attr uint16
		typ  uint8
		raw  uint64
	}{
		{"position", DevicePosition(70), clusters.AttrPositionLiftPercentage, zcl.TypeUint8, 70},
		{"position clamped", DevicePosition(120), clusters.AttrPositionLiftPercentage, zcl.TypeUint8, 100},
		{"active", CalibrationActive, clusters.AttrCalibrationMode, zcl.TypeEnum8, 0},
		{"inactive", CalibrationInactive, clusters.AttrCalibrationMode, zcl.TypeEnum8, 1},
		{"normal", MotorNormal, clusters.AttrMotorReversal, zcl.TypeEnum8, 0},
		{"reversed", MotorReversed, clusters.AttrMotorReversal, zcl.TypeEnum8, 1},
		{"time", CalibrationTime(255), clusters.AttrCalibrationTime, zcl.TypeUint16, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, typ, raw, err := Encode(tt.v)
			if err != nil {
				t.Fatal(err)
			}
			if attr != tt.attr || typ != tt.typ || raw != tt.raw {
				t.Errorf("Encode(%v) = 0x%04X/0x%02X/%d, want 0x%04X/0x%02X/%d", tt.v, attr, typ, raw, tt.attr, tt.typ, tt.raw)
			}
		})
	}
}

func TestEncodeErrors(t *testing.T) {
	if _, _, _, err := Encode(MovementOpening); !errors.Is(err, ErrReadOnly) {
		t.Errorf("movement: err = %v, want ErrReadOnly", err)
	}
	if _, _, _, err := Encode(CalibrationUnknown); !errors.Is(err, ErrUnencodable) {
		t.Errorf("calibration unknown: err = %v, want ErrUnencodable", err)
	}
	if _, _, _, err := Encode(MotorUnknown); !errors.Is(err, ErrUnencodable) {
		t.Errorf("motor unknown: err = %v, want ErrUnencodable", err)
	}
}

func TestCalibrationTimeRoundTrip(t *testing.T) {
	ct := CalibrationTimeFromSeconds(25.5)
	if ct != 255 {
		t.Fatalf("25.5s = %d tenths, want 255", ct)
	}
	_, _, raw, err := Encode(ct)
	if err != nil {
		t.Fatal(err)
	}
	v, err := Decode(clusters.AttrCalibrationTime, raw)
	if err != nil {
		t.Fatal(err)
	}
	if got := v.(CalibrationTime).Seconds(); got != 25.5 {
		t.Errorf("round trip = %v, want 25.5", got)
	}

	if CalibrationTimeFromSeconds(0) != 0 {
		t.Error("0s should be 0 tenths")
	}
}

func TestCalibrationTimeFromSecondsClamps(t *testing.T) {
	tests := []struct {
		seconds float64
		want    CalibrationTime
	}{
		{-3, 0},
		{0.04, 0},
		{0.05, 1},
		{12.34, 123},
		{99999, 65535},
	}
	for _, tt := range tests {
		if got := CalibrationTimeFromSeconds(tt.seconds); got != tt.want {
			t.Errorf("CalibrationTimeFromSeconds(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}
