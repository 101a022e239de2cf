package clusters

import "curtain-bridge/internal/zcl"

// Window Covering attribute IDs as exposed by the two-gang curtain module.
// The F0xx range is manufacturer-specific.
const (
	AttrPositionLiftPercentage uint16 = 0x0008
	AttrOperationalStatus      uint16 = 0x0009
	AttrCalibrationMode        uint16 = 0xF001
	AttrMotorReversal          uint16 = 0xF002
	AttrCalibrationTime        uint16 = 0xF003
)

// Window Covering cluster command IDs.
const (
	CmdUpOpen             uint8 = 0x00
	CmdDownClose          uint8 = 0x01
	CmdStop               uint8 = 0x02
	CmdGoToLiftPercentage uint8 = 0x05
)

var WindowCovering = zcl.ClusterDef{
	ID:   zcl.ClusterWindowCovering,
	Name: "Window Covering",
	Attributes: []zcl.AttributeDef{
		{ID: AttrPositionLiftPercentage, Name: "CurrentPositionLiftPercentage", Type: zcl.TypeUint8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: AttrOperationalStatus, Name: "OperationalStatus", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessReport},
		{ID: AttrCalibrationMode, Name: "CalibrationMode", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite, Vendor: true},
		{ID: AttrMotorReversal, Name: "MotorReversal", Type: zcl.TypeEnum8, Access: zcl.AccessRead | zcl.AccessWrite, Vendor: true},
		{ID: AttrCalibrationTime, Name: "CalibrationTime", Type: zcl.TypeUint16, Access: zcl.AccessRead | zcl.AccessWrite, Vendor: true},
	},
	Commands: []zcl.CommandDef{
		{ID: CmdUpOpen, Name: "UpOpen", Direction: zcl.DirectionToServer},
		{ID: CmdDownClose, Name: "DownClose", Direction: zcl.DirectionToServer},
		{ID: CmdStop, Name: "Stop", Direction: zcl.DirectionToServer},
		{ID: CmdGoToLiftPercentage, Name: "GoToLiftPercentage", Direction: zcl.DirectionToServer},
	},
}
