package clusters

import "curtain-bridge/internal/zcl"

// Basic is registered only so unmodeled frames from it (health-check reads,
// boot announcements) are logged by name before they are dropped.
var Basic = zcl.ClusterDef{
	ID:   zcl.ClusterBasic,
	Name: "Basic",
	Attributes: []zcl.AttributeDef{
		{ID: 0x0000, Name: "ZCLVersion", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0001, Name: "ApplicationVersion", Type: zcl.TypeUint8, Access: zcl.AccessRead},
		{ID: 0x0004, Name: "ManufacturerName", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0005, Name: "ModelIdentifier", Type: zcl.TypeCharStr, Access: zcl.AccessRead},
		{ID: 0x0007, Name: "PowerSource", Type: zcl.TypeEnum8, Access: zcl.AccessRead},
	},
}
