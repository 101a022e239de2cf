package zcl

import "fmt"

// Cluster IDs referenced outside the cluster definitions.
const (
	ClusterBasic          uint16 = 0x0000
	ClusterWindowCovering uint16 = 0x0102
)

// Foundation ZCL command IDs (global, not cluster-specific).
const (
	FoundationReadAttributes         uint8 = 0x00
	FoundationReadAttributesResponse uint8 = 0x01
	FoundationWriteAttributes        uint8 = 0x02
	FoundationWriteAttributesResp    uint8 = 0x04
	FoundationReportAttributes       uint8 = 0x0A
	FoundationDefaultResponse        uint8 = 0x0B
)

// ZCL status codes
const (
	ZCLStatusSuccess         uint8 = 0x00
	ZCLStatusFailure         uint8 = 0x01
	ZCLStatusUnsupportedCmd  uint8 = 0x81
	ZCLStatusUnsupportedAttr uint8 = 0x86
	ZCLStatusInvalidValue    uint8 = 0x87
	ZCLStatusReadOnly        uint8 = 0x88
	ZCLStatusInvalidDataType uint8 = 0x8D
)

// StatusName returns a readable name for a ZCL status code.
func StatusName(status uint8) string {
	switch status {
	case ZCLStatusSuccess:
		return "success"
	case ZCLStatusFailure:
		return "failure"
	case ZCLStatusUnsupportedCmd:
		return "unsupported command"
	case ZCLStatusUnsupportedAttr:
		return "unsupported attribute"
	case ZCLStatusInvalidValue:
		return "invalid value"
	case ZCLStatusReadOnly:
		return "read only"
	case ZCLStatusInvalidDataType:
		return "invalid data type"
	default:
		return fmt.Sprintf("0x%02X", status)
	}
}
