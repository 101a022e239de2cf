package zcl

import (
	"fmt"
)

// ZCL data type IDs
const (
	TypeNoData   uint8 = 0x00
	TypeBool     uint8 = 0x10
	TypeBitmap8  uint8 = 0x18
	TypeBitmap16 uint8 = 0x19
	TypeUint8    uint8 = 0x20
	TypeUint16   uint8 = 0x21
	TypeUint24   uint8 = 0x22
	TypeUint32   uint8 = 0x23
	TypeInt8     uint8 = 0x28
	TypeInt16    uint8 = 0x29
	TypeEnum8    uint8 = 0x30
	TypeEnum16   uint8 = 0x31
	TypeCharStr  uint8 = 0x42
	TypeAttrID   uint8 = 0xE9
)

// TypeSize returns the fixed size in bytes of a ZCL type, or -1 for types
// this codec does not carry as fixed-width integers.
func TypeSize(typeID uint8) int {
	switch typeID {
	case TypeNoData:
		return 0
	case TypeBool, TypeUint8, TypeInt8, TypeEnum8, TypeBitmap8:
		return 1
	case TypeUint16, TypeInt16, TypeEnum16, TypeBitmap16, TypeAttrID:
		return 2
	case TypeUint24:
		return 3
	case TypeUint32:
		return 4
	default:
		return -1
	}
}

// TypeName returns a human-readable name for a ZCL type.
func TypeName(typeID uint8) string {
	switch typeID {
	case TypeNoData:
		return "nodata"
	case TypeBool:
		return "bool"
	case TypeBitmap8:
		return "map8"
	case TypeBitmap16:
		return "map16"
	case TypeUint8:
		return "uint8"
	case TypeUint16:
		return "uint16"
	case TypeUint24:
		return "uint24"
	case TypeUint32:
		return "uint32"
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeEnum8:
		return "enum8"
	case TypeEnum16:
		return "enum16"
	case TypeCharStr:
		return "string"
	case TypeAttrID:
		return "attrId"
	default:
		return fmt.Sprintf("0x%02X", typeID)
	}
}

// DecodeUint decodes a fixed-width ZCL integer from big-endian bytes,
// returning the value and bytes consumed. Signed types are returned as
// their two's-complement bit pattern.
func DecodeUint(typeID uint8, data []byte) (uint64, int, error) {
	size := TypeSize(typeID)
	if size < 0 {
		return 0, 0, fmt.Errorf("zcl: type %s is not a fixed-width integer", TypeName(typeID))
	}
	if len(data) < size {
		return 0, 0, fmt.Errorf("zcl: not enough data for type 0x%02X: need %d, have %d", typeID, size, len(data))
	}
	var v uint64
	for _, b := range data[:size] {
		v = v<<8 | uint64(b)
	}
	return v, size, nil
}

// EncodeUint encodes v as a big-endian ZCL integer of the given type.
func EncodeUint(typeID uint8, v uint64) ([]byte, error) {
	size := TypeSize(typeID)
	if size < 0 {
		return nil, fmt.Errorf("zcl: encode not implemented for type 0x%02X", typeID)
	}
	if size < 8 && v >= 1<<(8*uint(size)) {
		return nil, fmt.Errorf("zcl: value %d overflows %s", v, TypeName(typeID))
	}
	if typeID == TypeBool && v > 1 {
		return nil, fmt.Errorf("zcl: value %d is not a bool", v)
	}
	buf := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf, nil
}

// DecodeBytes decodes a big-endian integer of arbitrary width (up to 8 bytes),
// used when a frame carries a value without a type tag.
func DecodeBytes(data []byte) (uint64, error) {
	if len(data) > 8 {
		return 0, fmt.Errorf("zcl: value of %d bytes does not fit in 64 bits", len(data))
	}
	var v uint64
	for _, b := range data {
		v = v<<8 | uint64(b)
	}
	return v, nil
}
