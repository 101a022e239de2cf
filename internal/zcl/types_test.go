package zcl

import (
	"bytes"
	"testing"
)

func TestTypeSize(t *testing.T) {
	tests := []struct {
		typeID uint8
		want   int
	}{
		{TypeNoData, 0},
		{TypeBool, 1},
		{TypeUint8, 1},
		{TypeEnum8, 1},
		{TypeBitmap8, 1},
		{TypeUint16, 2},
		{TypeEnum16, 2},
		{TypeAttrID, 2},
		{TypeUint24, 3},
		{TypeUint32, 4},
		{TypeCharStr, -1},
		{0xFE, -1},
	}
	for _, tt := range tests {
		t.Run(TypeName(tt.typeID), func(t *testing.T) {
			if got := TypeSize(tt.typeID); got != tt.want {
				t.Errorf("TypeSize(0x%02X) = %d, want %d", tt.typeID, got, tt.want)
			}
		})
	}
}

func TestDecodeUintBigEndian(t *testing.T) {
	v, n, err := DecodeUint(TypeUint16, []byte{0x00, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("consumed %d, want 2", n)
	}
	if v != 255 {
		t.Errorf("got %d, want 255", v)
	}

	v, n, err = DecodeUint(TypeUint8, []byte{0x1E, 0x99})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || v != 30 {
		t.Errorf("got %d (%d bytes), want 30 (1 byte)", v, n)
	}
}

func TestDecodeUintShort(t *testing.T) {
	if _, _, err := DecodeUint(TypeUint16, []byte{0x01}); err == nil {
		t.Error("expected error for truncated uint16")
	}
	if _, _, err := DecodeUint(TypeCharStr, []byte{0x01, 0x41}); err == nil {
		t.Error("expected error for string type")
	}
}

func TestEncodeUint(t *testing.T) {
	tests := []struct {
		name   string
		typeID uint8
		v      uint64
		want   []byte
	}{
		{"uint8", TypeUint8, 70, []byte{0x46}},
		{"enum8", TypeEnum8, 1, []byte{0x01}},
		{"uint16", TypeUint16, 255, []byte{0x00, 0xFF}},
		{"attr id", TypeAttrID, 0xF001, []byte{0xF0, 0x01}},
		{"uint24", TypeUint24, 0x010203, []byte{0x01, 0x02, 0x03}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeUint(tt.typeID, tt.v)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeUint = %X, want %X", got, tt.want)
			}
		})
	}
}

func TestEncodeUintOverflow(t *testing.T) {
	if _, err := EncodeUint(TypeUint8, 256); err == nil {
		t.Error("expected overflow error for uint8")
	}
	if _, err := EncodeUint(TypeBool, 2); err == nil {
		t.Error("expected error for bool 2")
	}
	if _, err := EncodeUint(TypeCharStr, 1); err == nil {
		t.Error("expected error for string type")
	}
}

func TestDecodeBytes(t *testing.T) {
	v, err := DecodeBytes([]byte{0x00, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if v != 255 {
		t.Errorf("got %d, want 255", v)
	}
	if _, err := DecodeBytes(make([]byte, 9)); err == nil {
		t.Error("expected error for 9-byte value")
	}
}
