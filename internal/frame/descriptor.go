package frame

import (
	"fmt"

	"curtain-bridge/internal/zcl"
)

// Kind identifies which of the three inbound shapes a Descriptor holds.
type Kind uint8

const (
	KindAttributeReport Kind = iota + 1
	KindDefaultResponse
	KindWriteResponse
)

func (k Kind) String() string {
	switch k {
	case KindAttributeReport:
		return "attribute_report"
	case KindDefaultResponse:
		return "default_response"
	case KindWriteResponse:
		return "write_response"
	default:
		return "unknown"
	}
}

// AttributeReport carries one attribute value.
type AttributeReport struct {
	AttrID uint16
	Type   uint8 // zero when the frame carried no type tag
	Value  uint64
}

// DefaultResponse acknowledges a fire-and-forget command.
type DefaultResponse struct {
	Command uint8 // acknowledged command ID
	Status  uint8
}

// WriteResponse answers a write-attributes request. On failure the device
// may name the attribute that was rejected.
type WriteResponse struct {
	Status  uint8
	AttrID  uint16
	HasAttr bool
}

// Descriptor is a decoded inbound frame. Exactly one of Report, Ack and
// Write is set.
type Descriptor struct {
	Endpoint int
	Cluster  uint16
	Report   *AttributeReport
	Ack      *DefaultResponse
	Write    *WriteResponse
}

// Kind reports which shape the descriptor holds.
func (d Descriptor) Kind() Kind {
	switch {
	case d.Report != nil:
		return KindAttributeReport
	case d.Ack != nil:
		return KindDefaultResponse
	case d.Write != nil:
		return KindWriteResponse
	}
	return 0
}

// Decode turns a raw frame into a Descriptor. Command frames
// (default-response, write-attributes-response) are recognised by their
// "command" field before attribute decoding is attempted.
func Decode(raw Raw) (Descriptor, error) {
	ep, err := raw.Endpoint()
	if err != nil {
		return Descriptor{}, err
	}
	cluster, err := raw.Cluster()
	if err != nil {
		return Descriptor{}, err
	}
	d := Descriptor{Endpoint: ep, Cluster: cluster}

	if cmdVal, ok := raw["command"]; ok && cmdVal != nil {
		cmd, err := toInt(cmdVal, true)
		if err != nil || cmd < 0 || cmd > 0xFF {
			return Descriptor{}, fmt.Errorf("%w: command %v", ErrMalformedFrame, cmdVal)
		}
		var data []byte
		if dv, ok := raw["data"]; ok && dv != nil {
			if data, err = bytesField(dv); err != nil {
				return Descriptor{}, fmt.Errorf("%w: data: %v", ErrMalformedFrame, err)
			}
		}
		switch uint8(cmd) {
		case zcl.FoundationDefaultResponse:
			if len(data) < 2 {
				return Descriptor{}, fmt.Errorf("%w: default response needs 2 data bytes, have %d", ErrMalformedFrame, len(data))
			}
			d.Ack = &DefaultResponse{Command: data[0], Status: data[1]}
		case zcl.FoundationWriteAttributesResp:
			if len(data) < 1 {
				return Descriptor{}, fmt.Errorf("%w: write response has no status", ErrMalformedFrame)
			}
			d.Write = &WriteResponse{Status: data[0]}
			if len(data) >= 3 {
				d.Write.AttrID = uint16(data[1])<<8 | uint16(data[2])
				d.Write.HasAttr = true
			}
		default:
			return Descriptor{}, fmt.Errorf("%w: 0x%02X", ErrUnsupportedCommand, cmd)
		}
		return d, nil
	}

	attrVal, ok := raw.lookup(attrKeys)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: neither command nor attribute", ErrMalformedFrame)
	}
	attr, err := toInt(attrVal, true)
	if err != nil || attr < 0 || attr > 0xFFFF {
		return Descriptor{}, fmt.Errorf("%w: attribute %v", ErrMalformedFrame, attrVal)
	}
	report := &AttributeReport{AttrID: uint16(attr)}
	if tv, ok := raw.lookup(typeKeys); ok {
		typ, err := toInt(tv, true)
		if err != nil || typ < 0 || typ > 0xFF {
			return Descriptor{}, fmt.Errorf("%w: encoding %v", ErrMalformedFrame, tv)
		}
		report.Type = uint8(typ)
	}
	value, ok := raw["value"]
	if !ok || value == nil {
		return Descriptor{}, fmt.Errorf("%w: attribute 0x%04X has no value", ErrMalformedFrame, attr)
	}
	if report.Value, err = attributeValue(report.Type, value); err != nil {
		return Descriptor{}, fmt.Errorf("%w: attribute 0x%04X: %v", ErrMalformedFrame, attr, err)
	}
	d.Report = report
	return d, nil
}

// attributeValue reads a report value. Strings are big-endian hex; when
// the type tag is known the bytes are checked against its width.
func attributeValue(typ uint8, v any) (uint64, error) {
	var s string
	switch val := v.(type) {
	case Hex:
		s = string(val)
	case string:
		s = val
	default:
		n, err := toInt(v, true)
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, fmt.Errorf("negative value %d", n)
		}
		return uint64(n), nil
	}
	b, err := hexBytes(s)
	if err != nil {
		return 0, err
	}
	if typ == 0 {
		return zcl.DecodeBytes(b)
	}
	size := zcl.TypeSize(typ)
	if size < 0 {
		return 0, fmt.Errorf("unsupported value type %s", zcl.TypeName(typ))
	}
	// Hubs strip leading zero bytes; left-pad to the declared width.
	if len(b) < size {
		padded := make([]byte, size)
		copy(padded[size-len(b):], b)
		b = padded
	}
	if len(b) > size {
		return 0, fmt.Errorf("value has %d bytes, %s holds %d", len(b), zcl.TypeName(typ), size)
	}
	n, _, err := zcl.DecodeUint(typ, b)
	return n, err
}
