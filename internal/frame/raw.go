// Package frame parses inbound hub frames into descriptors and renders
// outbound command frames onto the hub link.
package frame

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedFrame is returned for frames that cannot be parsed at all.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrNoEndpoint is returned when a frame carries no source endpoint.
	ErrNoEndpoint = errors.New("frame has no endpoint")
	// ErrUnsupportedCommand is returned for global commands other than
	// default-response and write-attributes-response.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// Hex is a field value that is always hexadecimal, as in the hub's
// descriptor text.
type Hex string

// Raw is an inbound frame as delivered by the hub: a loose key/value
// map whose values may be Hex, string, or numeric.
type Raw map[string]any

// Field aliases, first match wins.
var (
	endpointKeys = []string{"endpoint", "sourceEndpoint"}
	clusterKeys  = []string{"cluster", "clusterId"}
	attrKeys     = []string{"attrId", "attributeId"}
	typeKeys     = []string{"encoding", "type"}
)

// ParseDescription parses a hub descriptor line such as
//
//	read attr - endpoint: 02, cluster: 0102, attrId: 0008, encoding: 20, value: 1e
//
// Every value is kept as Hex. The leading "<kind> - " part is optional and
// is stored under "kind".
func ParseDescription(line string) (Raw, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedFrame)
	}
	raw := Raw{}
	if kind, rest, ok := strings.Cut(line, " - "); ok {
		raw["kind"] = strings.TrimSpace(kind)
		line = rest
	}

	// Bracketed lists contain ", " so split on top-level commas only.
	depth := 0
	start := 0
	var parts []string
	for i, r := range line {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, line[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, line[start:])

	for _, p := range parts {
		key, val, ok := strings.Cut(p, ":")
		if !ok {
			return nil, fmt.Errorf("%w: field %q has no value", ErrMalformedFrame, strings.TrimSpace(p))
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrMalformedFrame)
		}
		raw[key] = Hex(strings.TrimSpace(val))
	}
	return raw, nil
}

// ParseJSON parses a JSON object frame as sent by websocket hubs.
func ParseJSON(data []byte) (Raw, error) {
	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: null frame", ErrMalformedFrame)
	}
	return raw, nil
}

// Parse accepts either encoding: JSON objects or descriptor text.
func Parse(data []byte) (Raw, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return ParseJSON([]byte(trimmed))
	}
	return ParseDescription(trimmed)
}

func (r Raw) lookup(keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Endpoint returns the endpoint the frame was sent from.
// It accepts integers, JSON numbers, Hex, "0x"-prefixed hex strings,
// decimal strings, and bare hex strings.
func (r Raw) Endpoint() (int, error) {
	v, ok := r.lookup(endpointKeys)
	if !ok {
		return 0, ErrNoEndpoint
	}
	n, err := toInt(v, false)
	if err != nil {
		return 0, fmt.Errorf("%w: endpoint: %v", ErrMalformedFrame, err)
	}
	if n <= 0 || n > 0xFF {
		return 0, fmt.Errorf("%w: endpoint %d out of range", ErrMalformedFrame, n)
	}
	return int(n), nil
}

// Cluster returns the cluster ID of the frame. Plain strings are hex,
// matching how hubs print cluster IDs.
func (r Raw) Cluster() (uint16, error) {
	v, ok := r.lookup(clusterKeys)
	if !ok {
		return 0, fmt.Errorf("%w: no cluster", ErrMalformedFrame)
	}
	n, err := toInt(v, true)
	if err != nil || n < 0 || n > math.MaxUint16 {
		return 0, fmt.Errorf("%w: cluster %v", ErrMalformedFrame, v)
	}
	return uint16(n), nil
}

// toInt converts a loose field value to an integer. With hexStrings set,
// plain strings are always read as hex; otherwise a string of decimal
// digits is read as decimal.
func toInt(v any, hexStrings bool) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("non-integer %v", val)
		}
		return int64(val), nil
	case json.Number:
		return val.Int64()
	case Hex:
		return parseHexInt(string(val))
	case string:
		s := strings.TrimSpace(val)
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			return parseHexInt(s[2:])
		}
		if !hexStrings && isDecimal(s) {
			return strconv.ParseInt(s, 10, 64)
		}
		return parseHexInt(s)
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

func parseHexInt(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if s == "" {
		return 0, errors.New("empty value")
	}
	return strconv.ParseInt(s, 16, 64)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// hexBytes decodes a hex string, tolerating an odd digit count, a "0x"
// prefix, and the "[05, 00]" list form.
func hexBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
		var out []byte
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			n, err := parseHexInt(item)
			if err != nil || n < 0 || n > 0xFF {
				return nil, fmt.Errorf("bad byte %q", item)
			}
			out = append(out, byte(n))
		}
		return out, nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// bytesField reads a byte sequence field such as "data".
func bytesField(v any) ([]byte, error) {
	switch val := v.(type) {
	case Hex:
		return hexBytes(string(val))
	case string:
		return hexBytes(val)
	case []byte:
		return val, nil
	case []any:
		out := make([]byte, 0, len(val))
		for _, item := range val {
			n, err := toInt(item, true)
			if err != nil || n < 0 || n > 0xFF {
				return nil, fmt.Errorf("bad byte %v", item)
			}
			out = append(out, byte(n))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}
