package frame

import (
	"fmt"
	"strings"
	"time"

	"curtain-bridge/internal/zcl"
)

// CommandKind distinguishes the outbound frame shapes.
type CommandKind uint8

const (
	KindClusterCommand CommandKind = iota + 1
	KindWriteAttribute
	KindReadAttribute
)

// Command is one outbound unit addressed to an endpoint.
type Command struct {
	Endpoint int
	Cluster  uint16
	Kind     CommandKind

	// Cluster command.
	Command uint8
	Payload []byte

	// Attribute write/read.
	AttrID uint16
	Type   uint8
	Value  uint64
}

// NewClusterCommand builds a cluster-specific command with an optional payload.
func NewClusterCommand(ep int, cluster uint16, cmd uint8, payload ...byte) *Command {
	return &Command{Endpoint: ep, Cluster: cluster, Kind: KindClusterCommand, Command: cmd, Payload: payload}
}

// NewWriteAttribute builds a write-attributes request for one attribute.
func NewWriteAttribute(ep int, cluster, attr uint16, typ uint8, value uint64) *Command {
	return &Command{Endpoint: ep, Cluster: cluster, Kind: KindWriteAttribute, AttrID: attr, Type: typ, Value: value}
}

// NewReadAttribute builds a read-attributes request for one attribute.
func NewReadAttribute(ep int, cluster, attr uint16) *Command {
	return &Command{Endpoint: ep, Cluster: cluster, Kind: KindReadAttribute, AttrID: attr}
}

// Global reports whether the frame is a foundation (profile-wide) command.
func (c *Command) Global() bool {
	return c.Kind == KindWriteAttribute || c.Kind == KindReadAttribute
}

// CommandID returns the ZCL command ID placed in the frame header.
func (c *Command) CommandID() uint8 {
	switch c.Kind {
	case KindWriteAttribute:
		return zcl.FoundationWriteAttributes
	case KindReadAttribute:
		return zcl.FoundationReadAttributes
	default:
		return c.Command
	}
}

// ZCLPayload returns the big-endian ZCL payload following the frame header.
func (c *Command) ZCLPayload() ([]byte, error) {
	switch c.Kind {
	case KindClusterCommand:
		return append([]byte(nil), c.Payload...), nil
	case KindReadAttribute:
		return []byte{byte(c.AttrID >> 8), byte(c.AttrID)}, nil
	case KindWriteAttribute:
		val, err := zcl.EncodeUint(c.Type, c.Value)
		if err != nil {
			return nil, fmt.Errorf("frame: write 0x%04X: %w", c.AttrID, err)
		}
		buf := make([]byte, 0, 3+len(val))
		buf = append(buf, byte(c.AttrID>>8), byte(c.AttrID), c.Type)
		return append(buf, val...), nil
	}
	return nil, fmt.Errorf("frame: unknown command kind %d", c.Kind)
}

// MarshalText renders the frame as one hub link line:
//
//	zcl ep=02 cluster=0102 frame=cluster cmd=05 data=1E
func (c *Command) MarshalText() ([]byte, error) {
	payload, err := c.ZCLPayload()
	if err != nil {
		return nil, err
	}
	frameType := "cluster"
	if c.Global() {
		frameType = "global"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "zcl ep=%02X cluster=%04X frame=%s cmd=%02X", c.Endpoint, c.Cluster, frameType, c.CommandID())
	if len(payload) > 0 {
		fmt.Fprintf(&b, " data=%X", payload)
	}
	return []byte(b.String()), nil
}

func (c *Command) String() string {
	switch c.Kind {
	case KindWriteAttribute:
		return fmt.Sprintf("write ep=%d cluster=0x%04X attr=0x%04X value=%d", c.Endpoint, c.Cluster, c.AttrID, c.Value)
	case KindReadAttribute:
		return fmt.Sprintf("read ep=%d cluster=0x%04X attr=0x%04X", c.Endpoint, c.Cluster, c.AttrID)
	default:
		return fmt.Sprintf("cmd ep=%d cluster=0x%04X cmd=0x%02X payload=%X", c.Endpoint, c.Cluster, c.Command, c.Payload)
	}
}

// Item is one element of a Batch: either a command or a spacing marker.
type Item struct {
	Command *Command
	Delay   time.Duration
}

// IsDelay reports whether the item is a spacing marker.
func (i Item) IsDelay() bool {
	return i.Command == nil
}

// Batch is an ordered sequence of commands with spacing markers between them.
type Batch struct {
	Items []Item
}

// Empty reports whether the batch would send nothing.
func (b Batch) Empty() bool {
	for _, it := range b.Items {
		if !it.IsDelay() {
			return false
		}
	}
	return true
}

// Commands returns the commands of the batch without spacing markers.
func (b Batch) Commands() []*Command {
	var out []*Command
	for _, it := range b.Items {
		if !it.IsDelay() {
			out = append(out, it.Command)
		}
	}
	return out
}

// Delays counts the spacing markers in the batch.
func (b Batch) Delays() int {
	n := 0
	for _, it := range b.Items {
		if it.IsDelay() {
			n++
		}
	}
	return n
}
