package curtain

import (
	"time"

	"curtain-bridge/internal/frame"
	"curtain-bridge/internal/zcl"
	"curtain-bridge/internal/zcl/clusters"
)

// DefaultSpacing is the pause between frames of one batch.
const DefaultSpacing = 500 * time.Millisecond

// Builder assembles ordered command batches for one device.
type Builder struct {
	spacing time.Duration
}

// NewBuilder returns a Builder that separates frames by spacing.
// A non-positive spacing selects DefaultSpacing.
func NewBuilder(spacing time.Duration) *Builder {
	if spacing <= 0 {
		spacing = DefaultSpacing
	}
	return &Builder{spacing: spacing}
}

// Build orders the given commands into a batch, inserting a spacing
// marker after every command but the last. Nil commands are skipped, so
// an all-nil list yields an empty batch.
func (b *Builder) Build(cmds ...*frame.Command) frame.Batch {
	var batch frame.Batch
	for _, c := range cmds {
		if c == nil {
			continue
		}
		if len(batch.Items) > 0 {
			batch.Items = append(batch.Items, frame.Item{Delay: b.spacing})
		}
		batch.Items = append(batch.Items, frame.Item{Command: c})
	}
	return batch
}

func (b *Builder) Open(ep int) frame.Batch {
	return b.Build(frame.NewClusterCommand(ep, zcl.ClusterWindowCovering, clusters.CmdUpOpen))
}

func (b *Builder) Close(ep int) frame.Batch {
	return b.Build(frame.NewClusterCommand(ep, zcl.ClusterWindowCovering, clusters.CmdDownClose))
}

func (b *Builder) Stop(ep int) frame.Batch {
	return b.Build(frame.NewClusterCommand(ep, zcl.ClusterWindowCovering, clusters.CmdStop))
}

// SetPosition moves to a user position. The device streams position
// reports while moving, so no read-back is queued.
func (b *Builder) SetPosition(ep, user int) frame.Batch {
	return b.Build(frame.NewClusterCommand(ep, zcl.ClusterWindowCovering, clusters.CmdGoToLiftPercentage, byte(ToDevice(user))))
}

func (b *Builder) StartCalibration(ep int) frame.Batch {
	return b.writeAndReadBack(ep, CalibrationActive)
}

func (b *Builder) StopCalibration(ep int) frame.Batch {
	return b.writeAndReadBack(ep, CalibrationInactive)
}

func (b *Builder) SetMotorReversal(ep int, reversed bool) frame.Batch {
	dir := MotorNormal
	if reversed {
		dir = MotorReversed
	}
	return b.writeAndReadBack(ep, dir)
}

func (b *Builder) SetCalibrationTime(ep int, seconds float64) frame.Batch {
	return b.writeAndReadBack(ep, CalibrationTimeFromSeconds(seconds))
}

// Refresh reads the position and the three vendor attributes.
func (b *Builder) Refresh(ep int) frame.Batch {
	return b.Build(
		frame.NewReadAttribute(ep, zcl.ClusterWindowCovering, clusters.AttrPositionLiftPercentage),
		frame.NewReadAttribute(ep, zcl.ClusterWindowCovering, clusters.AttrCalibrationMode),
		frame.NewReadAttribute(ep, zcl.ClusterWindowCovering, clusters.AttrMotorReversal),
		frame.NewReadAttribute(ep, zcl.ClusterWindowCovering, clusters.AttrCalibrationTime),
	)
}

// writeAndReadBack writes v and reads the same attribute back; the
// read-back report is what confirms the write.
func (b *Builder) writeAndReadBack(ep int, v Value) frame.Batch {
	attr, typ, raw, err := Encode(v)
	if err != nil {
		return frame.Batch{}
	}
	return b.Build(
		frame.NewWriteAttribute(ep, zcl.ClusterWindowCovering, attr, typ, raw),
		frame.NewReadAttribute(ep, zcl.ClusterWindowCovering, attr),
	)
}
