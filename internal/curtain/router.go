package curtain

import (
	"errors"
	"fmt"
	"slices"

	"curtain-bridge/internal/frame"
	"curtain-bridge/internal/zcl"
	"curtain-bridge/internal/zcl/clusters"
)

var (
	// ErrUnroutable is returned for frames without an endpoint or from an
	// endpoint the host does not know.
	ErrUnroutable = errors.New("unroutable frame")
	// ErrUnmodeledCluster is returned for frames outside the Window Covering cluster.
	ErrUnmodeledCluster = errors.New("unmodeled cluster")
)

// Route resolves the endpoint of a raw frame and decodes it. Only Window
// Covering frames from known endpoints are decoded.
func (d *Device) Route(raw frame.Raw) (frame.Descriptor, error) {
	ep, err := raw.Endpoint()
	if errors.Is(err, frame.ErrNoEndpoint) {
		return frame.Descriptor{}, fmt.Errorf("%w: %v", ErrUnroutable, err)
	}
	if err != nil {
		return frame.Descriptor{}, err
	}
	if !slices.Contains(d.endpoints.Endpoints(), ep) {
		return frame.Descriptor{}, fmt.Errorf("%w: endpoint %d not known", ErrUnroutable, ep)
	}
	cluster, err := raw.Cluster()
	if err != nil {
		return frame.Descriptor{}, err
	}
	if cluster != zcl.ClusterWindowCovering {
		return frame.Descriptor{}, fmt.Errorf("%w: %s", ErrUnmodeledCluster, d.registry.ClusterName(cluster))
	}
	return frame.Decode(raw)
}

// HandleLine parses one line received from the hub link and handles it.
func (d *Device) HandleLine(line []byte) {
	raw, err := frame.Parse(line)
	if err != nil {
		d.logger.Warn("dropping unparseable frame", "err", err, "line", string(line))
		return
	}
	d.HandleFrame(raw)
}

// HandleFrame routes one inbound frame and applies it to the addressed
// session. Nothing here is fatal: every failure is logged and the frame
// dropped, leaving state as last confirmed.
func (d *Device) HandleFrame(raw frame.Raw) {
	desc, err := d.Route(raw)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnroutable), errors.Is(err, ErrUnmodeledCluster), errors.Is(err, frame.ErrUnsupportedCommand):
		d.logger.Debug("dropping frame", "reason", err)
		return
	default:
		d.logger.Warn("dropping malformed frame", "err", err)
		return
	}

	var events []Event
	d.mu.Lock()
	s, ok := d.sessions[desc.Endpoint]
	if !ok {
		// Known to the host but not synced yet.
		d.mu.Unlock()
		d.logger.Warn("frame for endpoint without session, dropped", "endpoint", desc.Endpoint)
		return
	}
	switch desc.Kind() {
	case frame.KindDefaultResponse:
		events = d.handleDefaultResponse(desc)
	case frame.KindWriteResponse:
		events = d.handleWriteResponse(s, desc)
	case frame.KindAttributeReport:
		events = d.handleReport(s, desc)
	}
	d.mu.Unlock()

	for _, e := range events {
		d.events.Emit(e)
	}
}

func (d *Device) handleDefaultResponse(desc frame.Descriptor) []Event {
	ack := desc.Ack
	if ack.Status == zcl.ZCLStatusSuccess {
		d.logger.Debug("command acknowledged", "endpoint", desc.Endpoint, "command", fmt.Sprintf("0x%02X", ack.Command))
		return nil
	}
	d.logger.Warn("command rejected",
		"endpoint", desc.Endpoint,
		"command", fmt.Sprintf("0x%02X", ack.Command),
		"status", zcl.StatusName(ack.Status))
	return []Event{{Type: EventCommandRejected, Data: Rejection{
		Device:   d.name,
		Endpoint: desc.Endpoint,
		Command:  ack.Command,
		Status:   ack.Status,
	}}}
}

func (d *Device) handleWriteResponse(s *Session, desc frame.Descriptor) []Event {
	w := desc.Write
	if w.Status == zcl.ZCLStatusSuccess {
		d.logger.Debug("write accepted", "endpoint", desc.Endpoint)
		return nil
	}
	d.logger.Warn("write rejected", "endpoint", desc.Endpoint, "status", zcl.StatusName(w.Status))
	// Without an attribute ID the rejection may still be for calibration.
	if !w.HasAttr || w.AttrID == clusters.AttrCalibrationMode {
		s.rejectCalibration()
	}
	return []Event{{Type: EventCommandRejected, Data: Rejection{
		Device:   d.name,
		Endpoint: desc.Endpoint,
		Command:  zcl.FoundationWriteAttributes,
		AttrID:   w.AttrID,
		Status:   w.Status,
	}}}
}

func (d *Device) handleReport(s *Session, desc frame.Descriptor) []Event {
	r := desc.Report
	v, err := Decode(r.AttrID, r.Value)
	if err != nil {
		cluster := d.registry.Get(desc.Cluster)
		name := fmt.Sprintf("0x%04X", r.AttrID)
		if cluster != nil {
			name = cluster.AttributeName(r.AttrID)
		}
		d.logger.Debug("dropping report", "endpoint", desc.Endpoint, "attr", name, "reason", err)
		return nil
	}
	d.logger.Debug("attribute report", "endpoint", desc.Endpoint, "attr", fmt.Sprintf("0x%04X", r.AttrID), "raw", r.Value)

	changes := s.Apply(v)
	events := make([]Event, 0, len(changes))
	for _, c := range changes {
		events = append(events, Event{Type: EventStateChanged, Data: StateChange{
			Device:   d.name,
			Endpoint: desc.Endpoint,
			Field:    c.Field,
			Value:    c.Value,
		}})
	}
	return events
}
