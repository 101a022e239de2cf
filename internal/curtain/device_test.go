package curtain

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"curtain-bridge/internal/frame"
	"curtain-bridge/internal/zcl"
	"curtain-bridge/internal/zcl/clusters"
)

type recordingSender struct {
	mu      sync.Mutex
	batches []frame.Batch
	err     error
}

func (r *recordingSender) Send(b frame.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, b)
	return nil
}

type mutableEndpoints struct {
	eps []int
}

func (m *mutableEndpoints) Endpoints() []int { return slices.Clone(m.eps) }

func newTestDevice(t *testing.T, eps ...int) (*Device, *recordingSender, *[]Event) {
	t.Helper()
	logger := testLogger()
	registry := zcl.NewRegistry(logger)
	registry.Register(clusters.Basic)
	registry.Register(clusters.WindowCovering)
	sender := &recordingSender{}
	events := NewEventBus(logger)
	var got []Event
	events.OnAll(func(e Event) { got = append(got, e) })
	d := NewDevice(Config{Name: "test"}, StaticEndpoints(eps), sender, registry, events, logger)
	return d, sender, &got
}

func TestNewDeviceCreatesSessions(t *testing.T) {
	d, _, _ := newTestDevice(t, 2, 1)
	if got := d.Endpoints(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("Endpoints() = %v", got)
	}
	st, ok := d.State(1)
	if !ok || st != (State{}) {
		t.Errorf("State(1) = %+v, %v", st, ok)
	}
	if _, ok := d.State(3); ok {
		t.Error("State(3) should not exist")
	}
}

func TestRoutePositionToEndpoint(t *testing.T) {
	d, _, events := newTestDevice(t, 1, 2)
	d.HandleFrame(frame.Raw{"endpoint": "02", "cluster": "0102", "attrId": "0008", "encoding": "20", "value": "1e"})

	st, _ := d.State(2)
	if st.DevicePosition != 30 || st.UserPosition != 70 || st.Shade != ShadePartiallyOpen {
		t.Errorf("endpoint 2 state = %+v", st)
	}
	if st1, _ := d.State(1); st1 != (State{}) {
		t.Errorf("endpoint 1 touched: %+v", st1)
	}

	if len(*events) != 3 {
		t.Fatalf("events = %v", *events)
	}
	for _, e := range *events {
		sc, ok := e.Data.(StateChange)
		if e.Type != EventStateChanged || !ok || sc.Endpoint != 2 || sc.Device != "test" {
			t.Errorf("event = %+v", e)
		}
	}
}

func TestHandleLineDescriptor(t *testing.T) {
	d, _, _ := newTestDevice(t, 1, 2)
	d.HandleLine([]byte("read attr - endpoint: 01, cluster: 0102, attrId: F003, encoding: 21, value: 00ff"))
	st, _ := d.State(1)
	if !st.CalibrationTimeKnown || st.CalibrationTime.Seconds() != 25.5 {
		t.Errorf("state = %+v", st)
	}

	d.HandleLine([]byte(`{"endpoint": 2, "cluster": "0102", "attrId": "0009", "value": 2}`))
	st, _ = d.State(2)
	if st.Shade != ShadeClosing {
		t.Errorf("shade = %v, want closing", st.Shade)
	}

	// Garbage is dropped without panicking.
	d.HandleLine([]byte("not a frame"))
	d.HandleLine([]byte("{"))
}

func TestRouteUnroutable(t *testing.T) {
	d, _, events := newTestDevice(t, 1, 2)

	raw := frame.Raw{"endpoint": 3, "cluster": "0102", "attrId": "0008", "value": "1e"}
	if _, err := d.Route(raw); !errors.Is(err, ErrUnroutable) {
		t.Errorf("unknown endpoint err = %v", err)
	}
	d.HandleFrame(raw)

	noEP := frame.Raw{"cluster": "0102", "attrId": "0008", "value": "1e"}
	if _, err := d.Route(noEP); !errors.Is(err, ErrUnroutable) {
		t.Errorf("missing endpoint err = %v", err)
	}
	d.HandleFrame(noEP)

	if len(*events) != 0 {
		t.Errorf("events = %v", *events)
	}
	if _, ok := d.State(3); ok {
		t.Error("session created for unknown endpoint")
	}
	for _, ep := range []int{1, 2} {
		if st, _ := d.State(ep); st != (State{}) {
			t.Errorf("endpoint %d mutated: %+v", ep, st)
		}
	}
}

func TestRouteOtherCluster(t *testing.T) {
	d, _, events := newTestDevice(t, 1)
	raw := frame.Raw{"endpoint": 1, "cluster": "0000", "attrId": "0005", "value": "41"}
	_, err := d.Route(raw)
	if !errors.Is(err, ErrUnmodeledCluster) {
		t.Fatalf("err = %v", err)
	}
	d.HandleFrame(raw)
	if len(*events) != 0 {
		t.Errorf("events = %v", *events)
	}
}

func TestUnknownAttributeDropped(t *testing.T) {
	d, _, events := newTestDevice(t, 1)
	d.HandleFrame(frame.Raw{"endpoint": 1, "cluster": "0102", "attrId": "0017", "value": "00"})
	if len(*events) != 0 {
		t.Errorf("events = %v", *events)
	}
	if st, _ := d.State(1); st != (State{}) {
		t.Errorf("state mutated: %+v", st)
	}
}

func TestDefaultResponseRejected(t *testing.T) {
	d, sender, events := newTestDevice(t, 1)
	d.HandleFrame(frame.Raw{"endpoint": 1, "cluster": "0102", "command": "0B", "data": "0500"})
	if len(*events) != 0 {
		t.Errorf("success ack produced events: %v", *events)
	}

	d.HandleFrame(frame.Raw{"endpoint": 1, "cluster": "0102", "command": "0B", "data": "0581"})
	if len(*events) != 1 || (*events)[0].Type != EventCommandRejected {
		t.Fatalf("events = %v", *events)
	}
	rej := (*events)[0].Data.(Rejection)
	if rej.Command != 0x05 || rej.Status != 0x81 || rej.Endpoint != 1 {
		t.Errorf("rejection = %+v", rej)
	}
	if len(sender.batches) != 0 {
		t.Error("rejection triggered a retry")
	}
}

func TestWriteRejectedKeepsCalibration(t *testing.T) {
	d, sender, _ := newTestDevice(t, 1)
	d.HandleFrame(frame.Raw{"endpoint": 1, "cluster": "0102", "attrId": "F001", "value": "01"})
	if err := d.StartCalibration(1); err != nil {
		t.Fatal(err)
	}
	d.HandleFrame(frame.Raw{"endpoint": 1, "cluster": "0102", "command": "04", "data": "87F001"})

	st, _ := d.State(1)
	if st.CalibrationState != CalibrationIdle {
		t.Errorf("calibration state = %v, want idle", st.CalibrationState)
	}
	if len(sender.batches) != 1 {
		t.Errorf("batches = %d, want 1 (no retry)", len(sender.batches))
	}
}

func TestCalibrationTogglesOnReadBack(t *testing.T) {
	d, sender, _ := newTestDevice(t, 1, 2)
	if err := d.StartCalibration(2); err != nil {
		t.Fatal(err)
	}
	cmds := sender.batches[0].Commands()
	if len(cmds) != 2 || cmds[0].Kind != frame.KindWriteAttribute || cmds[0].Value != 0 || cmds[1].Kind != frame.KindReadAttribute {
		t.Fatalf("start batch = %v", cmds)
	}
	if st, _ := d.State(2); st.CalibrationState != CalibrationStateUnknown {
		t.Errorf("state before read-back = %v", st.CalibrationState)
	}

	d.HandleFrame(frame.Raw{"endpoint": 2, "cluster": "0102", "attrId": "F001", "encoding": "30", "value": "00"})
	if st, _ := d.State(2); st.CalibrationState != CalibrationCalibrating {
		t.Errorf("state = %v, want calibrating", st.CalibrationState)
	}

	if err := d.StopCalibration(2); err != nil {
		t.Fatal(err)
	}
	if cmds := sender.batches[1].Commands(); cmds[0].Value != 1 {
		t.Errorf("stop writes %d, want 1", cmds[0].Value)
	}
	d.HandleFrame(frame.Raw{"endpoint": 2, "cluster": "0102", "attrId": "F001", "encoding": "30", "value": "01"})
	if st, _ := d.State(2); st.CalibrationState != CalibrationIdle {
		t.Errorf("state = %v, want idle", st.CalibrationState)
	}
}

func TestCommandsDoNotMutateState(t *testing.T) {
	d, sender, events := newTestDevice(t, 1)
	ops := []func() error{
		func() error { return d.Open(1) },
		func() error { return d.Close(1) },
		func() error { return d.Stop(1) },
		func() error { return d.SetPosition(1, 40) },
		func() error { return d.SetMotorReversal(1, true) },
		func() error { return d.SetCalibrationTime(1, 12.5) },
		func() error { return d.Refresh(1) },
	}
	for _, op := range ops {
		if err := op(); err != nil {
			t.Fatal(err)
		}
	}
	if st, _ := d.State(1); st != (State{}) {
		t.Errorf("state mutated by commands: %+v", st)
	}
	if len(sender.batches) != len(ops) {
		t.Errorf("batches = %d, want %d", len(sender.batches), len(ops))
	}
	for _, e := range *events {
		if e.Type != EventCommandSent {
			t.Errorf("unexpected event %s", e.Type)
		}
	}
}

func TestCommandWithoutSession(t *testing.T) {
	d, sender, _ := newTestDevice(t, 1)
	if err := d.Open(5); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
	if len(sender.batches) != 0 {
		t.Error("batch sent for unknown endpoint")
	}
	if err := d.Reset(5); !errors.Is(err, ErrNoSession) {
		t.Errorf("Reset err = %v", err)
	}
}

func TestSendErrorPropagates(t *testing.T) {
	d, sender, events := newTestDevice(t, 1)
	sender.err = errors.New("queue full")
	if err := d.Stop(1); err == nil {
		t.Error("expected send error")
	}
	if len(*events) != 0 {
		t.Errorf("events = %v", *events)
	}
}

func TestRefreshAll(t *testing.T) {
	d, sender, _ := newTestDevice(t, 1, 2)
	if err := d.RefreshAll(); err != nil {
		t.Fatal(err)
	}
	if len(sender.batches) != 2 {
		t.Fatalf("batches = %d", len(sender.batches))
	}
	for i, b := range sender.batches {
		if len(b.Commands()) != 4 || b.Delays() != 3 {
			t.Errorf("batch %d: %d frames, %d delays", i, len(b.Commands()), b.Delays())
		}
		if b.Commands()[0].Endpoint != i+1 {
			t.Errorf("batch %d endpoint = %d", i, b.Commands()[0].Endpoint)
		}
	}
}

func TestSyncFollowsEndpointSource(t *testing.T) {
	src := &mutableEndpoints{eps: []int{1}}
	logger := testLogger()
	d := NewDevice(Config{Name: "sync"}, src, &recordingSender{}, nil, NewEventBus(logger), logger)

	src.eps = []int{1, 2}
	report := frame.Raw{"endpoint": 2, "cluster": "0102", "attrId": "0008", "value": "64"}
	// Known to the host but not synced: dropped.
	d.HandleFrame(report)
	if _, ok := d.State(2); ok {
		t.Fatal("frame created a session")
	}
	if err := d.Open(2); !errors.Is(err, ErrNoSession) {
		t.Errorf("Open(2) before Sync = %v", err)
	}

	d.Sync()
	d.HandleFrame(report)
	if st, ok := d.State(2); !ok || st.Shade != ShadeOpen {
		t.Errorf("State(2) = %+v, %v", st, ok)
	}

	src.eps = []int{2}
	d.Sync()
	if got := d.Endpoints(); !slices.Equal(got, []int{2}) {
		t.Errorf("Endpoints() = %v", got)
	}
}

func TestHandlerMayIssueCommands(t *testing.T) {
	d, sender, _ := newTestDevice(t, 1, 2)
	d.Events().On(EventStateChanged, func(e Event) {
		sc := e.Data.(StateChange)
		if sc.Endpoint == 1 && sc.Field == FieldShadeState && sc.Value == "closed" {
			_ = d.Close(2)
		}
	})
	d.HandleFrame(frame.Raw{"endpoint": 1, "cluster": "0102", "attrId": "0008", "value": "00"})
	if len(sender.batches) != 1 || sender.batches[0].Commands()[0].Endpoint != 2 {
		t.Errorf("batches = %v", sender.batches)
	}
}
