package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"curtain-bridge/internal/frame"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLink struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	written  []string
	times    []time.Time
	failNext int
}

func newFakeLink() *fakeLink {
	return &fakeLink{in: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeLink) ReadLine(ctx context.Context) ([]byte, error) {
	select {
	case line, ok := <-f.in:
		if !ok {
			return nil, io.EOF
		}
		return line, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeLink) WriteLine(ctx context.Context, line []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("write failed")
	}
	f.written = append(f.written, string(line))
	f.times = append(f.times, time.Now())
	return nil
}

func (f *fakeLink) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeLink) snapshot() ([]string, []time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...), append([]time.Time(nil), f.times...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func spacedBatch(spacing time.Duration, cmds ...*frame.Command) frame.Batch {
	var b frame.Batch
	for i, c := range cmds {
		if i > 0 {
			b.Items = append(b.Items, frame.Item{Delay: spacing})
		}
		b.Items = append(b.Items, frame.Item{Command: c})
	}
	return b
}

func startTransport(t *testing.T, link Link, queue int) (*Transport, func() error) {
	t.Helper()
	tr := New(link, queue, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()
	stop := func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
			return nil
		}
	}
	t.Cleanup(func() { cancel() })
	return tr, stop
}

func TestWriterHonorsSpacing(t *testing.T) {
	link := newFakeLink()
	tr, stop := startTransport(t, link, 0)

	spacing := 40 * time.Millisecond
	b := spacedBatch(spacing,
		frame.NewWriteAttribute(2, 0x0102, 0xF001, 0x30, 0),
		frame.NewReadAttribute(2, 0x0102, 0xF001),
	)
	if err := tr.Send(b); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { w, _ := link.snapshot(); return len(w) == 2 })

	written, times := link.snapshot()
	want := []string{
		"zcl ep=02 cluster=0102 frame=global cmd=02 data=F0013000",
		"zcl ep=02 cluster=0102 frame=global cmd=00 data=F001",
	}
	for i := range want {
		if written[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, written[i], want[i])
		}
	}
	if gap := times[1].Sub(times[0]); gap < spacing {
		t.Errorf("gap = %v, want >= %v", gap, spacing)
	}
	if err := stop(); err != nil {
		t.Errorf("Run() = %v, want nil after cancel", err)
	}
}

func TestBatchesKeepOrder(t *testing.T) {
	link := newFakeLink()
	tr, stop := startTransport(t, link, 0)
	defer stop()

	for ep := 1; ep <= 3; ep++ {
		if err := tr.Send(spacedBatch(0, frame.NewClusterCommand(ep, 0x0102, 0x02))); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { w, _ := link.snapshot(); return len(w) == 3 })
	written, _ := link.snapshot()
	for i, line := range written {
		want := "zcl ep=0" + string(rune('1'+i)) + " cluster=0102 frame=cluster cmd=02"
		if line != want {
			t.Errorf("line %d = %q, want %q", i, line, want)
		}
	}
}

func TestWriteFailureNotRetried(t *testing.T) {
	link := newFakeLink()
	link.failNext = 1
	tr, stop := startTransport(t, link, 0)
	defer stop()

	b := spacedBatch(time.Millisecond,
		frame.NewClusterCommand(1, 0x0102, 0x00),
		frame.NewClusterCommand(1, 0x0102, 0x02),
	)
	if err := tr.Send(b); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { w, _ := link.snapshot(); return len(w) == 1 })
	time.Sleep(20 * time.Millisecond)
	written, _ := link.snapshot()
	if len(written) != 1 || written[0] != "zcl ep=01 cluster=0102 frame=cluster cmd=02" {
		t.Errorf("written = %v", written)
	}
}

func TestSendQueueFull(t *testing.T) {
	tr := New(newFakeLink(), 1, testLogger())
	b := spacedBatch(0, frame.NewClusterCommand(1, 0x0102, 0x00))
	if err := tr.Send(b); err != nil {
		t.Fatal(err)
	}
	if err := tr.Send(b); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if err := tr.Send(frame.Batch{}); err != nil {
		t.Errorf("empty batch err = %v", err)
	}
}

func TestInboundLinesReachHandler(t *testing.T) {
	link := newFakeLink()
	tr := New(link, 0, testLogger())
	var mu sync.Mutex
	var got []string
	tr.OnLine(func(line []byte) {
		mu.Lock()
		got = append(got, string(line))
		mu.Unlock()
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	link.in <- []byte("read attr - endpoint: 02, cluster: 0102, attrId: 0008, encoding: 20, value: 1e")
	link.in <- []byte{}
	link.in <- []byte(`{"endpoint": 1}`)
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})
}

func TestRunReturnsLinkError(t *testing.T) {
	link := newFakeLink()
	tr := New(link, 0, testLogger())
	done := make(chan error, 1)
	go func() { done <- tr.Run(context.Background()) }()
	close(link.in)

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Run() = %v, want EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after link failure")
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want []string
	}{
		{"single", "catchall - endpoint: 01, cluster: 0102, command: 0B, data: [05, 00]\n", []string{"catchall - endpoint: 01, cluster: 0102, command: 0B, data: [05, 00]"}},
		{"multiple", "a\r\n\nb\n", []string{"a", "b"}},
		{"json kept whole", "{\n  \"endpoint\": 1\n}", []string{"{\n  \"endpoint\": 1\n}"}},
		{"empty", " \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitLines([]byte(tt.msg))
			if len(got) != len(tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			for i := range got {
				if string(got[i]) != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
