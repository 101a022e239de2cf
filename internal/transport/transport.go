// Package transport moves command batches to the hub and inbound frame
// lines back to the device. A link is any line-oriented connection: a
// serial port to a hub dongle or a websocket to a network hub.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"curtain-bridge/internal/frame"
)

// ErrQueueFull is returned by Send when the outbound queue has no room.
var ErrQueueFull = errors.New("transport queue full")

// DefaultQueueSize is the number of batches that may wait for the writer.
const DefaultQueueSize = 32

// Link is a line-oriented connection to the hub.
type Link interface {
	// ReadLine blocks until one frame line arrives. Close unblocks it.
	ReadLine(ctx context.Context) ([]byte, error)
	WriteLine(ctx context.Context, line []byte) error
	Close() error
}

// Transport queues outbound batches and runs the link's read and write
// loops.
type Transport struct {
	link   Link
	queue  chan frame.Batch
	logger *slog.Logger

	handlerMu sync.RWMutex
	onLine    func([]byte)
}

// New creates a transport over link. A non-positive queueSize selects
// DefaultQueueSize.
func New(link Link, queueSize int, logger *slog.Logger) *Transport {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Transport{
		link:   link,
		queue:  make(chan frame.Batch, queueSize),
		logger: logger.With("component", "transport"),
	}
}

// OnLine sets the handler called with every inbound line.
func (t *Transport) OnLine(handler func([]byte)) {
	t.handlerMu.Lock()
	t.onLine = handler
	t.handlerMu.Unlock()
}

// Send enqueues a batch for the writer and returns immediately.
func (t *Transport) Send(batch frame.Batch) error {
	if batch.Empty() {
		return nil
	}
	select {
	case t.queue <- batch:
		return nil
	default:
		t.logger.Warn("outbound queue full, batch dropped", "frames", len(batch.Commands()))
		return ErrQueueFull
	}
}

// Run reads and writes until ctx is done or the link fails. The link is
// closed when Run returns.
func (t *Transport) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.readLoop(gctx) })
	g.Go(func() error { return t.writeLoop(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		// Unblocks ReadLine.
		if err := t.link.Close(); err != nil {
			t.logger.Debug("link close", "err", err)
		}
		return nil
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *Transport) readLoop(ctx context.Context) error {
	for {
		line, err := t.link.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("transport: read: %w", err)
		}
		if len(line) == 0 {
			continue
		}
		t.logger.Debug("line received", "line", string(line))

		t.handlerMu.RLock()
		h := t.onLine
		t.handlerMu.RUnlock()
		if h != nil {
			h(line)
		}
	}
}

func (t *Transport) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-t.queue:
			if err := t.writeBatch(ctx, b); err != nil {
				return err
			}
		}
	}
}

// writeBatch writes every frame of b in order and waits out spacing
// markers. Failed frames are logged and skipped, never retried.
func (t *Transport) writeBatch(ctx context.Context, b frame.Batch) error {
	for _, item := range b.Items {
		if item.IsDelay() {
			select {
			case <-time.After(item.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		line, err := item.Command.MarshalText()
		if err != nil {
			t.logger.Warn("cannot encode frame", "frame", item.Command.String(), "err", err)
			continue
		}
		if err := t.link.WriteLine(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn("write failed", "frame", string(line), "err", err)
			continue
		}
		t.logger.Debug("frame sent", "frame", string(line))
	}
	return nil
}
