package transport

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	wsDialTimeout  = 10 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsReadLimit    = 64 * 1024
)

// WebsocketLink talks to a network hub over a websocket. Every text
// message carries one or more frame lines.
type WebsocketLink struct {
	conn *websocket.Conn

	mu      sync.Mutex
	pending [][]byte
}

// DialWebsocket connects to the hub at url.
func DialWebsocket(ctx context.Context, url string) (*WebsocketLink, error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket link: dial %s: %w", url, err)
	}
	conn.SetReadLimit(wsReadLimit)
	return &WebsocketLink{conn: conn}, nil
}

func (l *WebsocketLink) ReadLine(ctx context.Context) ([]byte, error) {
	for {
		l.mu.Lock()
		if len(l.pending) > 0 {
			line := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()
			return line, nil
		}
		l.mu.Unlock()

		typ, msg, err := l.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			continue
		}
		lines := splitLines(msg)
		l.mu.Lock()
		l.pending = append(l.pending, lines...)
		l.mu.Unlock()
	}
}

func (l *WebsocketLink) WriteLine(ctx context.Context, line []byte) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return l.conn.Write(ctx, websocket.MessageText, line)
}

func (l *WebsocketLink) Close() error {
	return l.conn.Close(websocket.StatusNormalClosure, "")
}

// splitLines splits a message into trimmed non-empty lines. A JSON
// object is kept whole even when pretty-printed.
func splitLines(msg []byte) [][]byte {
	if trimmed := bytes.TrimSpace(msg); bytes.HasPrefix(trimmed, []byte{'{'}) {
		return [][]byte{trimmed}
	}
	var out [][]byte
	for _, line := range bytes.Split(msg, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out
}
