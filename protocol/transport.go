package protocol

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vaultpass/go-vaultpass-core/types"
)

// Transport moves protocol envelopes over a connection. One session owns one
// transport; Send and Receive are never called concurrently within a session.
type Transport interface {
	Send(ctx context.Context, msg *types.Message) error
	Receive(ctx context.Context) (*types.Message, error)
	Close() error
}

// WebSocketTransport is the gorilla-backed Transport used against the relay.
type WebSocketTransport struct {
	conn *websocket.Conn
}

// Dial opens a WebSocket connection to the relay channel URL.
func Dial(ctx context.Context, url string) (*WebSocketTransport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &WebSocketTransport{conn: conn}, nil
}

// NewWebSocketTransport wraps an upgraded server-side connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

func (t *WebSocketTransport) Send(ctx context.Context, msg *types.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}
	return t.conn.WriteJSON(msg)
}

func (t *WebSocketTransport) Receive(ctx context.Context) (*types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	}

	// reads are blocking; closing the connection from the context watcher is
	// what makes cancellation interrupt an in-flight receive
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = t.conn.Close()
		case <-done:
		}
	}()

	var msg types.Message
	if err := t.conn.ReadJSON(&msg); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return &msg, nil
}

func (t *WebSocketTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return t.conn.Close()
}

// Upgrader is shared by server-side endpoints accepting protocol peers.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
