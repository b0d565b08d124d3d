package evisync

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// wsTransport carries one protocol frame per binary WebSocket message
type wsTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	replies chan received
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func dialWebsocket(ctx context.Context, address string) (*wsTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't dial '%s'", address)
	}
	transport := &wsTransport{
		conn:    conn,
		replies: make(chan received, 16),
		done:    make(chan struct{}),
	}
	go transport.readLoop()
	return transport, nil
}

func (transport *wsTransport) readLoop() {
	for {
		messageType, payload, err := transport.conn.ReadMessage()
		if err == nil && messageType != websocket.BinaryMessage {
			continue
		}
		reply := received{err: readerError(err)}
		if err == nil {
			reply.frames = [][]byte{payload}
		}
		select {
		case transport.replies <- reply:
		case <-transport.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (transport *wsTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-transport.done:
		return errTransportGone
	default:
	}
	transport.writeMu.Lock()
	defer transport.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		transport.conn.SetWriteDeadline(deadline)
	}
	return transport.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (transport *wsTransport) Receive(ctx context.Context, timeout time.Duration) ([][]byte, error) {
	return awaitReply(ctx, transport.replies, transport.done, timeout)
}

func (transport *wsTransport) Close() error {
	transport.closeOnce.Do(func() {
		close(transport.done)
		transport.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		transport.closeErr = transport.conn.Close()
	})
	return transport.closeErr
}
