package evisync

import (
	"context"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

var (
	errReceiveTimeout = errors.New("receive timed out")
	errTransportGone  = errors.Wrap(ErrConnection, "transport is closed")
)

// Transport is a message-framed connection to a request/reply peer
type Transport interface {
	// Send writes one message
	Send(ctx context.Context, frame []byte) error
	// Receive waits for the next reply: one or more frames
	Receive(ctx context.Context, timeout time.Duration) ([][]byte, error)
	// Close is idempotent
	Close() error
}

// DialTransport picks implementation by address scheme: tcp:// and ipc:// speak ZeroMQ (DEALER), ws:// and wss:// speak WebSocket
func DialTransport(ctx context.Context, address string) (Transport, error) {
	parsed, err := url.Parse(address)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse address '%s'", address)
	}
	switch parsed.Scheme {
	case "tcp", "ipc":
		return dialZMQ(ctx, address)
	case "ws", "wss":
		return dialWebsocket(ctx, address)
	default:
		return nil, errors.Errorf("Unsupported scheme '%s' in address '%s'", parsed.Scheme, address)
	}
}

// received is one inbound reply or the error which stopped the reader
type received struct {
	frames [][]byte
	err    error
}

// awaitReply is shared by transports which pump replies from a reader goroutine into a channel
func awaitReply(ctx context.Context, replies <-chan received, done <-chan struct{}, timeout time.Duration) ([][]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case reply := <-replies:
		return reply.frames, reply.err
	case <-done:
		return nil, errTransportGone
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, errReceiveTimeout
	}
}
