package evisync

import (
	"context"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
)

type zmqTransport struct {
	socket  zmq4.Socket
	replies chan received
	done    chan struct{}
	cancel  context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func dialZMQ(ctx context.Context, address string) (*zmqTransport, error) {
	ctx, cancel := context.WithCancel(ctx)
	socket := zmq4.NewDealer(ctx, zmq4.WithDialerRetry(time.Second))
	if err := socket.Dial(address); err != nil {
		cancel()
		socket.Close()
		return nil, errors.Wrapf(err, "Can't dial '%s'", address)
	}
	transport := &zmqTransport{
		socket:  socket,
		replies: make(chan received, 16),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	go transport.readLoop()
	return transport, nil
}

func (transport *zmqTransport) readLoop() {
	for {
		msg, err := transport.socket.Recv()
		reply := received{frames: msg.Frames, err: readerError(err)}
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

// readerError marks failures of the reader goroutine as loss of connection
func readerError(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrConnection, "Reader stopped: %v", err)
}

func (transport *zmqTransport) Send(ctx context.Context, frame []byte) error {
	select {
	case <-transport.done:
		return errTransportGone
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return transport.socket.Send(zmq4.NewMsg(frame))
}

func (transport *zmqTransport) Receive(ctx context.Context, timeout time.Duration) ([][]byte, error) {
	return awaitReply(ctx, transport.replies, transport.done, timeout)
}

func (transport *zmqTransport) Close() error {
	transport.closeOnce.Do(func() {
		close(transport.done)
		transport.cancel()
		transport.closeErr = transport.socket.Close()
	})
	return transport.closeErr
}
