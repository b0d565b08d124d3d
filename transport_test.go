package evisync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
)

// echoWebsocketServer greets every client with a text message and answers each binary message with "re:" + payload
func echoWebsocketServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
			return
		}
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, append([]byte("re:"), payload...)); err != nil {
				return
			}
		}
	}))
	return server, "ws" + strings.TrimPrefix(server.URL, "http") + "/"
}

func TestWebsocketTransport(t *testing.T) {
	server, address := echoWebsocketServer(t)
	defer server.Close()

	transport, err := DialTransport(context.Background(), address)
	if err != nil {
		t.Fatal(err)
	}

	_, err = transport.Receive(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, errReceiveTimeout) {
		t.Errorf("Text messages must be skipped and receive must time out, but got %v", err)
	}

	if err := transport.Send(context.Background(), []byte("frame")); err != nil {
		t.Fatal(err)
	}
	frames, err := transport.Receive(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || string(frames[0]) != "re:frame" {
		t.Errorf("Reply must be one frame 're:frame', but got %q", frames)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := transport.Receive(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("Cancelled receive must give %v, but got %v", context.Canceled, err)
	}

	first := transport.Close()
	if second := transport.Close(); second != first {
		t.Errorf("Second close must be a no-op returning %v, but got %v", first, second)
	}
	if err := transport.Send(context.Background(), []byte("late")); !errors.Is(err, ErrConnection) {
		t.Errorf("Send after close must give %v, but got %v", ErrConnection, err)
	}
	if _, err := transport.Receive(context.Background(), time.Second); !errors.Is(err, ErrConnection) {
		t.Errorf("Receive after close must give %v, but got %v", ErrConnection, err)
	}
}

func TestWebsocketTransportPeerGone(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer server.Close()

	transport, err := DialTransport(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http")+"/")
	if err != nil {
		t.Fatal(err)
	}
	defer transport.Close()

	_, err = transport.Receive(context.Background(), 2*time.Second)
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Loss of peer must be reported as %v, but got %v", ErrConnection, err)
	}
}

func TestZMQTransport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := zmq4.NewRouter(ctx)
	defer router.Close()
	if err := router.Listen("tcp://127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	address := "tcp://" + router.Addr().String()

	served := make(chan error, 1)
	go func() {
		msg, err := router.Recv()
		if err != nil {
			served <- err
			return
		}
		// Frames are [peer identity, payload]
		if len(msg.Frames) != 2 {
			served <- errors.Errorf("Router must get 2 frames, but got %d", len(msg.Frames))
			return
		}
		served <- router.Send(zmq4.NewMsgFrom(msg.Frames[0], append([]byte("re:"), msg.Frames[1]...)))
	}()

	transport, err := DialTransport(ctx, address)
	if err != nil {
		t.Fatal(err)
	}

	_, err = transport.Receive(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, errReceiveTimeout) {
		t.Errorf("Receive without request must time out, but got %v", err)
	}

	if err := transport.Send(context.Background(), []byte("frame")); err != nil {
		t.Fatal(err)
	}
	frames, err := transport.Receive(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || string(frames[0]) != "re:frame" {
		t.Errorf("Reply must be one frame 're:frame', but got %q", frames)
	}
	if err := <-served; err != nil {
		t.Errorf("Router failed: %v", err)
	}

	first := transport.Close()
	if second := transport.Close(); second != first {
		t.Errorf("Second close must be a no-op returning %v, but got %v", first, second)
	}
	if err := transport.Send(context.Background(), []byte("late")); !errors.Is(err, ErrConnection) {
		t.Errorf("Send after close must give %v, but got %v", ErrConnection, err)
	}
}

func TestDialTransportUnsupportedScheme(t *testing.T) {
	if _, err := DialTransport(context.Background(), "udp://localhost:12346"); err == nil {
		t.Errorf("Unsupported scheme must give an error")
	}
}

func TestNewNetworkWorkerConnectionError(t *testing.T) {
	_, err := NewNetworkWorker("udp://x", WithWorkerLogger(quietLogger()))
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Unsupported scheme must give %v, but got %v", ErrConnection, err)
	}

	server, address := echoWebsocketServer(t)
	server.Close()
	_, err = NewNetworkWorker(address, WithWorkerLogger(quietLogger()))
	if !errors.Is(err, ErrConnection) {
		t.Errorf("Failed dial must give %v, but got %v", ErrConnection, err)
	}
}

func TestNetworkWorkerOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	reply := encodeFrame(t, &Message{ID: 1, Session: &SessionMessage{TimeReached: &SessionTimeReached{TimeS: 2.5}}})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	worker, err := NewNetworkWorker("ws"+strings.TrimPrefix(server.URL, "http")+"/", WithWorkerLogger(quietLogger()), WithReplyTimeout(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	defer worker.Close()

	if !worker.StageFrame(NewUpdateMessage(0, VehicleState{ID: 1}, orb.Point{})) {
		t.Fatalf("Frame must be staged")
	}
	waitFor(t, "reply to be queued", worker.HasPending)
	msg, ok := worker.Pop()
	if !ok || msg.Kind() != KIND_SESSION || msg.Session.TimeReached.TimeS != 2.5 {
		t.Errorf("Queued message must be session time 2.5, but got %+v", msg)
	}
}
