package evisync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error

	replies   chan [][]byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		replies: make(chan [][]byte, 8),
		closed:  make(chan struct{}),
	}
}

func (transport *fakeTransport) Send(ctx context.Context, frame []byte) error {
	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.sendErr != nil {
		return transport.sendErr
	}
	transport.sent = append(transport.sent, frame)
	return nil
}

func (transport *fakeTransport) Receive(ctx context.Context, timeout time.Duration) ([][]byte, error) {
	select {
	case frames := <-transport.replies:
		return frames, nil
	case <-transport.closed:
		return nil, errTransportGone
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, errReceiveTimeout
	}
}

func (transport *fakeTransport) Close() error {
	transport.closeOnce.Do(func() {
		close(transport.closed)
	})
	return nil
}

func (transport *fakeTransport) sentCount() int {
	transport.mu.Lock()
	defer transport.mu.Unlock()
	return len(transport.sent)
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.ErrorLevel)
	return log.NewEntry(logger)
}

func encodeFrame(t *testing.T, msg *Message) []byte {
	t.Helper()
	payload, err := EncodeMessage(msg)
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func newTestWorker(t *testing.T, transport Transport, options ...WorkerOption) *NetworkWorker {
	t.Helper()
	options = append([]WorkerOption{WithTransport(transport), WithWorkerLogger(quietLogger()), WithReplyTimeout(time.Second)}, options...)
	worker, err := NewNetworkWorker("tcp://localhost:12346", options...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		worker.Close()
	})
	return worker
}

func TestWorkerRegisterGating(t *testing.T) {
	transport := newFakeTransport()
	worker := newTestWorker(t, transport, WithWorkerOffset(orb.Point{100, 100}))
	ego := VehicleState{ID: 1, Ego: true, Position: orb.Point{1, 1}}

	if !worker.StageFrame(NewRegisterMessage(0, ego, orb.Point{})) {
		t.Fatalf("Registration must be staged")
	}
	waitFor(t, "registration to be sent", func() bool { return transport.sentCount() == 1 })
	if worker.StageFrame(NewUpdateMessage(1, ego, orb.Point{})) {
		t.Errorf("Frame after registration must be rejected until reply arrives")
	}

	fellow := VehicleState{ID: 7, Position: orb.Point{10, 20}, Heading: 90, Speed: 3}
	transport.replies <- [][]byte{encodeFrame(t, NewUpdateMessage(9, fellow, orb.Point{100, 100}))}
	waitFor(t, "reply to be processed", worker.TakeNewData)

	if !worker.StageFrame(NewUpdateMessage(1, ego, orb.Point{})) {
		t.Errorf("Frame after answered registration must be staged")
	}
	updates := worker.Drain(EXISTENCE_UPDATING)
	got, ok := updates[7]
	if !ok {
		t.Fatalf("Update for vehicle 7 must be in inbox, but got %v", updates)
	}
	if got.Position != fellow.Position {
		t.Errorf("Offset must be removed from inbound position: %v, but got %v", fellow.Position, got.Position)
	}
}

func TestWorkerRegisterGatingAfterInFlightUpdate(t *testing.T) {
	transport := newFakeTransport()
	worker := newTestWorker(t, transport)
	ego := VehicleState{ID: 1, Ego: true}

	if !worker.StageFrame(NewUpdateMessage(0, ego, orb.Point{})) {
		t.Fatalf("Update must be staged")
	}
	waitFor(t, "update to be sent", func() bool { return transport.sentCount() == 1 })
	if !worker.StageFrame(NewRegisterMessage(1, ego, orb.Point{})) {
		t.Fatalf("Registration after update must be staged")
	}

	// Answer the update only: registration goes out next and stays unanswered
	transport.replies <- [][]byte{}
	waitFor(t, "registration to be sent", func() bool { return transport.sentCount() == 2 })
	if worker.StageFrame(NewUpdateMessage(2, ego, orb.Point{})) {
		t.Errorf("Reply to the earlier update must not open the gate for registration")
	}

	transport.replies <- [][]byte{}
	waitFor(t, "answered registration to open the gate", func() bool {
		return worker.StageFrame(NewUpdateMessage(2, ego, orb.Point{}))
	})
}

func TestWorkerRegisterTimeout(t *testing.T) {
	transport := newFakeTransport()
	worker := newTestWorker(t, transport, WithReplyTimeout(50*time.Millisecond))

	if !worker.StageFrame(NewRegisterMessage(0, VehicleState{ID: 1, Ego: true}, orb.Point{})) {
		t.Fatalf("Registration must be staged")
	}
	select {
	case <-worker.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Worker must stop when registration is not answered")
	}
	if worker.StageFrame(NewUpdateMessage(1, VehicleState{ID: 1, Ego: true}, orb.Point{})) {
		t.Errorf("Stopped worker must reject frames")
	}
}

func TestWorkerUpdateTimeoutIsNotFatal(t *testing.T) {
	transport := newFakeTransport()
	worker := newTestWorker(t, transport, WithReplyTimeout(50*time.Millisecond))

	worker.StageFrame(NewUpdateMessage(0, VehicleState{ID: 1}, orb.Point{}))
	waitFor(t, "update to be sent", func() bool { return transport.sentCount() == 1 })
	time.Sleep(150 * time.Millisecond)
	select {
	case <-worker.Done():
		t.Fatalf("Unanswered update must not stop the worker")
	default:
	}
	if !worker.StageFrame(NewUpdateMessage(1, VehicleState{ID: 1}, orb.Point{})) {
		t.Errorf("Next update must be staged")
	}
	waitFor(t, "next update to be sent", func() bool { return transport.sentCount() == 2 })
}

func TestWorkerQueuesOtherMessages(t *testing.T) {
	transport := newFakeTransport()
	worker := newTestWorker(t, transport)

	worker.StageFrame(NewUpdateMessage(0, VehicleState{ID: 1}, orb.Point{}))
	transport.replies <- [][]byte{
		{0xff, 0xff, 0xff},
		encodeFrame(t, &Message{ID: 1, Session: &SessionMessage{Init: &SessionInit{NetFile: "town.net.xml"}}}),
		encodeFrame(t, &Message{ID: 2, TrafficLight: &TrafficLightMessage{Junctions: []TrafficLightJunction{{JunctionID: 4, States: []uint32{1, 3}}}}}),
	}
	waitFor(t, "reply to be processed", worker.TakeNewData)

	if !worker.HasPending() {
		t.Fatalf("Non-vehicle messages must be queued")
	}
	first, ok := worker.Pop()
	if !ok || first.Kind() != KIND_SESSION || first.Session.Init.NetFile != "town.net.xml" {
		t.Errorf("First message must be session init, but got %+v", first)
	}
	second, ok := worker.Pop()
	if !ok || second.Kind() != KIND_TRAFFIC_LIGHT {
		t.Errorf("Second message must be traffic light, but got %+v", second)
	}
	if worker.HasPending() {
		t.Errorf("Malformed frame must be skipped")
	}
}

func TestWorkerConnectionLoss(t *testing.T) {
	transport := newFakeTransport()
	transport.sendErr = errors.New("broken pipe")
	worker := newTestWorker(t, transport)

	worker.StageFrame(NewUpdateMessage(0, VehicleState{ID: 1}, orb.Point{}))
	select {
	case <-worker.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Worker must stop when connection is lost")
	}
	if worker.StageFrame(NewUpdateMessage(1, VehicleState{ID: 1}, orb.Point{})) {
		t.Errorf("Stopped worker must reject frames")
	}
}

func TestWorkerClose(t *testing.T) {
	transport := newFakeTransport()
	worker := newTestWorker(t, transport)

	popped := make(chan bool)
	go func() {
		_, ok := worker.Pop()
		popped <- ok
	}()

	if err := worker.Close(); err != nil {
		t.Errorf("Close must succeed, but got %v", err)
	}
	if err := worker.Close(); err != nil {
		t.Errorf("Second close must be a no-op, but got %v", err)
	}
	select {
	case ok := <-popped:
		if ok {
			t.Errorf("Pop must give nothing after close")
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Blocked pop must be released by close")
	}
	if worker.StageFrame(NewUpdateMessage(0, VehicleState{ID: 1}, orb.Point{})) {
		t.Errorf("Closed worker must reject frames")
	}
	select {
	case <-transport.closed:
	default:
		t.Errorf("Transport must be closed")
	}
}
