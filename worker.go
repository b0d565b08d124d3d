package evisync

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultReplyTimeout = 300000 * time.Millisecond
)

// NetworkWorker owns the connection to EVI. A background goroutine sends the staged frame,
// waits for the reply and sorts parsed messages into inboxes drained by the foreground
type NetworkWorker struct {
	address      string
	transport    Transport
	replyTimeout time.Duration
	offset       orb.Point
	logger       *log.Entry

	stageMu    sync.Mutex
	staged     *Message
	lastStaged *Message
	replied    bool
	closed     bool
	wake       chan struct{}

	inbox   CommandInbox
	queue   *messageQueue
	newData chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type WorkerOption func(*NetworkWorker)

// WithReplyTimeout bounds the wait for a reply after each send
func WithReplyTimeout(timeout time.Duration) WorkerOption {
	return func(worker *NetworkWorker) {
		worker.replyTimeout = timeout
	}
}

// WithWorkerOffset sets scene offset subtracted from inbound positions
func WithWorkerOffset(offset orb.Point) WorkerOption {
	return func(worker *NetworkWorker) {
		worker.offset = offset
	}
}

func WithWorkerLogger(logger *log.Entry) WorkerOption {
	return func(worker *NetworkWorker) {
		worker.logger = logger
	}
}

// WithTransport uses already established transport instead of dialing the address
func WithTransport(transport Transport) WorkerOption {
	return func(worker *NetworkWorker) {
		worker.transport = transport
	}
}

// NewNetworkWorker connects to EVI and starts background exchange loop
func NewNetworkWorker(address string, options ...WorkerOption) (*NetworkWorker, error) {
	worker := &NetworkWorker{
		address:      address,
		replyTimeout: defaultReplyTimeout,
		logger:       log.NewEntry(log.StandardLogger()),
		wake:         make(chan struct{}, 1),
		queue:        newMessageQueue(),
		newData:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, option := range options {
		option(worker)
	}
	worker.logger = worker.logger.WithField("evi", address)
	worker.ctx, worker.cancel = context.WithCancel(context.Background())
	if worker.transport == nil {
		transport, err := DialTransport(worker.ctx, address)
		if err != nil {
			worker.cancel()
			worker.logger.WithError(err).Error("Can't connect to EVI")
			return nil, errors.Wrapf(ErrConnection, "Can't connect to '%s': %v", address, err)
		}
		worker.transport = transport
	}
	go worker.run()
	worker.logger.Info("Network worker started")
	return worker, nil
}

// StageFrame replaces the outbound frame. A frame following a registration is rejected until the registration has been answered.
// Returns false after Close
func (worker *NetworkWorker) StageFrame(msg *Message) bool {
	if msg == nil {
		return false
	}
	worker.stageMu.Lock()
	defer worker.stageMu.Unlock()
	if worker.closed {
		return false
	}
	if worker.lastStaged != nil && worker.lastStaged.IsRegister() && !worker.replied {
		return false
	}
	worker.staged = msg
	worker.lastStaged = msg
	worker.replied = false
	select {
	case worker.wake <- struct{}{}:
	default:
	}
	return true
}

func (worker *NetworkWorker) takeStaged() *Message {
	worker.stageMu.Lock()
	defer worker.stageMu.Unlock()
	msg := worker.staged
	worker.staged = nil
	return msg
}

// markReplied opens the gate only when msg is the frame staged last
func (worker *NetworkWorker) markReplied(msg *Message) {
	worker.stageMu.Lock()
	if msg == worker.lastStaged {
		worker.replied = true
	}
	worker.stageMu.Unlock()
}

func (worker *NetworkWorker) run() {
	defer close(worker.done)
	for {
		select {
		case <-worker.ctx.Done():
			return
		case <-worker.wake:
		}
		msg := worker.takeStaged()
		if msg == nil {
			continue
		}
		err := worker.exchange(msg)
		if err == nil {
			continue
		}
		if worker.ctx.Err() != nil {
			return
		}
		if errors.Is(err, ErrConnection) {
			worker.logger.WithError(err).Error("Connection to EVI is lost")
			worker.stageMu.Lock()
			worker.closed = true
			worker.staged = nil
			worker.stageMu.Unlock()
			return
		}
		worker.logger.WithError(err).Warn("Exchange with EVI failed")
	}
}

// Done is closed once background loop has stopped: after Close or when connection is lost
func (worker *NetworkWorker) Done() <-chan struct{} {
	return worker.done
}

// exchange sends one frame and processes the reply
func (worker *NetworkWorker) exchange(msg *Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	err = worker.transport.Send(worker.ctx, payload)
	if err != nil {
		if worker.ctx.Err() != nil {
			return err
		}
		return errors.Wrapf(ErrConnection, "Can't send frame: %v", err)
	}
	frames, err := worker.transport.Receive(worker.ctx, worker.replyTimeout)
	if err != nil {
		if errors.Is(err, errReceiveTimeout) && msg.IsRegister() {
			// Nothing can be sent until registration is answered
			return errors.Wrapf(ErrConnection, "Registration has not been answered in %v", worker.replyTimeout)
		}
		return errors.Wrap(err, "Can't receive reply")
	}
	worker.markReplied(msg)
	for _, frame := range frames {
		worker.processFrame(frame)
	}
	select {
	case worker.newData <- struct{}{}:
	default:
	}
	return nil
}

func (worker *NetworkWorker) processFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}
	msg, err := DecodeMessage(frame)
	if err != nil {
		worker.logger.WithError(err).WithField("size", len(frame)).Warn("Skip malformed frame")
		return
	}
	if msg.Kind() != KIND_VEHICLE {
		worker.queue.push(msg)
		return
	}
	for _, state := range vehicleStates(msg.Vehicle, worker.offset) {
		worker.inbox.Put(state)
	}
}

// TakeNewData reports (and resets) whether a reply has been processed since the previous call
func (worker *NetworkWorker) TakeNewData() bool {
	select {
	case <-worker.newData:
		return true
	default:
		return false
	}
}

// Drain takes pending vehicle commands of the given kind
func (worker *NetworkWorker) Drain(existence ExistenceState) map[uint32]VehicleState {
	return worker.inbox.Drain(existence)
}

// HasPending reports whether a non-vehicle message is waiting. Never blocks
func (worker *NetworkWorker) HasPending() bool {
	return worker.queue.hasPending()
}

// Pop takes the oldest non-vehicle message, blocking until one is available or the worker is closed
func (worker *NetworkWorker) Pop() (*Message, bool) {
	return worker.queue.pop()
}

// Close stops background loop and closes transport. Safe to call more than once
func (worker *NetworkWorker) Close() error {
	worker.closeOnce.Do(func() {
		worker.stageMu.Lock()
		worker.closed = true
		worker.staged = nil
		worker.stageMu.Unlock()

		worker.cancel()
		worker.closeErr = worker.transport.Close()
		<-worker.done
		worker.queue.close()
		worker.logger.Info("Network worker stopped")
	})
	return worker.closeErr
}
