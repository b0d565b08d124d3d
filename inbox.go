package evisync

import (
	"sync"
)

// commandBucket coalesces pending commands by vehicle id: the latest one wins
type commandBucket struct {
	sync.Mutex
	pending map[uint32]VehicleState
}

func (bucket *commandBucket) put(state VehicleState) {
	bucket.Lock()
	defer bucket.Unlock()
	if bucket.pending == nil {
		bucket.pending = make(map[uint32]VehicleState)
	}
	if existing, ok := bucket.pending[state.ID]; ok {
		state = mergePending(existing, state)
	}
	bucket.pending[state.ID] = state
}

// mergePending keeps door flags which would be lost otherwise: a door-only update never hides a pending pose
func mergePending(existing, incoming VehicleState) VehicleState {
	switch {
	case incoming.DoorsOnly && !existing.DoorsOnly:
		existing.Doors = incoming.Doors
		return existing
	case !incoming.DoorsOnly && !incoming.Doors.Known && existing.Doors.Known:
		incoming.Doors = existing.Doors
		return incoming
	default:
		return incoming
	}
}

func (bucket *commandBucket) drain() map[uint32]VehicleState {
	bucket.Lock()
	defer bucket.Unlock()
	drained := bucket.pending
	bucket.pending = nil
	if drained == nil {
		return map[uint32]VehicleState{}
	}
	return drained
}

// CommandInbox holds Register/Update/Unregister commands not consumed by the foreground yet
type CommandInbox struct {
	register   commandBucket
	update     commandBucket
	unregister commandBucket
}

// Put never blocks on the consumer: pending command for the same vehicle is overwritten
func (inbox *CommandInbox) Put(state VehicleState) {
	switch state.Existence {
	case EXISTENCE_REGISTERING:
		inbox.register.put(state)
	case EXISTENCE_UNREGISTERING:
		inbox.unregister.put(state)
	default:
		inbox.update.put(state)
	}
}

// Drain takes every pending command of the given kind
func (inbox *CommandInbox) Drain(existence ExistenceState) map[uint32]VehicleState {
	switch existence {
	case EXISTENCE_REGISTERING:
		return inbox.register.drain()
	case EXISTENCE_UNREGISTERING:
		return inbox.unregister.drain()
	default:
		return inbox.update.drain()
	}
}

// messageQueue is FIFO of non-vehicle messages
type messageQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Message
	closed bool
}

func newMessageQueue() *messageQueue {
	queue := &messageQueue{}
	queue.cond = sync.NewCond(&queue.mu)
	return queue
}

func (queue *messageQueue) push(msg *Message) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.closed {
		return
	}
	queue.items = append(queue.items, msg)
	queue.cond.Signal()
}

// hasPending never blocks
func (queue *messageQueue) hasPending() bool {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.items) > 0
}

// pop blocks until a message is available or queue is closed
func (queue *messageQueue) pop() (*Message, bool) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	for len(queue.items) == 0 && !queue.closed {
		queue.cond.Wait()
	}
	if len(queue.items) == 0 {
		return nil, false
	}
	msg := queue.items[0]
	queue.items[0] = nil
	queue.items = queue.items[1:]
	return msg, true
}

func (queue *messageQueue) close() {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	queue.closed = true
	queue.cond.Broadcast()
}
