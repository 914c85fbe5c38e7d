// Package serverloop runs a server node's single dispatch goroutine
// and the thread-safe post queue feeding it. Two concrete shapes share
// the contract: ThreadServer for purely in-process federations and
// NetworkServer for transport-backed ones.
package serverloop

import (
	"sync"

	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// queueItem is one enqueued unit of work: a message bound for the
// dispatcher or a boxed operation to run on the dispatch goroutine.
type queueItem struct {
	msg     wire.Message
	connect handle.ConnectHandle
	op      func()
}

// Loop owns the inbound queue and the dispatch goroutine. All model
// state behind the Dispatcher is touched exclusively from that
// goroutine; the Post* surface is safe from any goroutine.
type Loop struct {
	dispatcher *dispatch.Dispatcher
	log        *logger.Logger

	mu      sync.Mutex
	wake    *sync.Cond
	inbound []queueItem
	// free is the drained-and-recycled backing array; the steady state
	// swaps the two slices instead of allocating.
	free []queueItem
	done bool

	stopped chan struct{}
}

// NewLoop builds a Loop over d. Call Run (usually on its own
// goroutine) to start dispatching.
func NewLoop(d *dispatch.Dispatcher, log *logger.Logger) *Loop {
	l := &Loop{
		dispatcher: d,
		log:        log,
		stopped:    make(chan struct{}),
	}
	l.wake = sync.NewCond(&l.mu)
	return l
}

// Dispatcher exposes the dispatcher for same-goroutine callers (inside
// posted operations).
func (l *Loop) Dispatcher() *dispatch.Dispatcher { return l.dispatcher }

// PostMessage enqueues msg as arriving on connect. Safe from any
// goroutine; messages from one goroutine are dispatched in posting
// order. Messages posted after PostDone are silently discarded.
func (l *Loop) PostMessage(msg wire.Message, connect handle.ConnectHandle) {
	l.post(queueItem{msg: msg, connect: connect})
}

// PostOperation enqueues op to run on the dispatch goroutine.
func (l *Loop) PostOperation(op func()) {
	l.post(queueItem{op: op})
}

func (l *Loop) post(item queueItem) {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return
	}
	wasEmpty := len(l.inbound) == 0
	l.inbound = append(l.inbound, item)
	l.mu.Unlock()
	if wasEmpty {
		l.wake.Signal()
	}
}

// PostDone requests shutdown: the loop drains what is already queued,
// then exits. Idempotent.
func (l *Loop) PostDone() {
	l.mu.Lock()
	l.done = true
	l.mu.Unlock()
	l.wake.Broadcast()
}

// Wait blocks until the loop has exited.
func (l *Loop) Wait() { <-l.stopped }

// PostConnect inserts a child connect from another goroutine, blocking
// until the dispatch goroutine has picked the operation up, and
// returns the new connect handle.
func (l *Loop) PostConnect(sender node.MessageSender, options handshake.Options) (handle.ConnectHandle, error) {
	type result struct {
		h   handle.ConnectHandle
		err error
	}
	doneCh := make(chan result, 1)
	l.PostOperation(func() {
		doneCh <- result{h: l.dispatcher.InsertConnect(sender, options)}
	})

	// A shutdown racing the insert must not leave the caller hanging.
	select {
	case r := <-doneCh:
		return r.h, r.err
	case <-l.stopped:
		return 0, ErrServerDone
	}
}

// PostParentConnect is PostConnect for the connect toward the parent
// server.
func (l *Loop) PostParentConnect(sender node.MessageSender, options handshake.Options) (handle.ConnectHandle, error) {
	type result struct {
		h   handle.ConnectHandle
		err error
	}
	doneCh := make(chan result, 1)
	l.PostOperation(func() {
		h, err := l.dispatcher.InsertParentConnect(sender, options)
		doneCh <- result{h: h, err: err}
	})
	select {
	case r := <-doneCh:
		return r.h, r.err
	case <-l.stopped:
		return 0, ErrServerDone
	}
}

// SendConnect inserts a child connect from the dispatch goroutine
// itself; callers elsewhere must use PostConnect.
func (l *Loop) SendConnect(sender node.MessageSender, options handshake.Options) handle.ConnectHandle {
	return l.dispatcher.InsertConnect(sender, options)
}

// PostDisconnect enqueues the removal of connect with its full
// cascading cleanup.
func (l *Loop) PostDisconnect(connect handle.ConnectHandle) {
	l.PostOperation(func() {
		l.dispatcher.RemoveConnect(connect)
	})
}

// Run drains the queue until PostDone. The drain swaps the pending
// slice with the recycled one under the lock, releases the lock while
// dispatching in order, then re-acquires it to hand the emptied slice
// back, so the steady state performs no allocation.
func (l *Loop) Run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		for len(l.inbound) == 0 && !l.done {
			l.wake.Wait()
		}
		if len(l.inbound) == 0 && l.done {
			l.mu.Unlock()
			return
		}
		batch := l.inbound
		l.inbound = l.free[:0]
		l.mu.Unlock()

		for i := range batch {
			l.dispatchItem(&batch[i])
			batch[i] = queueItem{}
		}

		l.mu.Lock()
		l.free = batch[:0]
		exit := l.done && len(l.inbound) == 0
		l.mu.Unlock()
		if exit {
			return
		}
	}
}

func (l *Loop) dispatchItem(item *queueItem) {
	if item.op != nil {
		item.op()
		return
	}
	if err := l.dispatcher.Dispatch(item.connect, item.msg); err != nil {
		// The dispatcher already logged; expected outcomes were
		// replies, so whatever reaches here is fatal to the connect.
		l.dispatcher.RemoveConnect(item.connect)
	}
}
