package serverloop

import (
	"errors"

	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/wire"
)

// ErrServerDone reports a Post* that raced the loop's shutdown.
var ErrServerDone = errors.New("server loop already done")

// ThreadServer is the pure in-process shape: one goroutine draining
// the post queue, no transports. Ambassadors in the same process
// attach through PostConnect with an InProcessSender pair.
type ThreadServer struct {
	*Loop
}

// NewThreadServer starts the dispatch goroutine immediately.
func NewThreadServer(d *dispatch.Dispatcher, log *logger.Logger) *ThreadServer {
	s := &ThreadServer{Loop: NewLoop(d, log)}
	go s.Run()
	return s
}

// Stop shuts the loop down and waits for the drain to finish.
func (s *ThreadServer) Stop() {
	s.PostDone()
	s.Wait()
}

// InProcessSender delivers messages into a Loop as if they arrived on
// a transport: the server's outbound half of an in-process connect
// posts straight into the peer loop's queue.
type InProcessSender struct {
	peer    *Loop
	connect handle.ConnectHandle
}

// NewInProcessSender wires a sender that feeds peer, attributed to
// connect on the peer's side.
func NewInProcessSender(peer *Loop, connect handle.ConnectHandle) *InProcessSender {
	return &InProcessSender{peer: peer, connect: connect}
}

func (s *InProcessSender) Send(msg wire.Message) {
	s.peer.PostMessage(msg, s.connect)
}

func (s *InProcessSender) Close() {
	s.peer.PostDisconnect(s.connect)
}

// FuncSender adapts a function to the sender interface, the shape the
// federate-side ambassador hands in to receive its callbacks.
type FuncSender struct {
	SendFunc  func(wire.Message)
	CloseFunc func()
}

func (s *FuncSender) Send(msg wire.Message) {
	if s.SendFunc != nil {
		s.SendFunc(msg)
	}
}

func (s *FuncSender) Close() {
	if s.CloseFunc != nil {
		s.CloseFunc()
	}
}
