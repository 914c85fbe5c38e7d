package serverloop

import (
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/transport"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// NetworkServer is the transport-backed shape: the same dispatch loop,
// fed by listener and per-connection reader goroutines. Each accepted
// stream negotiates the option handshake, registers a connect, and
// then pumps decoded messages into the post queue.
type NetworkServer struct {
	*Loop

	log *logger.Logger
	cfg handshake.ServerConfig

	mu          sync.Mutex
	listeners   []net.Listener
	wsShutdowns []func() error
	conns       map[handle.ConnectHandle]*transport.MessageConn
	wg          sync.WaitGroup
}

// NewNetworkServer starts the dispatch goroutine; listeners attach via
// Listen.
func NewNetworkServer(d *dispatch.Dispatcher, log *logger.Logger, cfg handshake.ServerConfig) *NetworkServer {
	s := &NetworkServer{
		Loop:  NewLoop(d, log),
		log:   log,
		cfg:   cfg,
		conns: make(map[handle.ConnectHandle]*transport.MessageConn),
	}
	go s.Run()
	return s
}

// Listen accepts connections on u until shutdown.
func (s *NetworkServer) Listen(u transport.URL) error {
	if u.Protocol == transport.ProtocolWebSocket {
		shutdown, err := transport.ListenWebSocket(u, func(conn net.Conn) {
			s.serveStream(conn)
		})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.wsShutdowns = append(s.wsShutdowns, shutdown)
		s.mu.Unlock()
		return nil
	}

	ln, err := transport.Listen(u)
	if err != nil {
		return err
	}
	s.Serve(ln)
	return nil
}

// Serve accepts connections on an already-open listener until
// shutdown.
func (s *NetworkServer) Serve(ln net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serveStream(conn)
			}()
		}
	}()
}

// serveStream runs handshake, connect registration, and the read pump
// for one accepted stream.
func (s *NetworkServer) serveStream(raw net.Conn) {
	mc, offer, err := transport.AcceptStream(raw, s.cfg)
	if err != nil {
		s.log.Warn("handshake failed", "server", s.cfg.ServerPath, "error", err)
		return
	}

	sender := &connSender{conn: mc, log: s.log}
	connect, err := s.PostConnect(sender, offer)
	if err != nil {
		mc.Close()
		return
	}
	s.mu.Lock()
	s.conns[connect] = mc
	s.mu.Unlock()

	s.readPump(mc, connect)
}

// readPump decodes inbound messages until the stream dies, then runs
// the connection-loss path.
func (s *NetworkServer) readPump(mc *transport.MessageConn, connect handle.ConnectHandle) {
	for {
		msg, err := mc.ReadMessage()
		if err != nil {
			s.PostMessage(&wire.ConnectionLost{FaultDescription: err.Error()}, connect)
			s.PostDisconnect(connect)
			s.mu.Lock()
			delete(s.conns, connect)
			s.mu.Unlock()
			mc.Close()
			return
		}
		s.PostMessage(msg, connect)
	}
}

// DialParent connects this node to its parent server with a bounded
// exponential backoff, registers the parent connect, and starts its
// read pump.
func (s *NetworkServer) DialParent(u transport.URL) (handle.ConnectHandle, error) {
	var mc *transport.MessageConn
	var reply handshake.Options

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(func() error {
		var err error
		mc, reply, err = transport.Dial(u, time.Time{})
		return err
	}, policy)
	if err != nil {
		return 0, err
	}

	sender := &connSender{conn: mc, log: s.log}
	connect, err := s.PostParentConnect(sender, reply)
	if err != nil {
		mc.Close()
		return 0, err
	}
	s.mu.Lock()
	s.conns[connect] = mc
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.readPump(mc, connect)
	}()
	return connect, nil
}

// Shutdown closes the listeners, drains the loop, and waits for the
// pumps to finish.
func (s *NetworkServer) Shutdown() {
	s.mu.Lock()
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
	for _, shutdown := range s.wsShutdowns {
		_ = shutdown()
	}
	conns := make([]*transport.MessageConn, 0, len(s.conns))
	for _, mc := range s.conns {
		conns = append(conns, mc)
	}
	s.mu.Unlock()

	s.PostDone()
	s.Wait()
	for _, mc := range conns {
		_ = mc.Close()
	}
	s.wg.Wait()
}

// connSender serializes outbound messages onto one stream from its own
// goroutine, so a slow peer never stalls the dispatch loop.
type connSender struct {
	conn *transport.MessageConn
	log  *logger.Logger

	mu      sync.Mutex
	queue   []wire.Message
	pumping bool
	closed  bool
}

func (s *connSender) Send(msg wire.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, msg)
	if s.pumping {
		s.mu.Unlock()
		return
	}
	s.pumping = true
	s.mu.Unlock()
	go s.pump()
}

func (s *connSender) pump() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.closed {
			s.pumping = false
			s.mu.Unlock()
			return
		}
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, msg := range batch {
			if err := s.conn.WriteMessage(msg); err != nil {
				s.log.Warn("outbound write failed", "peer", s.conn.RemoteAddr(), "error", err)
				s.mu.Lock()
				s.closed = true
				s.queue = nil
				s.pumping = false
				s.mu.Unlock()
				return
			}
		}
	}
}

func (s *connSender) Close() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	_ = s.conn.Close()
}
