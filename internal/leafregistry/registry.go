// Package leafregistry shares in-process leaf servers across local
// connects: one server goroutine per URL, created on first use and
// reused until it shuts itself down. The registry is one per process
// by design; it is the only process-wide singleton in the tree, kept
// behind an explicit mutex-guarded lazy init.
package leafregistry

import (
	"sync"

	"github.com/openrti/rtinode/internal/dispatch"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/logger"
	"github.com/openrti/rtinode/internal/node"
	"github.com/openrti/rtinode/internal/serverloop"
	"github.com/openrti/rtinode/internal/transport"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// LeafServerThread is one shared leaf server: a dispatch loop plus,
// for network URLs, the parent link toward the addressed server.
type LeafServerThread struct {
	url  transport.URL
	loop *serverloop.Loop

	network *serverloop.NetworkServer
	thread  *serverloop.ThreadServer

	registry *Registry
}

// Connect attaches one local ambassador to the leaf server and returns
// its connect handle. sender receives the ambassador's inbound
// messages.
func (t *LeafServerThread) Connect(sender node.MessageSender, options handshake.Options) (handle.ConnectHandle, error) {
	return t.loop.PostConnect(sender, options)
}

// Disconnect detaches a previously connected ambassador. A network leaf
// server, which sits below a parent, shuts itself down and leaves the
// registry once its last child connect is gone; a thread:// server is
// a root and keeps running.
func (t *LeafServerThread) Disconnect(connect handle.ConnectHandle) {
	t.loop.PostDisconnect(connect)
	t.loop.PostOperation(func() {
		if !t.loop.Dispatcher().Node().IsIdle() {
			return
		}
		// Idle shutdown runs off the dispatch goroutine; the registry
		// erase must tolerate a newer thread having taken the slot.
		go t.stop()
	})
}

// Loop exposes the underlying post queue.
func (t *LeafServerThread) Loop() *serverloop.Loop { return t.loop }

func (t *LeafServerThread) stop() {
	if t.network != nil {
		t.network.Shutdown()
	} else {
		t.thread.Stop()
	}
	t.registry.erase(t.url.String(), t)
}

// Registry is the process-wide URL to leaf-server map.
type Registry struct {
	log *logger.Logger

	mu      sync.Mutex
	threads map[string]*LeafServerThread
}

var (
	processRegistry     *Registry
	processRegistryOnce sync.Once
)

// Process returns the per-process registry, creating it on first use.
func Process(log *logger.Logger) *Registry {
	processRegistryOnce.Do(func() {
		processRegistry = NewRegistry(log)
	})
	return processRegistry
}

// NewRegistry builds an isolated registry, used directly in tests.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{log: log, threads: make(map[string]*LeafServerThread)}
}

// Connect returns the leaf server for url, starting one if none runs
// yet. thread:// URLs get a root ThreadServer shared by every local
// connect; network URLs get a NetworkServer linked to the addressed
// parent.
func (r *Registry) Connect(url transport.URL) (*LeafServerThread, error) {
	key := url.String()

	r.mu.Lock()
	if t, ok := r.threads[key]; ok {
		r.mu.Unlock()
		return t, nil
	}
	r.mu.Unlock()

	t, err := r.start(url)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.threads[key]; ok {
		// Lost the creation race; keep the winner.
		r.mu.Unlock()
		go t.stop()
		return existing, nil
	}
	r.threads[key] = t
	r.mu.Unlock()
	return t, nil
}

func (r *Registry) start(url transport.URL) (*LeafServerThread, error) {
	n := node.New("leaf")
	d := dispatch.New(n, r.log, nil)

	t := &LeafServerThread{url: url, registry: r}
	if url.Protocol == transport.ProtocolThread {
		ts := serverloop.NewThreadServer(d, r.log)
		t.thread = ts
		t.loop = ts.Loop
		return t, nil
	}

	ns := serverloop.NewNetworkServer(d, r.log, handshake.ServerConfig{
		ServerName: "leaf",
		ServerPath: n.ServerPath,
	})
	if _, err := ns.DialParent(url); err != nil {
		ns.Shutdown()
		return nil, err
	}
	t.network = ns
	t.loop = ns.Loop
	return t, nil
}

// erase removes the entry for key, provided it still points at t; a
// newer thread that replaced a stopping one stays untouched.
func (r *Registry) erase(key string, t *LeafServerThread) {
	r.mu.Lock()
	if current, ok := r.threads[key]; ok && current == t {
		delete(r.threads, key)
	}
	r.mu.Unlock()
}

// Len reports the number of live leaf servers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}
