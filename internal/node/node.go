// Package node holds the per-process server-node state: the connect
// table with its at-most-one parent connect, the federation tables, and
// the send primitives the dispatcher fans out through.
package node

import (
	"fmt"

	"github.com/openrti/rtinode/internal/federation"
	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
	"github.com/openrti/rtinode/internal/wire"
	"github.com/openrti/rtinode/internal/wire/handshake"
)

// MessageSender is the outbound half of one connect. Implementations
// serialize onto whatever transport backs the connect; Send must not
// block the server thread indefinitely.
type MessageSender interface {
	Send(msg wire.Message)
	Close()
}

// NodeConnect is one transport-level peering of this node.
type NodeConnect struct {
	Handle   handle.ConnectHandle
	IsParent bool
	Name     string
	Options  handshake.Options

	sender MessageSender
}

// Send pushes msg onto the connect's outbound transport.
func (c *NodeConnect) Send(msg wire.Message) {
	if c.sender != nil {
		c.sender.Send(msg)
	}
}

// CloseSender shuts the outbound half down.
func (c *NodeConnect) CloseSender() {
	if c.sender != nil {
		c.sender.Close()
	}
}

// Node is the per-process server state shared by the dispatcher.
type Node struct {
	ServerName string
	// ServerPath is the slash-joined chain of server names from the
	// root down to this node, carried in log lines so a message can be
	// placed in the tree.
	ServerPath string

	// PermitTimeRegulation is this node's own policy; the effective
	// permission for a subtree is the conjunction with every ancestor's
	// policy.
	PermitTimeRegulation bool

	connectAlloc *handle.Allocator[handle.ConnectHandle]
	connects     map[handle.ConnectHandle]*NodeConnect
	parent       handle.ConnectHandle
	hasParent    bool

	federationAlloc   *handle.Allocator[handle.FederationHandle]
	federations       map[handle.FederationHandle]*federation.Federation
	federationsByName map[string]handle.FederationHandle
}

// New creates an empty Node.
func New(serverName string) *Node {
	return &Node{
		ServerName:           serverName,
		ServerPath:           "/" + serverName,
		PermitTimeRegulation: true,
		connectAlloc:         handle.NewAllocator[handle.ConnectHandle](),
		connects:             make(map[handle.ConnectHandle]*NodeConnect),
		federationAlloc:      handle.NewAllocator[handle.FederationHandle](),
		federations:          make(map[handle.FederationHandle]*federation.Federation),
		federationsByName:    make(map[string]handle.FederationHandle),
	}
}

// InsertConnect registers a new child connect and returns it.
func (n *Node) InsertConnect(sender MessageSender, options handshake.Options) *NodeConnect {
	h := n.connectAlloc.Allocate()
	c := &NodeConnect{Handle: h, Options: options, sender: sender}
	if names := options[handshake.KeyServerName]; len(names) > 0 {
		c.Name = names[0]
	}
	n.connects[h] = c
	return c
}

// InsertParentConnect registers the connect toward this node's parent.
// A node has at most one.
func (n *Node) InsertParentConnect(sender MessageSender, options handshake.Options) (*NodeConnect, error) {
	if n.hasParent {
		return nil, fmt.Errorf("parent connect already present: %w", rtierr.ErrInternal)
	}
	c := n.InsertConnect(sender, options)
	c.IsParent = true
	n.parent = c.Handle
	n.hasParent = true

	// The parent dictates our place in the tree and may deny time
	// regulation for the whole subtree.
	if paths := options[handshake.KeyServerPath]; len(paths) > 0 {
		n.ServerPath = paths[0] + "/" + n.ServerName
	}
	if vs := options[handshake.KeyPermitTimeRegulation]; len(vs) > 0 && vs[0] == "false" {
		n.PermitTimeRegulation = false
	}
	return c, nil
}

// EraseConnect drops a connect from the table. Cleanup of the
// federations that referenced it is the dispatcher's job and must
// happen first.
func (n *Node) EraseConnect(h handle.ConnectHandle) {
	if _, ok := n.connects[h]; !ok {
		return
	}
	if n.hasParent && n.parent == h {
		n.hasParent = false
	}
	delete(n.connects, h)
	n.connectAlloc.Release(h)
}

// Connect looks up a connect by handle.
func (n *Node) Connect(h handle.ConnectHandle) (*NodeConnect, bool) {
	c, ok := n.connects[h]
	return c, ok
}

// Connects returns every live connect.
func (n *Node) Connects() []*NodeConnect {
	out := make([]*NodeConnect, 0, len(n.connects))
	for _, c := range n.connects {
		out = append(out, c)
	}
	return out
}

// ConnectCount reports the number of live connects.
func (n *Node) ConnectCount() int { return len(n.connects) }

// IsParentConnect reports whether h is the parent connect.
func (n *Node) IsParentConnect(h handle.ConnectHandle) bool {
	return n.hasParent && n.parent == h
}

// ParentConnect returns the parent connect handle, if any.
func (n *Node) ParentConnect() (handle.ConnectHandle, bool) {
	return n.parent, n.hasParent
}

// IsRootServer reports whether this node has no parent and therefore
// answers authoritative requests itself.
func (n *Node) IsRootServer() bool { return !n.hasParent }

// HasChildConnects reports whether any non-parent connect is live.
func (n *Node) HasChildConnects() bool {
	for h := range n.connects {
		if !n.IsParentConnect(h) {
			return true
		}
	}
	return false
}

// IsIdle reports whether a non-root node serves no children anymore,
// the condition for its leaf-registry thread to shut down.
func (n *Node) IsIdle() bool {
	return !n.IsRootServer() && !n.HasChildConnects()
}

// Send delivers msg to one connect, dropping it silently if the
// connect died in between.
func (n *Node) Send(to handle.ConnectHandle, msg wire.Message) {
	if c, ok := n.connects[to]; ok {
		c.Send(msg)
	}
}

// SendToParent forwards msg up the tree.
func (n *Node) SendToParent(msg wire.Message) {
	if n.hasParent {
		n.Send(n.parent, msg)
	}
}

// Broadcast sends msg to every connect except the originator.
func (n *Node) Broadcast(except handle.ConnectHandle, msg wire.Message) {
	for h, c := range n.connects {
		if h == except {
			continue
		}
		c.Send(msg)
	}
}

// BroadcastToChildren sends msg to every child connect except the
// originator.
func (n *Node) BroadcastToChildren(except handle.ConnectHandle, msg wire.Message) {
	for h, c := range n.connects {
		if h == except || n.IsParentConnect(h) {
			continue
		}
		c.Send(msg)
	}
}

// InsertFederation creates a federation with a freshly allocated
// handle, the root's half of create.
func (n *Node) InsertFederation(name string) (*federation.Federation, error) {
	if _, exists := n.federationsByName[name]; exists {
		return nil, fmt.Errorf("federation %q: %w", name, rtierr.ErrFederationExists)
	}
	h := n.federationAlloc.Allocate()
	fed := federation.New(h, name)
	n.federations[h] = fed
	n.federationsByName[name] = h
	return fed, nil
}

// InsertFederationWithHandle records a federation replicated from the
// parent, keeping the root-allocated handle.
func (n *Node) InsertFederationWithHandle(h handle.FederationHandle, name string) (*federation.Federation, error) {
	if _, exists := n.federationsByName[name]; exists {
		return nil, fmt.Errorf("federation %q: %w", name, rtierr.ErrMessage)
	}
	if _, exists := n.federations[h]; exists {
		return nil, fmt.Errorf("federation handle %d: %w", uint64(h), rtierr.ErrMessage)
	}
	if err := n.federationAlloc.AllocateSpecific(h); err != nil {
		return nil, fmt.Errorf("federation handle %d: %v: %w", uint64(h), err, rtierr.ErrMessage)
	}
	fed := federation.New(h, name)
	n.federations[h] = fed
	n.federationsByName[name] = h
	return fed, nil
}

// Federation looks up a federation by handle.
func (n *Node) Federation(h handle.FederationHandle) (*federation.Federation, bool) {
	fed, ok := n.federations[h]
	return fed, ok
}

// FederationByName looks up a federation by name. A federation whose
// name entry was already dropped during the two-phase destroy is not
// found here even though its handle entry still lives.
func (n *Node) FederationByName(name string) (*federation.Federation, bool) {
	h, ok := n.federationsByName[name]
	if !ok {
		return nil, false
	}
	return n.federations[h], true
}

// Federations returns every federation still known by handle.
func (n *Node) Federations() []*federation.Federation {
	out := make([]*federation.Federation, 0, len(n.federations))
	for _, fed := range n.federations {
		out = append(out, fed)
	}
	return out
}

// EraseFederationName removes only the name index entry: the first
// half of destroy when child subtrees still hold the federation. The
// handle entry stays until every child acknowledged the erase.
func (n *Node) EraseFederationName(fed *federation.Federation) {
	delete(n.federationsByName, fed.Name)
}

// HasFederationName reports whether the name index still carries fed.
func (n *Node) HasFederationName(fed *federation.Federation) bool {
	_, ok := n.federationsByName[fed.Name]
	return ok
}

// EraseFederation removes the federation entirely and releases its
// handle.
func (n *Node) EraseFederation(fed *federation.Federation) {
	delete(n.federations, fed.Handle)
	delete(n.federationsByName, fed.Name)
	n.federationAlloc.Release(fed.Handle)
}
