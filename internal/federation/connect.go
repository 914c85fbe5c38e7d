package federation

import "github.com/openrti/rtinode/internal/handle"

// FederationConnect is one (federation × connect) pair: the state a
// node keeps about a single downstream or upstream link's involvement
// in one federation.
type FederationConnect struct {
	Connect handle.ConnectHandle

	// IsParent marks the connect toward this node's parent, versus a
	// child connect. At most one FederationConnect per federation may
	// set this.
	IsParent bool

	Active bool

	federates map[handle.FederateHandle]struct{}

	TimeRegulationPermitted bool
	timeRegulatingFederates map[handle.FederateHandle]struct{}

	// KnownInstances is the set of ObjectInstanceHandles this connect
	// has been told about (via InsertObjectInstance or a handle/name
	// reservation reply) — the references released in
	// instancemodel.Registry on this connect's behalf when it goes away.
	KnownInstances map[handle.ObjectInstanceHandle]struct{}
}

func newFederationConnect(connect handle.ConnectHandle, isParent bool) *FederationConnect {
	// A parent connect is live from the start; a child connect stays
	// inactive until the full resume state has been pushed to it.
	return &FederationConnect{
		Connect:                 connect,
		IsParent:                isParent,
		Active:                  isParent,
		federates:               make(map[handle.FederateHandle]struct{}),
		timeRegulatingFederates: make(map[handle.FederateHandle]struct{}),
		KnownInstances:          make(map[handle.ObjectInstanceHandle]struct{}),
	}
}

func (c *FederationConnect) addFederate(f handle.FederateHandle)    { c.federates[f] = struct{}{} }
func (c *FederationConnect) removeFederate(f handle.FederateHandle) { delete(c.federates, f) }

// HasFederates reports whether any federate on this node is still
// attached via this connect — the signal for issuing
// EraseFederationExecution once it drops to zero.
func (c *FederationConnect) HasFederates() bool { return len(c.federates) > 0 }

// Federates returns the handles of federates attached via this connect.
func (c *FederationConnect) Federates() []handle.FederateHandle {
	out := make([]handle.FederateHandle, 0, len(c.federates))
	for f := range c.federates {
		out = append(out, f)
	}
	return out
}

func (c *FederationConnect) addTimeRegulating(f handle.FederateHandle) {
	c.timeRegulatingFederates[f] = struct{}{}
}

func (c *FederationConnect) removeTimeRegulating(f handle.FederateHandle) {
	delete(c.timeRegulatingFederates, f)
}

// IsTimeRegulating reports whether ≥1 federate on this connect is
// currently time regulating.
func (c *FederationConnect) IsTimeRegulating() bool { return len(c.timeRegulatingFederates) > 0 }
