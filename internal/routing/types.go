package routing

import "github.com/openrti/rtinode/internal/handle"

// PublicationType is a connect's publication state for a class or
// attribute.
type PublicationType int

const (
	Unpublished PublicationType = iota
	Published
)

func (p PublicationType) String() string {
	if p == Published {
		return "Published"
	}
	return "Unpublished"
}

// SubscriptionType is a connect's subscription state for a class or
// attribute. Passive subscribers receive updates but are invisible to
// publisher-side delivery advisories.
type SubscriptionType int

const (
	Unsubscribed SubscriptionType = iota
	Passive
	Active
)

// IsSubscribed reports whether s represents any non-Unsubscribed state.
func (s SubscriptionType) IsSubscribed() bool { return s != Unsubscribed }

func (s SubscriptionType) String() string {
	switch s {
	case Passive:
		return "Passive"
	case Active:
		return "Active"
	default:
		return "Unsubscribed"
	}
}

// PropagationKind says whether a publication or subscription change
// must travel further: nowhere, to one specific connect, or to every
// other connect.
type PropagationKind int

const (
	PropagationNone PropagationKind = iota
	PropagationSend
	PropagationBroadcast
)

func (k PropagationKind) String() string {
	switch k {
	case PropagationSend:
		return "Send"
	case PropagationBroadcast:
		return "Broadcast"
	default:
		return "None"
	}
}

// Decision is the propagation outcome of one state change. Target is
// only meaningful for PropagationSend.
type Decision struct {
	Kind   PropagationKind
	Target handle.ConnectHandle
}

// merge combines two decisions into the stronger one. Two sends to
// different targets widen to a broadcast.
func (d Decision) merge(o Decision) Decision {
	if d.Kind == PropagationBroadcast || o.Kind == PropagationBroadcast {
		return Decision{Kind: PropagationBroadcast}
	}
	if d.Kind == PropagationNone {
		return o
	}
	if o.Kind == PropagationNone {
		return d
	}
	if d.Target != o.Target {
		return Decision{Kind: PropagationBroadcast}
	}
	return d
}
