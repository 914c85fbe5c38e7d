package routing

import "github.com/openrti/rtinode/internal/handle"

// broadcastSet tracks which connects currently hold some property
// (publishing a class, subscribed to an attribute, ...) and, on each
// membership change, reports how the change must be propagated to the
// other connects.
//
// The decision follows from what the other connects can observe. Every
// connect sees the aggregate "is any connect other than me in the set".
// A 0→1 transition flips that view for everyone, so it broadcasts. A
// 1→2 transition only flips it for the connect that was previously the
// sole member, so the change is sent to that single connect. At three
// or more members nobody's aggregate view changes. Removal is the
// mirror image.
type broadcastSet struct {
	connects map[handle.ConnectHandle]struct{}
}

func newBroadcastSet() broadcastSet {
	return broadcastSet{connects: make(map[handle.ConnectHandle]struct{})}
}

func (s broadcastSet) contains(c handle.ConnectHandle) bool {
	_, ok := s.connects[c]
	return ok
}

func (s broadcastSet) size() int { return len(s.connects) }

// other returns some member of the set that is not c. Only meaningful
// when exactly one such member exists.
func (s broadcastSet) other(c handle.ConnectHandle) handle.ConnectHandle {
	for m := range s.connects {
		if m != c {
			return m
		}
	}
	return 0
}

func (s broadcastSet) insert(c handle.ConnectHandle) Decision {
	if _, ok := s.connects[c]; ok {
		return Decision{}
	}
	s.connects[c] = struct{}{}
	switch len(s.connects) {
	case 1:
		return Decision{Kind: PropagationBroadcast}
	case 2:
		return Decision{Kind: PropagationSend, Target: s.other(c)}
	default:
		return Decision{}
	}
}

func (s broadcastSet) erase(c handle.ConnectHandle) Decision {
	if _, ok := s.connects[c]; !ok {
		return Decision{}
	}
	delete(s.connects, c)
	switch len(s.connects) {
	case 0:
		return Decision{Kind: PropagationBroadcast}
	case 1:
		return Decision{Kind: PropagationSend, Target: s.other(c)}
	default:
		return Decision{}
	}
}
