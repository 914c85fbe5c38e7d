package instancemodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openrti/rtinode/internal/handle"
	"github.com/openrti/rtinode/internal/rtierr"
)

// reservedNamePrefix is reserved for the RTI itself; client reservation
// requests carrying it must be rejected as a protocol error before
// ever reaching the root.
const reservedNamePrefix = "HLA"

// Registry is the root-authoritative table of ObjectInstanceHandles
// for one federation. A non-root node's equivalent bookkeeping
// — the set of handles and names it has been told about by its parent
// — uses the same Registry type, just never calling AllocateHandles
// or ReserveName itself; it only relays what the root decided.
type Registry struct {
	alloc         *handle.Allocator[handle.ObjectInstanceHandle]
	instances     map[handle.ObjectInstanceHandle]*ObjectInstance
	namesToHandle map[string]handle.ObjectInstanceHandle
}

func NewRegistry() *Registry {
	return &Registry{
		alloc:         handle.NewAllocator[handle.ObjectInstanceHandle](),
		instances:     make(map[handle.ObjectInstanceHandle]*ObjectInstance),
		namesToHandle: make(map[string]handle.ObjectInstanceHandle),
	}
}

// Get returns the instance for h, if any.
func (r *Registry) Get(h handle.ObjectInstanceHandle) (*ObjectInstance, bool) {
	o, ok := r.instances[h]
	return o, ok
}

// ByName returns the instance currently holding name, if any.
func (r *Registry) ByName(name string) (*ObjectInstance, bool) {
	h, ok := r.namesToHandle[name]
	if !ok {
		return nil, false
	}
	return r.instances[h], true
}

// ValidateClientName rejects names reserved for the RTI itself.
func ValidateClientName(name string) error {
	if strings.HasPrefix(name, reservedNamePrefix) {
		return fmt.Errorf("object instance name %q uses reserved prefix %q: %w", name, reservedNamePrefix, rtierr.ErrMessage)
	}
	return nil
}

// AllocateHandles mints count fresh instances with empty names,
// referenced by referencingConnect, mirroring an
// ObjectInstanceHandlesRequest/Response round trip at the root.
func (r *Registry) AllocateHandles(count int, referencingConnect handle.ConnectHandle) []handle.ObjectInstanceHandle {
	out := make([]handle.ObjectInstanceHandle, 0, count)
	for i := 0; i < count; i++ {
		h := r.alloc.Allocate()
		r.instances[h] = &ObjectInstance{
			Handle:              h,
			Attributes:          make(map[handle.AttributeHandle]*InstanceAttribute),
			referencingConnects: map[handle.ConnectHandle]struct{}{referencingConnect: {}},
		}
		out = append(out, h)
	}
	return out
}

// InsertWithHandle records an instance under a handle that was
// allocated at the root, the non-root half of the handle round trip.
// The name may be empty for a not-yet-registered instance.
func (r *Registry) InsertWithHandle(h handle.ObjectInstanceHandle, name string, referencingConnect handle.ConnectHandle) (*ObjectInstance, error) {
	if o, ok := r.instances[h]; ok {
		o.referencingConnects[referencingConnect] = struct{}{}
		return o, nil
	}
	if err := r.alloc.AllocateSpecific(h); err != nil {
		return nil, fmt.Errorf("object instance handle %d: %v: %w", uint64(h), err, rtierr.ErrMessage)
	}
	o := &ObjectInstance{
		Handle:              h,
		Name:                name,
		Attributes:          make(map[handle.AttributeHandle]*InstanceAttribute),
		referencingConnects: map[handle.ConnectHandle]struct{}{referencingConnect: {}},
	}
	r.instances[h] = o
	if name != "" {
		r.namesToHandle[name] = h
	}
	return o, nil
}

// ReserveName allocates a fresh handle pre-bound to name, failing with
// ErrNameNotUnique if the name is already reserved anywhere in the
// federation.
func (r *Registry) ReserveName(name string, referencingConnect handle.ConnectHandle) (handle.ObjectInstanceHandle, error) {
	if err := ValidateClientName(name); err != nil {
		return 0, err
	}
	if _, taken := r.namesToHandle[name]; taken {
		return 0, fmt.Errorf("name %q: %w", name, rtierr.ErrNameNotUnique)
	}
	h := r.alloc.Allocate()
	r.instances[h] = &ObjectInstance{
		Handle:              h,
		Name:                name,
		Attributes:          make(map[handle.AttributeHandle]*InstanceAttribute),
		referencingConnects: map[handle.ConnectHandle]struct{}{referencingConnect: {}},
	}
	r.namesToHandle[name] = h
	return h, nil
}

// Insert finalizes an InsertObjectInstance for a previously allocated
// (possibly still-unnamed) handle: assigns name and class, and seeds
// InstanceAttribute state with owner for each attribute the owning
// federate published.
func (r *Registry) Insert(h handle.ObjectInstanceHandle, name string, class handle.ObjectClassHandle, ownedAttrs []handle.AttributeHandle, owner handle.ConnectHandle) error {
	o, ok := r.instances[h]
	if !ok {
		return fmt.Errorf("object instance handle %d: %w", uint64(h), rtierr.ErrInternal)
	}
	if o.Name == "" && name != "" {
		if err := ValidateClientName(name); err != nil {
			return err
		}
		o.Name = name
		r.namesToHandle[name] = h
	}
	o.Class = class
	for _, attr := range ownedAttrs {
		o.Attribute(attr).SetOwner(owner)
	}
	return nil
}

// AddReference records that connect now holds a reference to h —
// e.g. it received an InsertObjectInstance for it.
func (r *Registry) AddReference(h handle.ObjectInstanceHandle, connect handle.ConnectHandle) error {
	o, ok := r.instances[h]
	if !ok {
		return fmt.Errorf("object instance handle %d: %w", uint64(h), rtierr.ErrInternal)
	}
	o.referencingConnects[connect] = struct{}{}
	return nil
}

// ReleaseReference drops connect's reference to h. Once the last
// reference anywhere is dropped, the instance is deleted and its
// handle released back to the allocator — the return value reports
// whether that happened, the trigger for propagating
// ReleaseMultipleObjectInstanceNameHandlePairs upstream.
func (r *Registry) ReleaseReference(h handle.ObjectInstanceHandle, connect handle.ConnectHandle) (deleted bool, err error) {
	o, ok := r.instances[h]
	if !ok {
		return false, fmt.Errorf("object instance handle %d: %w", uint64(h), rtierr.ErrInternal)
	}
	delete(o.referencingConnects, connect)
	if len(o.referencingConnects) > 0 {
		return false, nil
	}
	delete(r.instances, h)
	if o.Name != "" {
		delete(r.namesToHandle, o.Name)
	}
	r.alloc.Release(h)
	return true, nil
}

// Instances returns every live instance, ordered by handle.
func (r *Registry) Instances() []*ObjectInstance {
	out := make([]*ObjectInstance, 0, len(r.instances))
	for _, o := range r.instances {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Len reports the number of live instances, for admin/metrics use.
func (r *Registry) Len() int { return len(r.instances) }
