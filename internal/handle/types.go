package handle

// The handle newtypes below keep every entity kind's handle space
// distinct in the type system: a FederateHandle cannot be passed where
// a ConnectHandle is expected, while all of them share one generic
// Allocator implementation.

type FederationHandle uint64
type FederateHandle uint64
type ConnectHandle uint64
type ObjectClassHandle uint64
type AttributeHandle uint64
type InteractionClassHandle uint64
type ParameterHandle uint64
type DimensionHandle uint64
type UpdateRateHandle uint64
type ModuleHandle uint64
type ObjectInstanceHandle uint64
type RegionHandle uint64

// Invalid is the sentinel returned where "no handle" must be
// represented (e.g. an ObjectClass with no parent). It is never
// returned by Allocate/AllocateSpecific for a live handle in ordinary
// use, but 0 IS a valid handle (e.g. attribute 0 is privilegeToDelete),
// so callers must not test "== 0" to mean invalid; use the explicit
// Valid flag carried alongside optional handles instead (see
// objectmodel.ObjectClass.Parent).
const Invalid = ^uint64(0)
