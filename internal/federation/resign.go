package federation

// ResignAction is the policy a federate attaches at join time that
// decides what happens to its owned attributes and object instances
// when it resigns. ChangeAutomaticResignDirective replaces it at
// runtime.
type ResignAction int

const (
	// ResignCallbacksThenNothing leaves owned attributes and object
	// instances exactly as they were; the federate is simply removed.
	ResignCallbacksThenNothing ResignAction = iota
	// ResignUnconditionallyDivestAttributes releases every attribute
	// the federate owns back to "no owner" before it is removed.
	ResignUnconditionallyDivestAttributes
	// ResignDeleteObjects deletes every object instance for which the
	// federate owns privilegeToDelete before it is removed.
	ResignDeleteObjects
	// ResignDeleteObjectsThenDivest does both, in that order.
	ResignDeleteObjectsThenDivest
)

func (r ResignAction) String() string {
	switch r {
	case ResignUnconditionallyDivestAttributes:
		return "UnconditionallyDivestAttributes"
	case ResignDeleteObjects:
		return "DeleteObjects"
	case ResignDeleteObjectsThenDivest:
		return "DeleteObjectsThenDivest"
	default:
		return "CallbacksThenNothing"
	}
}

// DivestsAttributes reports whether this action releases ownership.
func (r ResignAction) DivestsAttributes() bool {
	return r == ResignUnconditionallyDivestAttributes || r == ResignDeleteObjectsThenDivest
}

// DeletesOwnedObjects reports whether this action deletes instances
// the federate held privilegeToDelete on.
func (r ResignAction) DeletesOwnedObjects() bool {
	return r == ResignDeleteObjects || r == ResignDeleteObjectsThenDivest
}
