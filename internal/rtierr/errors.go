// Package rtierr defines the closed set of error kinds the server core
// produces. Handler code never throws into the dispatch
// loop for expected outcomes — those are typed response messages built
// by comparing against these sentinels with errors.Is — so this package
// has no behavior beyond naming them.
package rtierr

import "errors"

var (
	// ErrMessage: the peer sent a structurally or semantically illegal
	// message. Fatal to the offending connect.
	ErrMessage = errors.New("message error")

	// ErrInconsistentFDD: a module merge conflict. Recoverable —
	// surfaces as a Create/Join response error.
	ErrInconsistentFDD = errors.New("inconsistent FDD")

	// ErrInternal: generic server-side failure.
	ErrInternal = errors.New("RTI internal error")

	ErrFederationExists   = errors.New("federation execution already exists")
	ErrFederationNotFound = errors.New("federation execution does not exist")
	ErrFederatesJoined    = errors.New("federates currently joined")
	ErrFederateNameInUse  = errors.New("federate name already in use")
	ErrFederateNotFound   = errors.New("federate does not exist")
	ErrLabelNotUnique     = errors.New("synchronization label not unique")
	ErrNameNotUnique      = errors.New("object instance name already reserved")
)
