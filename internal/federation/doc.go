// Package federation holds per-federation dynamic state: Federate,
// FederationConnect, the aggregating Federation itself, and
// synchronization points.
package federation
