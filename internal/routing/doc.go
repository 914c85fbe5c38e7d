// Package routing maintains the per-class, per-connect publication and
// subscription tables — for InteractionClasses and for individual
// ObjectClass attributes — that drive subscription/publication
// propagation and attribute-update/interaction fanout.
package routing
