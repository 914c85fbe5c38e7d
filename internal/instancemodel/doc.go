// Package instancemodel holds the per-federation dynamic object
// instance state: ObjectInstance, InstanceAttribute, and the
// per-connect reference sets that drive instance lifetime.
package instancemodel
