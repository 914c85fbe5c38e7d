// Package objectmodel implements the federation-global FOM state
// of a federation execution: Dimensions, UpdateRates,
// InteractionClasses (with inherited parameter trees), ObjectClasses
// (with inherited attribute trees), and the incremental Module-based
// build that makes every element module-refcounted.
//
// Every entity here is immutable after creation except for its set of
// referencing Modules; the one mutation path is Model.Insert, which
// either commits a whole module's worth of new/matched elements or
// rolls all of them back.
package objectmodel
