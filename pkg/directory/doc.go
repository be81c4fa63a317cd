// Package directory implements the aggregator callers talk to. It
// combines the three catalog sources into one consistent view: single
// entities resolve through a probe-gated fallback chain (custom, then
// secondary, then the primary catalog of record), while catalog-wide
// operations query every source, degrade individual failures to empty
// contributions, and fold the results through the merge engine.
//
// Every operation runs through a get-or-compute cache cycle keyed by
// the operation name and its normalized arguments. When the custom
// catalog changes, InvalidateCustomCatalog discards the dependent
// entries and re-warms the highest-traffic aggregates.
package directory
