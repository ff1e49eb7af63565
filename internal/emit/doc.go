// Package emit renders materialized values as text.
//
// An Emitter turns one node of a graph.Arena into its textual form:
// sequences as [a, b], mappings as {k: v}, timestamps as fixed-point
// microseconds and every other scalar in a JSON-like notation. A node
// that is re-entered while it is still being rendered is written as the
// cycle marker "...". The guard covers the active path only, so a value
// that is merely shared between siblings is rendered in full each time.
//
// A Document frames the rendered elements of one trace as a single
// top-level array.
package emit
