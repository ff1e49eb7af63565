// Package convert runs the decode loop: records from a wire.Reader are
// applied to a graph.Builder, and every value that becomes ready is
// rendered by an emit.Emitter into an emit.Document.
//
// Conversion is a single synchronous pass. Output is written and flushed
// element by element, so everything emitted before a fatal error stays in
// the output; the closing bracket is only written on success.
package convert
