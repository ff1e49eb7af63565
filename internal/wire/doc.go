// Package wire reads and writes the binary trace format.
//
// A trace is one CBOR array of mutation records:
//
//	[parent, children]   attach (parent is null for the root collection)
//	[39(id)]             emit
//
// Entries of the form [39(id), value] inside children define id. Tag 1001
// carrying {1: sec, -9: nsec} is a timestamp. Everything else the decoder
// does not interpret is kept as raw CBOR (ir.Opaque).
//
// Reader frames the outer array itself and reads one record from the
// input per call, so a caller can apply each record before the next one
// is read and the whole trace is never held in memory. The CBOR library
// is github.com/fxamacker/cbor/v2.
//
// The package also parses a YAML notation for traces (see yaml.go), used
// by the encode command and by test scenarios.
package wire
