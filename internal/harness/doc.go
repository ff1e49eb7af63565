// Package harness runs trace scenarios end to end.
//
// A scenario is a YAML file describing a trace, either as records in the
// YAML trace notation or as raw CBOR hex, together with what decoding it
// must produce:
//
//	name: self_reference
//	description: "A mapping that contains itself renders the cycle marker"
//	records:
//	  - [~, [!def [1, !share {}]]]
//	  - [!ref 1, {me: !shared 0}]
//	  - [!ref 1]
//	expect:
//	  elements: 1
//	assertions:
//	  - type: element
//	    index: 0
//	    equals: '{"me": ...}'
//
// Records are encoded to CBOR first and then decoded, so every scenario
// exercises the binary reader as well as the graph and the emitter.
// Each run archives its elements into a fresh in-memory store with a
// fixed run id and a deterministic clock, and the archived elements are
// checked against the live ones.
//
// # Assertion Types
//
//   - element: the element at index renders exactly as equals
//   - element_count: exactly count elements were written
//   - output_contains: the document text contains text
//   - stats: the named counter of the run statistics has value count
//
// # Golden Files
//
// RunWithGolden compares the rendered document with
// testdata/golden/<name>.golden. The test command of the CLI does the same
// against golden/<name>.golden next to the scenario file.
package harness
