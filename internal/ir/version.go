package ir

// Version constants for the trace format and the decoder.
const (
	// TraceFormat names the record encoding this package models.
	TraceFormat = "cbor-mutation-trace/1"

	// DecoderVersion is the decode-trace release.
	DecoderVersion = "0.1.0"
)
