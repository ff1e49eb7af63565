// Package config loads decode-trace settings from a CUE file.
//
// The file is unified with the embedded #Config schema, which is closed:
// unknown fields and out-of-range values are reported with their file
// position. Omitted fields take the schema defaults.
package config
