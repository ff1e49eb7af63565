// Package ir provides the decoded value model for mutation traces.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed; payload containers are plain Go slices
//   - Map keeps wire order, duplicate keys included
//   - Definition only appears as a direct entry of an Attach payload
//   - Records carry their stream index for diagnostics
package ir
