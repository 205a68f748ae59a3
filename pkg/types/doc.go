// Package types defines shared Go types used by both the agent and server.
// Record is the canonical in-memory representation of one forwarded heart-rate
// reading, separate from the gRPC wire format in package pulsev1.
package types
