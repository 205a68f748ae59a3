// Package receiver implements pulsev1.ReadingServiceServer, the gRPC
// endpoint that accepts readings from pulsebridge-agent instances.
//
// Receiver.PutReading decodes the record, rejects a missing key or a
// non-positive bpm with codes.InvalidArgument, then stores it. Authentication
// is enforced upstream by the gRPC server interceptor (see package auth), so
// the receiver itself only performs structural validation.
//
// New(st, eng) wires the receiver to the given reading store and alerts
// engine; every stored reading is passed to eng.Evaluate. eng may be nil.
package receiver
