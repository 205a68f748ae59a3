// Package pulsev1 is the gRPC contract between pulsebridge-agent and
// pulsebridge-server.
//
// The service carries one unary method:
//
//	service ReadingService {
//	  rpc PutReading(google.protobuf.Struct) returns (google.protobuf.Empty);
//	}
//
// The request is a Struct with three fields: "key" (string), "bpm" (number)
// and "timestamp" (string). Using the well-known Struct type keeps the wire
// contract free of generated message code; RecordToStruct and
// RecordFromStruct convert to and from types.Record.
package pulsev1
