// Package sink writes accepted heart-rate records to a remote store.
//
// Sinks are synchronous: Write returns once the store has acknowledged the
// record or the context expires. The forwarder runs each Write on its own
// goroutine and never retries a failed one.
//
// Supported types:
//   - grpc: PutReading on a pulsebridge server, API key and agent id sent as
//     metadata, mTLS or TLS when configured
//   - firebase: Realtime Database REST, PUT {endpoint}/{path}/{key}.json
//   - redis: SET {path}:{key} followed by PUBLISH {path}
package sink
