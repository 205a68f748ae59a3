// Package sensor delivers heart-rate samples from a configured source.
//
// Three source types are supported:
//   - prometheus: polls a text exposition endpoint and reads one gauge
//   - mqtt: subscribes a broker topic; payloads are "72.5" or {"bpm":72.5}
//   - stdin: one value per line, for piping a device reader into the agent
//
// Every source implements Source. Subscribe starts delivery in the
// background and returns once the source is connected; Unsubscribe stops it.
// Sources pass raw values through unchanged, including zero and negative
// numbers. Filtering is the forwarder's job.
//
// Run ties a Source to a permission.Gate: it subscribes only once access is
// granted and unsubscribes when access is revoked or its context ends.
package sensor
