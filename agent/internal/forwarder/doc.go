// Package forwarder implements sample ingest and throttling.
//
// Forwarder.Accept takes one raw sensor reading and:
//
//  1. discards it if it is not a positive finite number (no sink write, no
//     liveness update, no throttle change);
//  2. records it as the latest reading and notifies the liveness monitor;
//  3. returns without writing if less than the throttle window has passed
//     since the last write;
//  4. otherwise starts the throttle window at now and hands a Record keyed
//     by the yyyy-MM-dd_HH:mm:ss label to the sink on its own goroutine.
//
// Accept never blocks on I/O and never returns an error. Sink failures are
// logged and dropped; the window they opened still holds, so a failed write
// is not retried before the next window.
package forwarder
