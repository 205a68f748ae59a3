// Package liveness tracks whether the sensor stream has gone quiet.
//
// Monitor holds the time of the last accepted reading. NoteReading moves it
// forward; Poll compares it against a threshold and reports staleness as a
// pure function of the time passed in. Run evaluates Poll on a fixed tick,
// remembers the resulting State (fresh or stale) and notifies subscribers on
// every transition.
//
// A Monitor starts fresh, with the start time standing in for the last
// reading, so a stream that never produces anything turns stale one
// threshold after start.
package liveness
