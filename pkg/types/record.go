package types

import (
	"errors"
	"math"
	"time"
)

// LabelLayout is the key layout for forwarded readings: yyyy-MM-dd_HH:mm:ss.
// Keys have one-second resolution, so two writes inside the same second share
// a key and the later one replaces the earlier one in the store.
const LabelLayout = "2006-01-02_15:04:05"

// Record is one reading as written to a sink. Key and Timestamp carry the
// same label; Timestamp is repeated inside the payload so stores that only
// keep the payload (RTDB, redis) still know when the reading was taken.
type Record struct {
	Key       string  `json:"-"`
	BPM       float64 `json:"bpm"`
	Timestamp string  `json:"timestamp"`
}

// Label formats t in loc using LabelLayout. A nil loc means time.Local.
func Label(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(LabelLayout)
}

// NewRecord builds the Record for a reading of bpm taken at t.
func NewRecord(bpm float64, t time.Time, loc *time.Location) Record {
	label := Label(t, loc)
	return Record{Key: label, BPM: bpm, Timestamp: label}
}

// Validate reports whether r can be stored: the key must be set and BPM must
// be a positive finite number.
func (r Record) Validate() error {
	if r.Key == "" {
		return errors.New("key is required")
	}
	if !(r.BPM > 0) || math.IsInf(r.BPM, 1) {
		return errors.New("bpm must be a positive finite number")
	}
	return nil
}
