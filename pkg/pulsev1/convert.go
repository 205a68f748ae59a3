package pulsev1

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pulsebridge/pulsebridge/pkg/types"
)

// Field names inside the PutReading request Struct.
const (
	FieldKey       = "key"
	FieldBPM       = "bpm"
	FieldTimestamp = "timestamp"
)

// RecordToStruct converts rec into a PutReading request.
func RecordToStruct(rec types.Record) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			FieldKey:       structpb.NewStringValue(rec.Key),
			FieldBPM:       structpb.NewNumberValue(rec.BPM),
			FieldTimestamp: structpb.NewStringValue(rec.Timestamp),
		},
	}
}

// RecordFromStruct extracts a Record from a PutReading request. Fields with the
// wrong kind are reported as errors; absent fields are left at their zero value.
func RecordFromStruct(s *structpb.Struct) (types.Record, error) {
	var rec types.Record
	fields := s.GetFields()

	if v, ok := fields[FieldKey]; ok {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return rec, fmt.Errorf("pulsev1: field %q must be a string", FieldKey)
		}
		rec.Key = sv.StringValue
	}
	if v, ok := fields[FieldBPM]; ok {
		nv, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return rec, fmt.Errorf("pulsev1: field %q must be a number", FieldBPM)
		}
		rec.BPM = nv.NumberValue
	}
	if v, ok := fields[FieldTimestamp]; ok {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return rec, fmt.Errorf("pulsev1: field %q must be a string", FieldTimestamp)
		}
		rec.Timestamp = sv.StringValue
	}
	return rec, nil
}
