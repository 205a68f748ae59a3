package pulsev1

import (
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pulsebridge/pulsebridge/pkg/types"
)

func TestRecordFromStruct_RoundTrip(t *testing.T) {
	in := types.Record{Key: "2026-01-01_10:00:00", BPM: 71.5, Timestamp: "2026-01-01_10:00:00"}
	out, err := RecordFromStruct(RecordToStruct(in))
	if err != nil {
		t.Fatalf("RecordFromStruct: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestRecordFromStruct_WrongKind(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value *structpb.Value
	}{
		{"key as number", FieldKey, structpb.NewNumberValue(1)},
		{"bpm as string", FieldBPM, structpb.NewStringValue("72")},
		{"timestamp as bool", FieldTimestamp, structpb.NewBoolValue(true)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &structpb.Struct{Fields: map[string]*structpb.Value{tc.field: tc.value}}
			if _, err := RecordFromStruct(s); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestRecordFromStruct_Nil(t *testing.T) {
	rec, err := RecordFromStruct(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != (types.Record{}) {
		t.Errorf("got %+v, want zero Record", rec)
	}
}
