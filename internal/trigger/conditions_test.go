package trigger

import (
	"testing"
)

func TestOperatorCompare(t *testing.T) {
	cases := []struct {
		op     Operator
		v, tgt int
		want   bool
	}{
		{OpGE, 3, 3, true},
		{OpGE, 2, 3, false},
		{OpLE, 3, 3, true},
		{OpLE, 4, 3, false},
		{OpEQ, 3, 3, true},
		{OpEQ, 2, 3, false},
		{OpGT, 4, 3, true},
		{OpGT, 3, 3, false},
		{OpLT, 2, 3, true},
		{OpLT, 3, 3, false},
		{Operator("!="), 1, 2, false}, // unknown operator never matches
	}
	for _, c := range cases {
		if got := c.op.Compare(c.v, c.tgt); got != c.want {
			t.Errorf("(%d %s %d) = %v, want %v", c.v, c.op, c.tgt, got, c.want)
		}
	}
}

func TestDecodeConditions(t *testing.T) {
	cases := []struct {
		name    string
		typ     Type
		payload string
		wantErr bool
	}{
		{"presence ok", TypePresence, `{"zone":"dock","min_objects":1}`, false},
		{"presence stable", TypePresence, `{"zone":"dock","min_objects":2,"require_stable":true}`, false},
		{"presence no zone", TypePresence, `{"min_objects":1}`, true},
		{"presence zero min", TypePresence, `{"zone":"dock","min_objects":0}`, true},
		{"count ok", TypeCount, `{"zone":"belt","target":5,"operator":">="}`, false},
		{"count cumulative", TypeCount, `{"zone":"belt","target":3,"operator":"==","cumulative":true}`, false},
		{"count bad operator", TypeCount, `{"zone":"belt","target":5,"operator":"~"}`, true},
		{"count no zone", TypeCount, `{"target":5,"operator":">="}`, true},
		{"multi ok", TypeMultiZone, `{"logic":"AND","rules":[{"zone":"a","min_objects":1},{"zone":"b","min_objects":2}]}`, false},
		{"multi or", TypeMultiZone, `{"logic":"OR","rules":[{"zone":"a","min_objects":1}]}`, false},
		{"multi bad logic", TypeMultiZone, `{"logic":"XOR","rules":[{"zone":"a","min_objects":1}]}`, true},
		{"multi no rules", TypeMultiZone, `{"logic":"AND","rules":[]}`, true},
		{"multi zero min", TypeMultiZone, `{"logic":"AND","rules":[{"zone":"a","min_objects":0}]}`, true},
		{"unknown type", Type("motion"), `{}`, true},
		{"malformed json", TypePresence, `{"zone":`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := DecodeConditions(c.typ, []byte(c.payload))
			if (err != nil) != c.wantErr {
				t.Errorf("DecodeConditions(%s) err = %v, wantErr %v", c.typ, err, c.wantErr)
			}
		})
	}
}

func TestConditionsRoundTrip(t *testing.T) {
	orig := Conditions{Count: &CountCondition{Zone: "belt", Target: 4, Op: OpGE, Cumulative: true}}

	data, err := orig.Encode(TypeCount)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := DecodeConditions(TypeCount, data)
	if err != nil {
		t.Fatalf("DecodeConditions: %v", err)
	}
	if *back.Count != *orig.Count {
		t.Errorf("round trip mismatch: got %+v, want %+v", back.Count, orig.Count)
	}
}

func TestEncodeRejectsMissingVariant(t *testing.T) {
	var c Conditions
	for _, typ := range []Type{TypePresence, TypeCount, TypeMultiZone} {
		if _, err := c.Encode(typ); err == nil {
			t.Errorf("Encode(%s) with empty union should error", typ)
		}
	}
}
