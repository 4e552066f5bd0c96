package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bassline/internal/ir"
)

func traceOf(types ...ir.Event) *Result {
	r := NewResult()
	for _, ev := range types {
		r.Trace = append(r.Trace, TraceEvent{Event: ev})
	}
	return r
}

func TestEvaluateExpect_Values(t *testing.T) {
	r := NewResult()
	r.Values = map[string]ir.IRValue{
		"n":    ir.IRInt(3),
		"tags": ir.NewGrowSet(ir.IRString("a")),
	}

	assert.Empty(t, EvaluateExpect(r, Expect{Values: map[string]any{
		"n":    3,
		"tags": map[string]any{"$grow_set": []any{"a"}},
	}}))

	errs := EvaluateExpect(r, Expect{Values: map[string]any{"n": 4, "m": 1}})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "m = 1")
	assert.Contains(t, errs[0], "no value")
	assert.Contains(t, errs[1], "actual 3")
}

func TestEvaluateExpect_Absent(t *testing.T) {
	r := NewResult()
	r.Values = map[string]ir.IRValue{"n": ir.IRString("x")}

	assert.Empty(t, EvaluateExpect(r, Expect{Absent: []string{"m"}}))
	errs := EvaluateExpect(r, Expect{Absent: []string{"n"}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], `"x"`)
}

func TestEvaluateExpect_EventCounts(t *testing.T) {
	r := traceOf(ir.Converged{Steps: 1}, ir.Converged{Steps: 2}, ir.ValueChanged{ContactID: "a"})

	assert.Empty(t, EvaluateExpect(r, Expect{EventCounts: map[string]int{
		ir.EventConverged:     2,
		ir.EventValueChanged:  1,
		ir.EventContradiction: 0,
	}}))

	errs := EvaluateExpect(r, Expect{EventCounts: map[string]int{ir.EventConverged: 1}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "1 converged events")
}

func TestEvaluateExpect_EventOrder(t *testing.T) {
	r := traceOf(
		ir.Propagating{WireID: "w"},
		ir.ValueChanged{ContactID: "y"},
		ir.Converged{Steps: 2},
		ir.ValueChanged{ContactID: "z"},
	)

	tests := []struct {
		name  string
		order []string
		ok    bool
	}{
		{"exact", []string{ir.EventPropagating, ir.EventValueChanged, ir.EventConverged}, true},
		{"gaps allowed", []string{ir.EventPropagating, ir.EventConverged}, true},
		{"repeat after", []string{ir.EventConverged, ir.EventValueChanged}, true},
		{"out of order", []string{ir.EventConverged, ir.EventPropagating}, false},
		{"missing", []string{ir.EventContradiction}, false},
		{"needs two", []string{ir.EventConverged, ir.EventConverged}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateExpect(r, Expect{EventOrder: tt.order})
			if tt.ok {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "event_order")
		})
	}
}

func TestCompareValues(t *testing.T) {
	want := map[string]ir.IRValue{"a": ir.IRInt(1), "b": ir.IRInt(2)}
	got := map[string]ir.IRValue{"a": ir.IRInt(1), "b": ir.IRInt(3), "c": ir.IRBool(true)}

	assert.Equal(t, []string{
		"b: got 3, want 2",
		"c: unexpected value true",
	}, compareValues(want, got))
	assert.Equal(t, []string{"a: missing, want 1", "b: missing, want 2"}, compareValues(want, nil))
}
