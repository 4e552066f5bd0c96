package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bassline/internal/ir"
)

// AssertionError describes a failed expectation.
type AssertionError struct {
	Type     string // values, absent, event_counts or event_order
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
}

// EvaluateExpect checks every expectation against a finished run and
// returns one message per failure, in a stable order.
func EvaluateExpect(result *Result, expect Expect) []string {
	var errs []string
	add := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	for _, id := range sortedKeys(expect.Values) {
		add(assertValue(result.Values, id, expect.Values[id]))
	}
	for _, id := range expect.Absent {
		add(assertAbsent(result.Values, id))
	}
	for _, eventType := range sortedKeys(expect.EventCounts) {
		add(assertEventCount(result, eventType, expect.EventCounts[eventType]))
	}
	if len(expect.EventOrder) > 0 {
		add(assertEventOrder(result, expect.EventOrder))
	}
	return errs
}

func assertValue(values map[string]ir.IRValue, id string, raw any) error {
	want, err := ir.FromGo(raw)
	if err != nil {
		return &AssertionError{Type: "values", Expected: fmt.Sprintf("%s to be a valid value", id), Actual: err.Error()}
	}
	got, ok := values[id]
	if !ok {
		return &AssertionError{Type: "values", Expected: fmt.Sprintf("%s = %s", id, render(want)), Actual: "no value"}
	}
	if !ir.Equal(got, want) {
		return &AssertionError{Type: "values", Expected: fmt.Sprintf("%s = %s", id, render(want)), Actual: render(got)}
	}
	return nil
}

func assertAbsent(values map[string]ir.IRValue, id string) error {
	if got, ok := values[id]; ok {
		return &AssertionError{Type: "absent", Expected: fmt.Sprintf("%s to hold no value", id), Actual: render(got)}
	}
	return nil
}

func assertEventCount(result *Result, eventType string, want int) error {
	if got := result.CountEvents(eventType); got != want {
		return &AssertionError{
			Type:     "event_counts",
			Expected: fmt.Sprintf("%d %s events", want, eventType),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertEventOrder checks that the types occur as a subsequence of the
// trace. Each match must come after the previous one.
func assertEventOrder(result *Result, order []string) error {
	types := result.EventTypes()
	pos := 0
	for _, want := range order {
		found := false
		for pos < len(types) {
			pos++
			if types[pos-1] == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     "event_order",
				Expected: strings.Join(order, " < "),
				Actual:   fmt.Sprintf("no %s after position %d in [%s]", want, pos, strings.Join(types, ", ")),
			}
		}
	}
	return nil
}

// compareValues reports contacts whose values differ between two tables.
func compareValues(want, got map[string]ir.IRValue) []string {
	var errs []string
	for _, id := range sortedKeys(want) {
		g, ok := got[id]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("%s: missing, want %s", id, render(want[id])))
		case !ir.Equal(g, want[id]):
			errs = append(errs, fmt.Sprintf("%s: got %s, want %s", id, render(g), render(want[id])))
		}
	}
	for _, id := range sortedKeys(got) {
		if _, ok := want[id]; !ok {
			errs = append(errs, fmt.Sprintf("%s: unexpected value %s", id, render(got[id])))
		}
	}
	return errs
}

func render(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
