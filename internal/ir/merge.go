package ir

import (
	"bytes"
	"errors"
	"fmt"
)

// BlendMode selects how a contact combines an incoming value with its
// current content. Immutable after contact creation.
type BlendMode string

const (
	// BlendMerge joins values deterministically and detects contradictions.
	BlendMerge BlendMode = "merge"
	// BlendLast always takes the incoming value (stream semantics).
	BlendLast BlendMode = "last"
)

// Valid reports whether m is a known blend mode.
func (m BlendMode) Valid() bool {
	return m == BlendMerge || m == BlendLast
}

// ContradictionError reports that two values have no deterministic join.
// The engine converts it into a contradiction event; it never reaches callers
// of SetValue.
type ContradictionError struct {
	Current  IRValue
	Incoming IRValue
	Reason   string
}

func (e *ContradictionError) Error() string {
	cur, _ := MarshalIRValue(e.Current)
	inc, _ := MarshalIRValue(e.Incoming)
	return fmt.Sprintf("contradiction: %s (current=%s, incoming=%s)", e.Reason, cur, inc)
}

// IsContradiction reports whether err is (or wraps) a ContradictionError.
func IsContradiction(err error) bool {
	var ce *ContradictionError
	return errors.As(err, &ce)
}

func newContradiction(current, incoming IRValue, reason string) *ContradictionError {
	return &ContradictionError{Current: current, Incoming: incoming, Reason: reason}
}

// Merge combines current and incoming under the blend mode.
//
// BlendLast returns incoming unconditionally. BlendMerge is a total join:
// absent operands yield the other side, equal operands yield current,
// mergeables merge by their own rule, shrinking collections narrow to a
// contained plain value, native arrays union in order, objects deep merge
// with last-write-wins scalar leaves. Everything else is a contradiction.
func Merge(current, incoming IRValue, mode BlendMode) (IRValue, error) {
	if mode == BlendLast {
		return incoming, nil
	}

	if IsAbsent(incoming) {
		return current, nil
	}
	if IsAbsent(current) {
		return incoming, nil
	}
	if Equal(current, incoming) {
		return current, nil
	}

	curM, curIsM := current.(Mergeable)
	incM, incIsM := incoming.(Mergeable)

	switch {
	case curIsM && incIsM:
		return mergeMergeables(curM, incM)

	case curIsM:
		if curM.Family() == FamilyShrinking && !isNativeCollection(incoming) {
			return narrowShrinking(curM, incoming, current, incoming)
		}
		return nil, newContradiction(current, incoming,
			fmt.Sprintf("cannot merge %s with plain value", curM.Tag()))

	case incIsM:
		if incM.Family() == FamilyShrinking && !isNativeCollection(current) {
			return narrowShrinking(incM, current, current, incoming)
		}
		return nil, newContradiction(current, incoming,
			fmt.Sprintf("cannot merge plain value with %s", incM.Tag()))
	}

	switch cur := current.(type) {
	case IRArray:
		if inc, ok := incoming.(IRArray); ok {
			return unionArrays(cur, inc), nil
		}
	case IRObject:
		if inc, ok := incoming.(IRObject); ok {
			out, err := deepMergeObjects(cur, inc)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
	}

	return nil, newContradiction(current, incoming, "values differ")
}

func isNativeCollection(v IRValue) bool {
	switch v.(type) {
	case IRArray, IRObject:
		return true
	}
	return false
}

// unionArrays appends the elements of inc that cur does not already hold.
func unionArrays(cur, inc IRArray) IRArray {
	out := make(IRArray, 0, len(cur)+len(inc))
	seen := make(map[string]bool, len(cur)+len(inc))
	for _, v := range cur {
		out = append(out, v)
		seen[valueKey(v)] = true
	}
	for _, v := range inc {
		k := valueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// deepMergeObjects merges nested objects recursively. Two scalar leaves
// resolve last-write-wins; a leaf where either side is a mergeable or a
// native array merges under BlendMerge, and its contradiction fails the
// whole object.
func deepMergeObjects(cur, inc IRObject) (IRObject, error) {
	out := cur.Clone()
	for _, k := range inc.SortedKeys() {
		v := inc[k]
		existing, present := out[k]
		if !present || IsAbsent(existing) || IsAbsent(v) {
			out[k] = v
			continue
		}
		curObj, ok := existing.(IRObject)
		incObj, incOK := v.(IRObject)
		if ok && incOK {
			merged, err := deepMergeObjects(curObj, incObj)
			if err != nil {
				return nil, nestContradiction(cur, inc, k, err)
			}
			out[k] = merged
			continue
		}
		if isScalar(existing) && isScalar(v) {
			out[k] = v
			continue
		}
		merged, err := Merge(existing, v, BlendMerge)
		if err != nil {
			return nil, nestContradiction(cur, inc, k, err)
		}
		out[k] = merged
	}
	return out, nil
}

func isScalar(v IRValue) bool {
	switch v.(type) {
	case IRString, IRInt, IRBool, IRNull:
		return true
	}
	return false
}

// nestContradiction lifts a leaf contradiction to the enclosing objects,
// prefixing the reason with the key path.
func nestContradiction(cur, inc IRObject, key string, err error) error {
	var ce *ContradictionError
	if !errors.As(err, &ce) {
		return err
	}
	return newContradiction(cur, inc, fmt.Sprintf("%s: %s", key, ce.Reason))
}

// Equal reports deep equality via canonical encodings. Mergeables compare
// by normalized content, so element order never matters for sets and bags.
func Equal(a, b IRValue) bool {
	if IsAbsent(a) || IsAbsent(b) {
		return IsAbsent(a) && IsAbsent(b)
	}
	// Fast path for scalars
	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		bv, ok := b.(IRInt)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	}
	ab, errA := MarshalCanonical(a)
	bb, errB := MarshalCanonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
