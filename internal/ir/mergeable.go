package ir

import (
	"fmt"
	"slices"
)

// Family distinguishes the two mergeable disciplines.
type Family string

const (
	// FamilyGrowing collections only gain information (union-like).
	FamilyGrowing Family = "growing"
	// FamilyShrinking collections only lose candidates (intersection-like).
	FamilyShrinking Family = "shrinking"
)

// Tags used for the JSON form of mergeables: {"$grow_set": [...]}.
const (
	TagGrowSet     = "$grow_set"
	TagGrowArray   = "$grow_array"
	TagGrowMap     = "$grow_map"
	TagShrinkSet   = "$shrink_set"
	TagShrinkArray = "$shrink_array"
)

// Mergeable is implemented by the tagged collection family. Each variant owns
// its merge rule; Merge selects it by type switch.
type Mergeable interface {
	IRValue
	Family() Family
	Tag() string
}

// GrowSet is a set that merges by union.
type GrowSet []IRValue

// GrowArray is a bag that merges by union of multiplicities (max count).
type GrowArray []IRValue

// GrowMap merges by key union; shared keys merge recursively under the
// merge blend mode.
type GrowMap map[string]IRValue

// ShrinkSet is a candidate set that merges by intersection. Merging with a
// plain value narrows it to that value when contained.
type ShrinkSet []IRValue

// ShrinkArray is a candidate bag that merges by intersection of
// multiplicities (min count).
type ShrinkArray []IRValue

func (GrowSet) irValue()     {}
func (GrowArray) irValue()   {}
func (GrowMap) irValue()     {}
func (ShrinkSet) irValue()   {}
func (ShrinkArray) irValue() {}

func (GrowSet) Family() Family     { return FamilyGrowing }
func (GrowArray) Family() Family   { return FamilyGrowing }
func (GrowMap) Family() Family     { return FamilyGrowing }
func (ShrinkSet) Family() Family   { return FamilyShrinking }
func (ShrinkArray) Family() Family { return FamilyShrinking }

func (GrowSet) Tag() string     { return TagGrowSet }
func (GrowArray) Tag() string   { return TagGrowArray }
func (GrowMap) Tag() string     { return TagGrowMap }
func (ShrinkSet) Tag() string   { return TagShrinkSet }
func (ShrinkArray) Tag() string { return TagShrinkArray }

// NewGrowSet builds a normalized GrowSet (deduplicated, canonical order).
func NewGrowSet(vals ...IRValue) GrowSet {
	return GrowSet(normalizeSet(vals))
}

// NewGrowArray builds a normalized GrowArray (canonical order, duplicates kept).
func NewGrowArray(vals ...IRValue) GrowArray {
	return GrowArray(normalizeBag(vals))
}

// NewShrinkSet builds a normalized ShrinkSet.
func NewShrinkSet(vals ...IRValue) ShrinkSet {
	return ShrinkSet(normalizeSet(vals))
}

// NewShrinkArray builds a normalized ShrinkArray.
func NewShrinkArray(vals ...IRValue) ShrinkArray {
	return ShrinkArray(normalizeBag(vals))
}

// Contains reports whether v is one of the remaining candidates.
func (s ShrinkSet) Contains(v IRValue) bool {
	return containsValue(s, v)
}

// Contains reports whether v is one of the remaining candidates.
func (s ShrinkArray) Contains(v IRValue) bool {
	return containsValue(s, v)
}

// valueKey returns the canonical encoding of v, used for ordering and
// membership. Values that cannot be canonically encoded fall back to the
// plain JSON encoding.
func valueKey(v IRValue) string {
	if b, err := MarshalCanonical(v); err == nil {
		return string(b)
	}
	b, _ := MarshalIRValue(v)
	return string(b)
}

func containsValue(vals []IRValue, v IRValue) bool {
	key := valueKey(v)
	for _, elem := range vals {
		if valueKey(elem) == key {
			return true
		}
	}
	return false
}

type keyedValue struct {
	key string
	val IRValue
}

func sortKeyed(vals []IRValue) []keyedValue {
	keyed := make([]keyedValue, len(vals))
	for i, v := range vals {
		keyed[i] = keyedValue{key: valueKey(v), val: v}
	}
	slices.SortStableFunc(keyed, func(a, b keyedValue) int {
		switch {
		case a.key < b.key:
			return -1
		case a.key > b.key:
			return 1
		}
		return 0
	})
	return keyed
}

func normalizeSet(vals []IRValue) []IRValue {
	keyed := sortKeyed(vals)
	out := make([]IRValue, 0, len(keyed))
	for i, kv := range keyed {
		if i > 0 && keyed[i-1].key == kv.key {
			continue
		}
		out = append(out, kv.val)
	}
	return out
}

func normalizeBag(vals []IRValue) []IRValue {
	keyed := sortKeyed(vals)
	out := make([]IRValue, len(keyed))
	for i, kv := range keyed {
		out[i] = kv.val
	}
	return out
}

// bagCounts counts multiplicities keyed by canonical encoding.
func bagCounts(vals []IRValue) (map[string]int, map[string]IRValue) {
	counts := make(map[string]int, len(vals))
	byKey := make(map[string]IRValue, len(vals))
	for _, v := range vals {
		k := valueKey(v)
		counts[k]++
		byKey[k] = v
	}
	return counts, byKey
}

func maxCount(x, y int) int { return max(x, y) }

func minCount(x, y int) int { return min(x, y) }

// combineBags merges two bags taking pick(countA, countB) copies of each element.
func combineBags(a, b []IRValue, pick func(x, y int) int) []IRValue {
	ca, va := bagCounts(a)
	cb, vb := bagCounts(b)
	var out []IRValue
	for k, n := range ca {
		if m := pick(n, cb[k]); m > 0 {
			for i := 0; i < m; i++ {
				out = append(out, va[k])
			}
		}
	}
	for k, n := range cb {
		if _, seen := ca[k]; seen {
			continue
		}
		if m := pick(0, n); m > 0 {
			for i := 0; i < m; i++ {
				out = append(out, vb[k])
			}
		}
	}
	return normalizeBag(out)
}

func unionSets(a, b []IRValue) []IRValue {
	all := make([]IRValue, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)
	return normalizeSet(all)
}

func intersectSets(a, b []IRValue) []IRValue {
	_, inB := bagCounts(b)
	var out []IRValue
	for _, v := range a {
		if _, ok := inB[valueKey(v)]; ok {
			out = append(out, v)
		}
	}
	return normalizeSet(out)
}

// mergeMergeables joins two values of the mergeable family.
func mergeMergeables(current, incoming Mergeable) (IRValue, error) {
	switch cur := current.(type) {
	case GrowSet:
		if inc, ok := incoming.(GrowSet); ok {
			return GrowSet(unionSets(cur, inc)), nil
		}
	case GrowArray:
		if inc, ok := incoming.(GrowArray); ok {
			return GrowArray(combineBags(cur, inc, maxCount)), nil
		}
	case GrowMap:
		if inc, ok := incoming.(GrowMap); ok {
			return mergeGrowMaps(cur, inc)
		}
	case ShrinkSet:
		if inc, ok := incoming.(ShrinkSet); ok {
			out := intersectSets(cur, inc)
			if len(out) == 0 {
				return nil, newContradiction(current, incoming, "shrinking sets have no common candidate")
			}
			return ShrinkSet(out), nil
		}
	case ShrinkArray:
		if inc, ok := incoming.(ShrinkArray); ok {
			out := combineBags(cur, inc, minCount)
			if len(out) == 0 {
				return nil, newContradiction(current, incoming, "shrinking arrays have no common candidate")
			}
			return ShrinkArray(out), nil
		}
	}
	return nil, newContradiction(current, incoming,
		fmt.Sprintf("cannot merge %s with %s", current.Tag(), incoming.Tag()))
}

func mergeGrowMaps(cur, inc GrowMap) (IRValue, error) {
	out := make(GrowMap, len(cur)+len(inc))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range inc {
		existing, ok := out[k]
		if !ok {
			out[k] = v
			continue
		}
		merged, err := Merge(existing, v, BlendMerge)
		if err != nil {
			return nil, newContradiction(cur, inc, fmt.Sprintf("key %q: %v", k, err))
		}
		out[k] = merged
	}
	return out, nil
}

// narrowShrinking merges a shrinking collection with a plain value: the
// value survives iff it is still a candidate.
func narrowShrinking(shrinking Mergeable, value IRValue, current, incoming IRValue) (IRValue, error) {
	var contained bool
	switch s := shrinking.(type) {
	case ShrinkSet:
		contained = s.Contains(value)
	case ShrinkArray:
		contained = s.Contains(value)
	}
	if !contained {
		return nil, newContradiction(current, incoming, "value is not a remaining candidate")
	}
	return value, nil
}

// encodeTagged returns the single-key object form of a mergeable.
func encodeTagged(m Mergeable) IRObject {
	switch val := m.(type) {
	case GrowSet:
		return IRObject{TagGrowSet: IRArray(normalizeSet(val))}
	case GrowArray:
		return IRObject{TagGrowArray: IRArray(normalizeBag(val))}
	case GrowMap:
		return IRObject{TagGrowMap: IRObject(val)}
	case ShrinkSet:
		return IRObject{TagShrinkSet: IRArray(normalizeSet(val))}
	case ShrinkArray:
		return IRObject{TagShrinkArray: IRArray(normalizeBag(val))}
	}
	return IRObject{}
}

// decodeTagged turns a single-key tagged object back into its mergeable.
// Any other object is returned unchanged.
func decodeTagged(obj IRObject) (IRValue, error) {
	if len(obj) != 1 {
		return obj, nil
	}
	for tag, inner := range obj {
		switch tag {
		case TagGrowSet, TagGrowArray, TagShrinkSet, TagShrinkArray:
			arr, ok := inner.(IRArray)
			if !ok {
				return nil, fmt.Errorf("%s expects an array, got %T", tag, inner)
			}
			switch tag {
			case TagGrowSet:
				return NewGrowSet(arr...), nil
			case TagGrowArray:
				return NewGrowArray(arr...), nil
			case TagShrinkSet:
				return NewShrinkSet(arr...), nil
			default:
				return NewShrinkArray(arr...), nil
			}
		case TagGrowMap:
			m, ok := inner.(IRObject)
			if !ok {
				return nil, fmt.Errorf("%s expects an object, got %T", tag, inner)
			}
			return GrowMap(m), nil
		}
	}
	return obj, nil
}
