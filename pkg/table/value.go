package table

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies what a cell holds.
type Kind int

const (
	KindMissing Kind = iota
	KindNumber
	KindText
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindSet:
		return "set"
	default:
		return "missing"
	}
}

// FactorSet is an unordered set of dietary factor labels.
type FactorSet map[string]struct{}

// NewFactorSet creates a set from the given labels.
func NewFactorSet(labels ...string) FactorSet {
	s := make(FactorSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s FactorSet) Len() int {
	return len(s)
}

func (s FactorSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// Intersect returns the number of labels present in both sets.
func (s FactorSet) Intersect(other FactorSet) int {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	n := 0
	for l := range small {
		if big.Has(l) {
			n++
		}
	}
	return n
}

// Sorted returns the labels in lexical order.
func (s FactorSet) Sorted() []string {
	list := make([]string, 0, len(s))
	for l := range s {
		list = append(list, l)
	}
	sort.Strings(list)
	return list
}

// Value is a single table cell.
type Value struct {
	kind Kind
	num  float64
	text string
	set  FactorSet
}

// Missing is the empty cell.
var Missing = Value{}

// Number creates a numeric cell. NaN is stored as missing.
func Number(v float64) Value {
	if math.IsNaN(v) {
		return Missing
	}
	return Value{kind: KindNumber, num: v}
}

func Text(v string) Value {
	return Value{kind: KindText, text: v}
}

// Set creates a factor set cell. A nil set is kept as an empty set.
func Set(s FactorSet) Value {
	if s == nil {
		s = FactorSet{}
	}
	return Value{kind: KindSet, set: s}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsMissing() bool {
	return v.kind == KindMissing
}

// Factors returns the cell's factor set and whether the cell is a set.
func (v Value) Factors() (FactorSet, bool) {
	if v.kind != KindSet {
		return nil, false
	}
	return v.set, true
}

// Text returns the raw string of a text cell.
func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Float coerces the cell to a number. Text is parsed after trimming;
// sets and missing cells do not coerce.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Truthy reports whether the cell would count as "present": missing cells,
// empty sets, empty text and zero are falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNumber:
		return v.num != 0
	case KindText:
		return v.text != ""
	case KindSet:
		return len(v.set) > 0
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return v.text
	case KindSet:
		return "{" + strings.Join(v.set.Sorted(), ", ") + "}"
	default:
		return "NaN"
	}
}

// MarshalJSON encodes missing as null, sets as sorted string arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.num, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindSet:
		return json.Marshal(v.set.Sorted())
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decoding cell: %w", err)
	}

	switch t := raw.(type) {
	case nil:
		*v = Missing
	case float64:
		*v = Number(t)
	case string:
		*v = Text(t)
	case []any:
		s := make(FactorSet, len(t))
		for _, item := range t {
			l, ok := item.(string)
			if !ok {
				return fmt.Errorf("invalid factor label: %v", item)
			}
			s[l] = struct{}{}
		}
		*v = Set(s)
	default:
		return fmt.Errorf("unsupported cell value: %s", string(b))
	}
	return nil
}
