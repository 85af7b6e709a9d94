// Package comparator holds the extensible set of filter comparison operators.
package comparator

import (
	"strings"
	"sync"
)

// Op is the translation kind a comparator maps to when a query is built.
type Op int

// Translation kinds.
const (
	OpEqual Op = iota + 1
	OpNotEqual
	OpAnyWord
	OpNotAnyWord
	OpFullPhrase
	OpPartialPhrase
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpBetween
)

// Comparator is a named comparison operator usable in filter fields.
type Comparator struct {
	Display string `json:"display"`
	Value   string `json:"value"`
	Op      Op     `json:"-"`
}

// Built-in comparators.
var (
	AnyWord            = Comparator{Display: "Any Word", Value: "anyWord", Op: OpAnyWord}
	Between            = Comparator{Display: "Between", Value: "between", Op: OpBetween}
	Equal              = Comparator{Display: "Equal", Value: "eq", Op: OpEqual}
	FullPhrase         = Comparator{Display: "Full Phrase", Value: "fullPhrase", Op: OpFullPhrase}
	GreaterThan        = Comparator{Display: "Greater Than", Value: "gt", Op: OpGreaterThan}
	GreaterThanOrEqual = Comparator{Display: "Greater Than Or Equal", Value: "gte", Op: OpGreaterThanOrEqual}
	LessThan           = Comparator{Display: "Less Than", Value: "lt", Op: OpLessThan}
	LessThanOrEqual    = Comparator{Display: "Less Than Or Equal", Value: "lte", Op: OpLessThanOrEqual}
	NotAnyWord         = Comparator{Display: "Not Any Word", Value: "notAnyWord", Op: OpNotAnyWord}
	NotEqual           = Comparator{Display: "Not Equal", Value: "ne", Op: OpNotEqual}
	PartialPhrase      = Comparator{Display: "Partial Phrase", Value: "partialPhrase", Op: OpPartialPhrase}
)

// BuiltIns returns the built-in comparators in display order.
func BuiltIns() []Comparator {
	return []Comparator{
		AnyWord, Between, Equal, FullPhrase,
		GreaterThan, GreaterThanOrEqual, LessThan, LessThanOrEqual,
		NotAnyWord, NotEqual, PartialPhrase,
	}
}

// IsNegated reports whether the comparator excludes matches.
func (c Comparator) IsNegated() bool {
	return c.Op == OpNotEqual || c.Op == OpNotAnyWord
}

// IsRange reports whether the comparator translates to a range bound.
func (c Comparator) IsRange() bool {
	switch c.Op {
	case OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpBetween:
		return true
	default:
		return false
	}
}

func (c Comparator) String() string { return c.Value }

// Registry is a concurrency-safe, ordered set of comparators keyed by value.
type Registry struct {
	mu    sync.RWMutex
	items []Comparator
}

// NewRegistry returns a registry seeded with the built-ins.
func NewRegistry() *Registry {
	return &Registry{items: BuiltIns()}
}

// Ensure adds c unless a comparator with the same value (any case) exists.
// Extra comparators must name the built-in Op they translate to.
func (r *Registry) Ensure(c Comparator) bool {
	if c.Value == "" || c.Op < OpEqual || c.Op > OpBetween {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if strings.EqualFold(existing.Value, c.Value) {
			return false
		}
	}
	r.items = append(r.items, c)
	return true
}

// Lookup finds a comparator by value, case-insensitively.
func (r *Registry) Lookup(value string) (Comparator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if strings.EqualFold(c.Value, value) {
			return c, true
		}
	}
	return Comparator{}, false
}

// All returns a copy of every registered comparator in insertion order.
func (r *Registry) All() []Comparator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Comparator, len(r.items))
	copy(out, r.items)
	return out
}
