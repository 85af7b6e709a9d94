// Package filter is the backend-neutral clause tree of a structured query.
package filter

import "fmt"

// MaxConditionsPerGroup is the maximum number of clauses per boolean group.
const MaxConditionsPerGroup = 64

// Clause is one node of a query tree.
type Clause interface {
	clause()
}

// MatchAll matches every document.
type MatchAll struct{}

// QueryString is free text over the default (or listed) text fields.
type QueryString struct {
	Text   string
	Fields []string
}

// Term is an exact match on a keyword field.
type Term struct {
	Field string
	Value string
}

// Match matches any analyzed word of Value.
type Match struct {
	Field string
	Value string
}

// Phrase matches Value as a phrase; Prefix lets the last word be partial.
type Phrase struct {
	Field  string
	Value  string
	Prefix bool
}

// RangeClause bounds a numeric field.
type RangeClause struct {
	Field string
	Range Range
}

// Not negates a clause.
type Not struct {
	Clause Clause
}

func (MatchAll) clause()    {}
func (QueryString) clause() {}
func (Term) clause()        {}
func (Match) clause()       {}
func (Phrase) clause()      {}
func (RangeClause) clause() {}
func (Not) clause()         {}
func (Expression) clause()  {}

// Expression is a boolean group with must/should/must_not semantics.
type Expression struct {
	must    []Clause
	should  []Clause
	mustNot []Clause
}

// NewExpression validates and creates an Expression.
func NewExpression(must, should, mustNot []Clause) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must clauses (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should clauses (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not clauses (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should, mustNot: mustNot}, nil
}

// Must returns the must clauses.
func (e Expression) Must() []Clause { return e.must }

// Should returns the should clauses.
func (e Expression) Should() []Clause { return e.should }

// MustNot returns the must-not clauses.
func (e Expression) MustNot() []Clause { return e.mustNot }

// IsEmpty reports whether the expression has no clauses.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0 && len(e.mustNot) == 0
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
