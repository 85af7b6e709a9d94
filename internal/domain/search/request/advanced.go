package request

import (
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/comparator"
	"github.com/kailas-cloud/sqee/internal/domain/doctype"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
)

// Advanced is criteria built from filter fields.
type Advanced struct {
	common
}

// NewAdvanced validates and creates advanced criteria.
func NewAdvanced(indices []string, opts ...Option) (*Advanced, error) {
	c, err := newCommon(indices, opts)
	if err != nil {
		return nil, err
	}
	if len(c.searchFields) > 0 {
		return nil, domain.Validationf("search fields require simple criteria")
	}
	for _, f := range c.filters {
		if f.Field == "" {
			return nil, domain.Validationf("filter field name is required")
		}
		if f.Comparator.Op < comparator.OpEqual || f.Comparator.Op > comparator.OpBetween {
			return nil, domain.Validationf("unsupported comparator %q", f.Comparator.Value)
		}
	}
	return &Advanced{common: c}, nil
}

// Bind returns a copy resolving field names through r.
func (a *Advanced) Bind(r Resolver) Criteria {
	cp := *a
	cp.resolver = r
	return &cp
}

// Filters returns a copy of the filter fields.
func (a *Advanced) Filters() []FilterField { return append([]FilterField(nil), a.filters...) }

// Request builds the structured request. Positive filters on the same field
// are OR-ed; distinct fields and negated filters are AND-ed.
func (a *Advanced) Request() (*Request, error) {
	if len(a.filters) == 0 {
		return a.base(filter.MatchAll{}), nil
	}

	var (
		order   []string
		groups  = map[string][]filter.Clause{}
		mustNot []filter.Clause
	)
	for _, f := range a.filters {
		res, resolved := a.resolve(f.Field)
		key := strings.ToLower(f.Field)
		if resolved {
			key = strings.ToLower(res.Path)
		}
		cl, err := translate(f, res, resolved)
		if err != nil {
			return nil, err
		}
		if f.Comparator.IsNegated() {
			mustNot = append(mustNot, cl)
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], cl)
	}

	must := make([]filter.Clause, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if len(g) == 1 {
			must = append(must, g[0])
			continue
		}
		either, err := filter.NewExpression(nil, g, nil)
		if err != nil {
			return nil, domain.Validationf("%s", err.Error())
		}
		must = append(must, either)
	}
	if len(must) == 0 {
		must = append(must, filter.MatchAll{})
	}
	expr, err := filter.NewExpression(must, nil, mustNot)
	if err != nil {
		return nil, domain.Validationf("%s", err.Error())
	}
	return a.base(expr), nil
}

func translate(f FilterField, res doctype.Resolution, resolved bool) (filter.Clause, error) {
	path := f.Field
	if resolved {
		path = res.Path
	}
	switch f.Comparator.Op {
	case comparator.OpEqual, comparator.OpNotEqual:
		if resolved && res.Kind == doctype.Numeric {
			v, err := parseBound(f)
			if err != nil {
				return nil, err
			}
			return rangeClause(path, nil, &v, nil, &v)
		}
		if resolved {
			return filter.Term{Field: doctype.KeywordName(res), Value: f.Value}, nil
		}
		return filter.Term{Field: path, Value: f.Value}, nil
	case comparator.OpAnyWord, comparator.OpNotAnyWord:
		return filter.Match{Field: path, Value: f.Value}, nil
	case comparator.OpFullPhrase:
		return filter.Phrase{Field: path, Value: f.Value}, nil
	case comparator.OpPartialPhrase:
		return filter.Phrase{Field: path, Value: f.Value, Prefix: true}, nil
	case comparator.OpGreaterThan, comparator.OpGreaterThanOrEqual,
		comparator.OpLessThan, comparator.OpLessThanOrEqual:
		v, err := parseBound(f)
		if err != nil {
			return nil, err
		}
		switch f.Comparator.Op {
		case comparator.OpGreaterThan:
			return rangeClause(path, &v, nil, nil, nil)
		case comparator.OpGreaterThanOrEqual:
			return rangeClause(path, nil, &v, nil, nil)
		case comparator.OpLessThan:
			return rangeClause(path, nil, nil, &v, nil)
		default:
			return rangeClause(path, nil, nil, nil, &v)
		}
	case comparator.OpBetween:
		parts := strings.Split(f.Value, domain.TextPartSeparator)
		if len(parts) != 2 {
			return nil, domain.Validationf("between on %q expects \"low%shigh\"", f.Field, domain.TextPartSeparator)
		}
		lo, err := parseBound(FilterField{Field: f.Field, Value: parts[0]})
		if err != nil {
			return nil, err
		}
		hi, err := parseBound(FilterField{Field: f.Field, Value: parts[1]})
		if err != nil {
			return nil, err
		}
		return rangeClause(path, nil, &lo, nil, &hi)
	}
	return nil, domain.Validationf("unsupported comparator %q", f.Comparator.Value)
}

func rangeClause(field string, gt, gte, lt, lte *float64) (filter.Clause, error) {
	r, err := filter.NewRangeFilter(gt, gte, lt, lte)
	if err != nil {
		return nil, domain.Validationf("%s: %s", field, err.Error())
	}
	return filter.RangeClause{Field: field, Range: r}, nil
}

// parseBound reads a number, or an RFC 3339 timestamp as epoch milliseconds.
func parseBound(f FilterField) (float64, error) {
	v := strings.TrimSpace(f.Value)
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n, nil
	}
	if ts, err := time.Parse(time.RFC3339, v); err == nil {
		return float64(ts.UnixMilli()), nil
	}
	return 0, domain.Validationf("%s: %q is not a number or RFC 3339 time", f.Field, f.Value)
}
