package request

import (
	"strings"

	"github.com/kailas-cloud/sqee/internal/domain"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
)

// Simple is free-text criteria over the default searchable fields.
type Simple struct {
	common
	text string
}

// NewSimple validates and creates simple criteria.
func NewSimple(text string, indices []string, opts ...Option) (*Simple, error) {
	c, err := newCommon(indices, opts)
	if err != nil {
		return nil, err
	}
	if len(c.filters) > 0 {
		return nil, domain.Validationf("filters require advanced criteria")
	}
	if len(text) > MaxQueryLength {
		return nil, domain.Validationf("query too long (max %d chars)", MaxQueryLength)
	}
	return &Simple{common: c, text: strings.TrimSpace(text)}, nil
}

// Bind returns a copy resolving field names through r.
func (s *Simple) Bind(r Resolver) Criteria {
	cp := *s
	cp.resolver = r
	return &cp
}

// Text returns the free-text query.
func (s *Simple) Text() string { return s.text }

// Request builds the structured request.
func (s *Simple) Request() (*Request, error) {
	if s.text == "" {
		return s.base(filter.MatchAll{}), nil
	}
	qs := filter.QueryString{Text: s.text}
	for _, f := range s.searchFields {
		if res, ok := s.resolve(f); ok {
			qs.Fields = append(qs.Fields, res.Path)
			continue
		}
		qs.Fields = append(qs.Fields, f)
	}
	return s.base(qs), nil
}
