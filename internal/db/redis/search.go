package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/sqee/internal/db"
	"github.com/kailas-cloud/sqee/internal/domain/search/filter"
)

// Search runs a paged FT.SEARCH. More than one sort key, or a sorted query
// that wants its sort values back, is served by FT.AGGREGATE with the total
// from a LIMIT 0 0 search.
func (s *Store) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if err := validateSearch(q); err != nil {
		return nil, err
	}
	if len(q.Sort) > 1 || (q.WithSortValues && len(q.Sort) > 0) {
		return s.searchSorted(ctx, q)
	}

	query := buildQuery(q.Query)
	args := []string{q.IndexName, query}

	noContent := q.ReturnRestricted && len(q.Return) == 0
	switch {
	case noContent:
		args = append(args, "NOCONTENT")
	case q.ReturnRestricted:
		args = append(args, "RETURN", strconv.Itoa(len(q.Return)*3))
		for _, f := range q.Return {
			args = append(args, f.Path, "AS", f.Name)
		}
	}

	if len(q.Sort) == 1 {
		args = append(args, "SORTBY", db.Attribute(q.Sort[0].Field), direction(q.Sort[0].Ascending))
	}

	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchErr(err)
	}

	if noContent {
		return parseKeysResult(raw)
	}
	return parseListResult(raw)
}

// count returns the number of matching documents via FT.SEARCH with LIMIT 0 0.
func (s *Store) count(ctx context.Context, q *db.SearchQuery) (int, error) {
	if q == nil || q.IndexName == "" {
		return 0, errors.New("index name is required")
	}
	cmd := s.b().Arbitrary("FT.SEARCH").
		Args(q.IndexName, buildQuery(q.Query), "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, searchErr(err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// Aggregate groups matching documents by one attribute and counts each value,
// most frequent first.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) ([]db.AggregateRow, error) {
	if q == nil || q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.GroupBy == "" {
		return nil, errors.New("group by field is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	attr := db.Attribute(q.GroupBy)
	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(
		q.IndexName, buildQuery(q.Query),
		"GROUPBY", "1", "@"+attr,
		"REDUCE", "COUNT", "0", "AS", "count",
		"SORTBY", "2", "@count", "DESC",
		"LIMIT", "0", strconv.Itoa(q.Limit),
		"DIALECT", "2",
	).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isMissingIndex(err) {
			return nil, db.ErrIndexNotFound
		}
		return nil, db.Wrap(db.OpAggregate, q.IndexName, err)
	}

	rows := make([]db.AggregateRow, 0, len(raw))
	for _, fields := range parseAggregateRows(raw) {
		value := fields[attr]
		if value == "" {
			continue
		}
		count, err := strconv.ParseInt(fields["count"], 10, 64)
		if err != nil {
			continue
		}
		rows = append(rows, db.AggregateRow{Value: value, Count: count})
	}
	return rows, nil
}

func (s *Store) searchSorted(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	total, err := s.count(ctx, q)
	if err != nil {
		return nil, err
	}
	if q.Limit == 0 || total == 0 {
		return &db.SearchResult{Total: total}, nil
	}

	load := []string{"@__key"}
	if q.ReturnRestricted {
		for _, f := range q.Return {
			load = append(load, f.Path, "AS", f.Name)
		}
	} else {
		load = append(load, "$")
	}
	if q.WithSortValues {
		for i, k := range q.Sort {
			load = append(load, "@"+db.Attribute(k.Field), "AS", sortValueAlias(i))
		}
	}

	args := []string{q.IndexName, buildQuery(q.Query), "LOAD", strconv.Itoa(len(load))}
	args = append(args, load...)

	args = append(args, "SORTBY", strconv.Itoa(len(q.Sort)*2))
	for _, k := range q.Sort {
		args = append(args, "@"+db.Attribute(k.Field), direction(k.Ascending))
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchErr(err)
	}

	rows := parseAggregateRows(raw)
	entries := make([]db.SearchEntry, 0, len(rows))
	for _, fields := range rows {
		key := fields["__key"]
		if key == "" {
			continue
		}
		delete(fields, "__key")
		entry := db.SearchEntry{Key: key, Fields: fields}
		if q.WithSortValues {
			entry.SortValues = make([]string, len(q.Sort))
			for i := range q.Sort {
				alias := sortValueAlias(i)
				entry.SortValues[i] = fields[alias]
				delete(fields, alias)
			}
		}
		entries = append(entries, entry)
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func sortValueAlias(i int) string {
	return "__sort" + strconv.Itoa(i)
}

func validateSearch(q *db.SearchQuery) error {
	if q == nil || q.IndexName == "" {
		return errors.New("index name is required")
	}
	if q.Offset < 0 {
		return errors.New("offset must not be negative")
	}
	if q.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func searchErr(err error) error {
	if isMissingIndex(err) {
		return db.ErrIndexNotFound
	}
	return &db.Error{Op: db.OpSearch, Err: err}
}

func direction(asc bool) string {
	if asc {
		return "ASC"
	}
	return "DESC"
}

// --- Result parsing ---

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseKeysResult reads a NOCONTENT reply: [total, key1, key2, ...].
func parseKeysResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	entries := make([]db.SearchEntry, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		key, err := msg.ToString()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: map[string]string{}})
	}
	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseAggregateRows reads an FT.AGGREGATE reply: [n, row1, row2, ...].
func parseAggregateRows(raw []rueidis.RedisMessage) []map[string]string {
	if len(raw) < 2 {
		return nil
	}
	rows := make([]map[string]string, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		fields, err := msg.ToArray()
		if err != nil {
			continue
		}
		rows = append(rows, parseFieldPairs(fields))
	}
	return rows
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

// buildQuery renders a clause tree as a DIALECT 2 query string.
func buildQuery(c filter.Clause) string {
	if q := renderClause(c); q != "" {
		return q
	}
	return "*"
}

func renderClause(c filter.Clause) string {
	switch v := c.(type) {
	case nil, filter.MatchAll:
		return ""
	case filter.QueryString:
		return renderQueryString(v)
	case filter.Term:
		return fmt.Sprintf("@%s:{%s}", db.Attribute(v.Field), tagEscaper.Replace(v.Value))
	case filter.Match:
		words := escapedWords(v.Value)
		if len(words) == 0 {
			return ""
		}
		return fmt.Sprintf("@%s:(%s)", db.Attribute(v.Field), strings.Join(words, "|"))
	case filter.Phrase:
		return renderPhrase(v)
	case filter.RangeClause:
		return buildNumericFilter(db.Attribute(v.Field), v.Range)
	case filter.Not:
		inner := renderClause(v.Clause)
		if inner == "" {
			// NOT match-all matches nothing.
			return "-*"
		}
		return "-" + group(inner)
	case filter.Expression:
		return renderExpression(v)
	}
	return ""
}

func renderQueryString(q filter.QueryString) string {
	words := escapedWords(q.Text)
	if len(words) == 0 {
		return ""
	}
	text := strings.Join(words, " ")
	if len(q.Fields) == 0 {
		return text
	}
	attrs := make([]string, 0, len(q.Fields))
	for _, f := range q.Fields {
		attrs = append(attrs, db.Attribute(f))
	}
	return fmt.Sprintf("@%s:(%s)", strings.Join(attrs, "|"), text)
}

func renderPhrase(p filter.Phrase) string {
	words := escapedWords(p.Value)
	if len(words) == 0 {
		return ""
	}
	attr := db.Attribute(p.Field)
	if p.Prefix {
		words[len(words)-1] += "*"
		return fmt.Sprintf("@%s:(%s)", attr, strings.Join(words, " "))
	}
	return fmt.Sprintf(`@%s:("%s")`, attr, strings.Join(words, " "))
}

func renderExpression(e filter.Expression) string {
	var parts []string

	for _, c := range e.Must() {
		if s := renderClause(c); s != "" {
			parts = append(parts, group(s))
		}
	}

	var should []string
	for _, c := range e.Should() {
		if s := renderClause(c); s != "" {
			should = append(should, s)
		}
	}
	switch len(should) {
	case 0:
	case 1:
		parts = append(parts, group(should[0]))
	default:
		parts = append(parts, "("+strings.Join(should, " | ")+")")
	}

	for _, c := range e.MustNot() {
		if s := renderClause(c); s != "" {
			parts = append(parts, "-"+group(s))
		}
	}

	return strings.Join(parts, " ")
}

// group parenthesizes s unless it is already a single atom.
func group(s string) string {
	if isAtom(s) {
		return s
	}
	return "(" + s + ")"
}

// isAtom reports whether s has no unescaped space or '|' outside brackets and quotes.
func isAtom(s string) bool {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\':
			i++
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case (c == ' ' || c == '|') && depth == 0:
			return false
		}
	}
	return true
}

func buildNumericFilter(attr string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = "(" + formatBound(*r.GT())
	} else if r.GTE() != nil {
		minBound = formatBound(*r.GTE())
	}

	if r.LT() != nil {
		maxBound = "(" + formatBound(*r.LT())
	} else if r.LTE() != nil {
		maxBound = formatBound(*r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", attr, minBound, maxBound)
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escapedWords(s string) []string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = queryEscaper.Replace(w)
	}
	return words
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
	`:`, `\:`,
	`.`, `\.`,
	`,`, `\,`,
)
