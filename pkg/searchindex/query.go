package searchindex

import (
	"sort"
	"strconv"
)

const (
	QueryTypeBestFields = "best_fields"
	QueryTypePhrase     = "phrase"
)

// QueryStringQuery builds a query_string clause for the search body.
type QueryStringQuery struct {
	Query              string
	Fields             map[string]float64
	DefaultOperator    string
	Type               string
	FuzzyMaxExpansions int
	Lenient            bool
}

func NewQueryStringQuery(query string) *QueryStringQuery {
	return &QueryStringQuery{
		Query:              query,
		Fields:             map[string]float64{},
		DefaultOperator:    "AND",
		Type:               QueryTypeBestFields,
		FuzzyMaxExpansions: 10,
		Lenient:            true,
	}
}

func (q *QueryStringQuery) Field(name string, boost float64) *QueryStringQuery {
	q.Fields[name] = boost
	return q
}

func (q *QueryStringQuery) WithType(t string) *QueryStringQuery {
	q.Type = t
	return q
}

// Source renders the clause as it appears under "query".
func (q *QueryStringQuery) Source() map[string]any {
	qs := map[string]any{
		"query":                q.Query,
		"default_operator":     q.DefaultOperator,
		"type":                 q.Type,
		"fuzzy_max_expansions": q.FuzzyMaxExpansions,
		"lenient":              q.Lenient,
	}
	if len(q.Fields) > 0 {
		fields := make([]string, 0, len(q.Fields))
		for name, boost := range q.Fields {
			if boost == 1 {
				fields = append(fields, name)
			} else {
				fields = append(fields, name+"^"+strconv.FormatFloat(boost, 'f', -1, 64))
			}
		}
		sort.Strings(fields)
		qs["fields"] = fields
	}
	return map[string]any{
		"query_string": qs,
	}
}
