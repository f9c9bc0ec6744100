package searchindex

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Resolver maps an IndexType to its physical index and mapping resource, and
// tunes query_string queries issued against the indexes it resolves.
// Implementations must be stateless.
type Resolver interface {
	IndexInfo(t IndexType) (IndexInfo, error)
	CustomizeQuery(q *QueryStringQuery) *QueryStringQuery
}

const (
	DefaultResolverName = "default"
	NgramResolverName   = "ngram"
)

var resolvers = map[string]func() Resolver{
	DefaultResolverName: func() Resolver { return DefaultResolver{} },
	NgramResolverName:   func() Resolver { return NgramResolver{} },

	// names used by older deployments
	"DefaultElasticSearchIndexResolver": func() Resolver { return DefaultResolver{} },
	"NgramElasticSearchIndexResolver":   func() Resolver { return NgramResolver{} },
}

// ResolverFromName returns the resolver registered under name. The lookup
// ignores any package qualifier so "org.x.NgramElasticSearchIndexResolver"
// works as well. An empty name selects the default resolver.
func ResolverFromName(name string) (Resolver, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultResolver{}, nil
	}
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	for k, fn := range resolvers {
		if strings.EqualFold(k, name) {
			return fn(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownResolver, name)
}

// ResolverNames lists the registered resolver names.
func ResolverNames() []string {
	var names []string
	for k := range resolvers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var mappingFiles = map[IndexType]string{
	TableSearchIndex:                       "table_index_mapping.json",
	TopicSearchIndex:                       "topic_index_mapping.json",
	DashboardSearchIndex:                   "dashboard_index_mapping.json",
	PipelineSearchIndex:                    "pipeline_index_mapping.json",
	UserSearchIndex:                        "user_index_mapping.json",
	TeamSearchIndex:                        "team_index_mapping.json",
	GlossarySearchIndex:                    "glossary_index_mapping.json",
	MlModelSearchIndex:                     "mlmodel_index_mapping.json",
	TagSearchIndex:                         "tag_index_mapping.json",
	EntityReportDataIndex:                  "entity_report_data_index.json",
	WebAnalyticEntityViewReportDataIndex:   "web_analytic_entity_view_report_data_index.json",
	WebAnalyticUserActivityReportDataIndex: "web_analytic_user_activity_report_data_index.json",
}

type DefaultResolver struct{}

func (DefaultResolver) IndexInfo(t IndexType) (IndexInfo, error) {
	file, ok := mappingFiles[t]
	if !ok {
		return IndexInfo{}, fmt.Errorf("%w: %s", ErrInvalidIndexType, t)
	}
	return IndexInfo{
		IndexName:       string(t),
		MappingFilePath: file,
	}, nil
}

func (DefaultResolver) CustomizeQuery(q *QueryStringQuery) *QueryStringQuery {
	return q
}

// NgramResolver keeps the default index names but points every index at an
// ngram-analysed mapping, and runs phrase queries against them.
type NgramResolver struct {
	DefaultResolver
}

const ngramMappingDir = "ngram"

func (r NgramResolver) IndexInfo(t IndexType) (IndexInfo, error) {
	info, err := r.DefaultResolver.IndexInfo(t)
	if err != nil {
		return IndexInfo{}, err
	}
	info.MappingFilePath = path.Join(ngramMappingDir, mappingFiles[t])
	return info, nil
}

func (NgramResolver) CustomizeQuery(q *QueryStringQuery) *QueryStringQuery {
	return q.WithType(QueryTypePhrase)
}
