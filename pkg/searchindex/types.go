package searchindex

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIndexType   = errors.New("no such index type")
	ErrEntityTypeNotFound = errors.New("failed to find index doc for type")
	ErrMappingRead        = errors.New("failed to read index mapping")
	ErrUnknownResolver    = errors.New("unknown index resolver")
)

type IndexType string

const (
	TableSearchIndex                       IndexType = "table_search_index"
	TopicSearchIndex                       IndexType = "topic_search_index"
	DashboardSearchIndex                   IndexType = "dashboard_search_index"
	PipelineSearchIndex                    IndexType = "pipeline_search_index"
	UserSearchIndex                        IndexType = "user_search_index"
	TeamSearchIndex                        IndexType = "team_search_index"
	GlossarySearchIndex                    IndexType = "glossary_search_index"
	MlModelSearchIndex                     IndexType = "mlmodel_search_index"
	TagSearchIndex                         IndexType = "tag_search_index"
	EntityReportDataIndex                  IndexType = "entity_report_data_index"
	WebAnalyticEntityViewReportDataIndex   IndexType = "web_analytic_entity_view_report_data_index"
	WebAnalyticUserActivityReportDataIndex IndexType = "web_analytic_user_activity_report_data_index"
)

var indexTypes = []IndexType{
	TableSearchIndex,
	TopicSearchIndex,
	DashboardSearchIndex,
	PipelineSearchIndex,
	UserSearchIndex,
	TeamSearchIndex,
	GlossarySearchIndex,
	MlModelSearchIndex,
	TagSearchIndex,
	EntityReportDataIndex,
	WebAnalyticEntityViewReportDataIndex,
	WebAnalyticUserActivityReportDataIndex,
}

// AllIndexTypes returns every index type in declaration order. The returned
// slice is a copy.
func AllIndexTypes() []IndexType {
	res := make([]IndexType, len(indexTypes))
	copy(res, indexTypes)
	return res
}

func (t IndexType) IsValid() bool {
	for _, it := range indexTypes {
		if it == t {
			return true
		}
	}
	return false
}

func (t IndexType) String() string {
	return string(t)
}

func ParseIndexType(s string) (IndexType, error) {
	t := IndexType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %s", ErrInvalidIndexType, s)
	}
	return t, nil
}

type IndexStatus string

const (
	IndexStatusNotCreated IndexStatus = "NOT_CREATED"
	IndexStatusCreated    IndexStatus = "CREATED"
	IndexStatusFailed     IndexStatus = "FAILED"
)

// IndexInfo is the physical index name and the mapping resource backing an
// IndexType under a given resolver.
type IndexInfo struct {
	IndexName       string `json:"indexName"`
	MappingFilePath string `json:"mappingFilePath"`
}

type IndexTypeInfo struct {
	IndexType IndexType `json:"indexType"`
	IndexInfo IndexInfo `json:"indexInfo"`
}
