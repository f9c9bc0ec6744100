package searchindex

import (
	"fmt"
	"strings"
)

// Entity type names as used by catalog callers.
const (
	EntityTable        = "table"
	EntityDashboard    = "dashboard"
	EntityPipeline     = "pipeline"
	EntityTopic        = "topic"
	EntityUser         = "user"
	EntityTeam         = "team"
	EntityGlossary     = "glossary"
	EntityGlossaryTerm = "glossaryTerm"
	EntityMlModel      = "mlmodel"
	EntityTag          = "tag"
)

var entityIndexTypes = map[string]IndexType{
	strings.ToLower(EntityTable):        TableSearchIndex,
	strings.ToLower(EntityDashboard):    DashboardSearchIndex,
	strings.ToLower(EntityPipeline):     PipelineSearchIndex,
	strings.ToLower(EntityTopic):        TopicSearchIndex,
	strings.ToLower(EntityUser):         UserSearchIndex,
	strings.ToLower(EntityTeam):         TeamSearchIndex,
	strings.ToLower(EntityGlossary):     GlossarySearchIndex,
	strings.ToLower(EntityGlossaryTerm): GlossarySearchIndex,
	strings.ToLower(EntityMlModel):      MlModelSearchIndex,
	strings.ToLower(EntityTag):          TagSearchIndex,
}

// IndexForEntityType resolves the index backing an entity type name. The name
// is matched case-insensitively.
func IndexForEntityType(resolver Resolver, entityType string) (IndexTypeInfo, error) {
	t, ok := entityIndexTypes[strings.ToLower(entityType)]
	if !ok {
		return IndexTypeInfo{}, fmt.Errorf("%w %s", ErrEntityTypeNotFound, entityType)
	}

	info, err := resolver.IndexInfo(t)
	if err != nil {
		return IndexTypeInfo{}, err
	}
	return IndexTypeInfo{IndexType: t, IndexInfo: info}, nil
}
