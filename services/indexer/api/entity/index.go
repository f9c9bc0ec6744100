package entity

import "github.com/kaytu-io/kaytu-catalog/pkg/searchindex/ledger"

type IndexStatus struct {
	IndexType       string `json:"indexType"`
	IndexName       string `json:"indexName"`
	MappingFilePath string `json:"mappingFilePath"`
	Status          string `json:"status"`
}

type ListIndexStatusResponse struct {
	Indexes []IndexStatus `json:"indexes"`
}

type EnsureIndexResponse struct {
	IndexStatus
	Exists bool `json:"exists"`
}

type EntityIndexResponse struct {
	EntityType      string `json:"entityType"`
	IndexType       string `json:"indexType"`
	IndexName       string `json:"indexName"`
	MappingFilePath string `json:"mappingFilePath"`
}

type FailureResponse struct {
	Status           ledger.JobStatusType `json:"status"`
	Timestamp        int64                `json:"timestamp"`
	Context          string               `json:"context,omitempty"`
	LastFailedAt     int64                `json:"lastFailedAt,omitempty"`
	LastFailedReason string               `json:"lastFailedReason,omitempty"`
}
