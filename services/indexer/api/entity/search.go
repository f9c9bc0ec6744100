package entity

import "encoding/json"

type SearchRequest struct {
	EntityType string `param:"entityType" validate:"required"`
	Query      string `query:"q"`
	From       int    `query:"from" validate:"gte=0"`
	Size       int    `query:"size" validate:"gte=0,lte=100"`
}

type SearchHit struct {
	ID     string          `json:"id"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source"`
}

type SearchResponse struct {
	IndexName string      `json:"indexName"`
	Total     int64       `json:"total"`
	Hits      []SearchHit `json:"hits"`
}
