package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

// IndexExists checks the index on the cluster state held by the master node,
// not on the node that happens to serve the request.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	local := false
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{name},
		Local: &local,
	}

	res, err := req.Do(ctx, c.os)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, responseError(res)
}

func (c *Client) CreateIndex(ctx context.Context, name string, body []byte) (bool, error) {
	req := opensearchapi.IndicesCreateRequest{
		Index: name,
		Body:  bytes.NewReader(body),
	}

	res, err := req.Do(ctx, c.os)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, responseError(res)
	}

	ack, err := decodeAcknowledged(res)
	if err != nil {
		return false, err
	}
	c.logger.Info("index created", zap.String("index", name), zap.Bool("acknowledged", ack))
	return ack, nil
}

// PutMapping merges the mapping into an existing index. A full index
// definition is accepted as well, in which case only its "mappings" section is
// sent since settings cannot be changed through _mapping.
func (c *Client) PutMapping(ctx context.Context, name string, body []byte) (bool, error) {
	mapping, err := mappingSection(body)
	if err != nil {
		return false, err
	}

	req := opensearchapi.IndicesPutMappingRequest{
		Index: []string{name},
		Body:  bytes.NewReader(mapping),
	}

	res, err := req.Do(ctx, c.os)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, responseError(res)
	}

	ack, err := decodeAcknowledged(res)
	if err != nil {
		return false, err
	}
	c.logger.Info("index mapping updated", zap.String("index", name), zap.Bool("acknowledged", ack))
	return ack, nil
}

func (c *Client) DeleteIndex(ctx context.Context, name string) (bool, error) {
	req := opensearchapi.IndicesDeleteRequest{
		Index: []string{name},
	}

	res, err := req.Do(ctx, c.os)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return false, responseError(res)
	}

	ack, err := decodeAcknowledged(res)
	if err != nil {
		return false, err
	}
	c.logger.Info("index deleted", zap.String("index", name), zap.Bool("acknowledged", ack))
	return ack, nil
}

func mappingSection(body []byte) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode mapping: %w", err)
	}
	if m, ok := doc["mappings"]; ok {
		return m, nil
	}
	return body, nil
}
