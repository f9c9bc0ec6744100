package opensearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"
)

var ErrUnhealthy = errors.New("unhealthy")

func (c *Client) HealthCheck(ctx context.Context) error {
	req := opensearchapi.ClusterHealthRequest{}
	res, err := req.Do(ctx, c.os)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to get cluster health: %w", responseError(res))
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode cluster health: %w", err)
	}

	if health.Status != "green" && health.Status != "yellow" {
		return fmt.Errorf("%w: cluster status %s", ErrUnhealthy, health.Status)
	}
	return nil
}

// WaitForHealthy blocks until the cluster reports GREEN or YELLOW. Errors other
// than an unhealthy status are returned immediately.
func (c *Client) WaitForHealthy(ctx context.Context, interval time.Duration) error {
	for {
		err := c.HealthCheck(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrUnhealthy) {
			return err
		}

		c.logger.Warn("Waiting for status to be GREEN or YELLOW", zap.Duration("interval", interval))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
