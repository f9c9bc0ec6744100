package api

import (
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/api/index"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type API struct {
	manager  *searchindex.Manager
	searcher *searchindex.Searcher
	failures index.FailureReader
	logger   *zap.Logger
}

func New(
	manager *searchindex.Manager,
	searcher *searchindex.Searcher,
	failures index.FailureReader,
	logger *zap.Logger,
) *API {
	return &API{
		manager:  manager,
		searcher: searcher,
		failures: failures,
		logger:   logger.Named("api"),
	}
}

func (api *API) Register(e *echo.Echo) {
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(200)
	})

	idx := index.New(api.manager, api.searcher, api.failures, api.logger)
	idx.Register(e.Group("/api/v1/search-index"))
}
