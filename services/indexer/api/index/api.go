package index

import (
	"context"
	"errors"
	"net/http"

	"github.com/kaytu-io/kaytu-catalog/pkg/httpserver"
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex"
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex/ledger"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/api/entity"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type FailureReader interface {
	Current(ctx context.Context) (*ledger.JobStatus, error)
}

type API struct {
	manager  *searchindex.Manager
	searcher *searchindex.Searcher
	failures FailureReader
	logger   *zap.Logger
}

func New(manager *searchindex.Manager, searcher *searchindex.Searcher, failures FailureReader, logger *zap.Logger) API {
	return API{
		manager:  manager,
		searcher: searcher,
		failures: failures,
		logger:   logger.Named("index-api"),
	}
}

func (s API) Register(g *echo.Group) {
	g.GET("/status", httpserver.AuthorizeHandler(s.ListStatus, httpserver.ViewerRole))
	g.GET("/status/:indexType", httpserver.AuthorizeHandler(s.GetStatus, httpserver.ViewerRole))
	g.GET("/mapping/:indexType", httpserver.AuthorizeHandler(s.GetMapping, httpserver.ViewerRole))
	g.GET("/entity/:entityType", httpserver.AuthorizeHandler(s.GetEntityIndex, httpserver.ViewerRole))
	g.GET("/failure", httpserver.AuthorizeHandler(s.GetFailure, httpserver.ViewerRole))
	g.GET("/search/:entityType", httpserver.AuthorizeHandler(s.Search, httpserver.ViewerRole))
	g.PUT("/ensure/:indexType", httpserver.AuthorizeHandler(s.Ensure, httpserver.EditorRole))
	g.PUT("/create", httpserver.AuthorizeHandler(s.CreateAll, httpserver.AdminRole))
	g.PUT("/migrate", httpserver.AuthorizeHandler(s.MigrateAll, httpserver.AdminRole))
	g.PUT("/drop", httpserver.AuthorizeHandler(s.DropAll, httpserver.AdminRole))
}

// ListStatus godoc
//
//	@Summary	List the status of every search index
//	@Tags		search-index
//	@Produce	json
//	@Success	200	{object}	entity.ListIndexStatusResponse
//	@Router		/api/v1/search-index/status [get]
func (s API) ListStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.listStatus())
}

func (s API) GetStatus(c echo.Context) error {
	t, err := searchindex.ParseIndexType(c.Param("indexType"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	st, err := s.indexStatus(t)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (s API) GetMapping(c echo.Context) error {
	t, err := searchindex.ParseIndexType(c.Param("indexType"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	mapping, err := s.manager.IndexMapping(t)
	if err != nil {
		s.logger.Error("failed to read index mapping", zap.String("indexType", string(t)), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSONBlob(http.StatusOK, mapping)
}

func (s API) GetEntityIndex(c echo.Context) error {
	entityType := c.Param("entityType")
	info, err := s.manager.IndexForEntityType(entityType)
	if err != nil {
		if errors.Is(err, searchindex.ErrEntityTypeNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, entity.EntityIndexResponse{
		EntityType:      entityType,
		IndexType:       string(info.IndexType),
		IndexName:       info.IndexInfo.IndexName,
		MappingFilePath: info.IndexInfo.MappingFilePath,
	})
}

func (s API) GetFailure(c echo.Context) error {
	js, err := s.failures.Current(c.Request().Context())
	if err != nil {
		s.logger.Error("failed to read search job status", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if js == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no failure recorded")
	}

	res := entity.FailureResponse{
		Status:    js.Status,
		Timestamp: js.Timestamp,
	}
	if js.FailureDetails != nil {
		res.Context = js.FailureDetails.Context
		res.LastFailedAt = js.FailureDetails.LastFailedAt
		res.LastFailedReason = js.FailureDetails.LastFailedReason
	}
	return c.JSON(http.StatusOK, res)
}

func (s API) Ensure(c echo.Context) error {
	t, err := searchindex.ParseIndexType(c.Param("indexType"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	exists := s.manager.EnsureIndexExists(c.Request().Context(), t)
	st, err := s.indexStatus(t)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entity.EnsureIndexResponse{
		IndexStatus: st,
		Exists:      exists,
	})
}

func (s API) CreateAll(c echo.Context) error {
	s.logger.Info("creating all search indexes", zap.String("userId", httpserver.GetUserID(c)))
	s.manager.CreateAllIndexes(c.Request().Context())
	return c.JSON(http.StatusOK, s.listStatus())
}

func (s API) MigrateAll(c echo.Context) error {
	s.logger.Info("migrating all search indexes", zap.String("userId", httpserver.GetUserID(c)))
	s.manager.UpdateAllIndexes(c.Request().Context())
	return c.JSON(http.StatusOK, s.listStatus())
}

func (s API) DropAll(c echo.Context) error {
	s.logger.Info("dropping all search indexes", zap.String("userId", httpserver.GetUserID(c)))
	s.manager.DropAllIndexes(c.Request().Context())
	return c.JSON(http.StatusOK, s.listStatus())
}

func (s API) Search(c echo.Context) error {
	var req entity.SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sr := searchindex.SearchRequest{
		EntityType: req.EntityType,
		Query:      req.Query,
		From:       req.From,
		Size:       req.Size,
	}
	info, err := s.manager.IndexForEntityType(sr.EntityType)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	res, err := s.searcher.Search(c.Request().Context(), sr)
	if err != nil {
		if errors.Is(err, searchindex.ErrIndexUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		s.logger.Error("search failed", zap.String("entityType", sr.EntityType), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	out := entity.SearchResponse{
		IndexName: info.IndexInfo.IndexName,
		Total:     res.Hits.Total.Value,
		Hits:      make([]entity.SearchHit, 0, len(res.Hits.Hits)),
	}
	for _, h := range res.Hits.Hits {
		out.Hits = append(out.Hits, entity.SearchHit{
			ID:     h.ID,
			Score:  h.Score,
			Source: h.Source,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s API) listStatus() entity.ListIndexStatusResponse {
	var res entity.ListIndexStatusResponse
	for _, t := range searchindex.AllIndexTypes() {
		st, err := s.indexStatus(t)
		if err != nil {
			s.logger.Error("failed to resolve index", zap.String("indexType", string(t)), zap.Error(err))
			continue
		}
		res.Indexes = append(res.Indexes, st)
	}
	return res
}

func (s API) indexStatus(t searchindex.IndexType) (entity.IndexStatus, error) {
	info, err := s.manager.Resolver().IndexInfo(t)
	if err != nil {
		return entity.IndexStatus{}, err
	}
	return entity.IndexStatus{
		IndexType:       string(t),
		IndexName:       info.IndexName,
		MappingFilePath: info.MappingFilePath,
		Status:          string(s.manager.Status(t)),
	}, nil
}
