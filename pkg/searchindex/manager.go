package searchindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex/ledger"
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex/mappings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "search-index"

const (
	contextCreatingIndex = "Creating Index"
	contextUpdatingIndex = "Updating Index"
	contextDeletingIndex = "Deleting Index"
)

// Engine is the remote search engine. IndexExists must reflect the cluster
// wide state. CreateIndex should return an error implementing
// AlreadyExists() bool when the index was created in the meantime.
type Engine interface {
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, name string, body []byte) (bool, error)
	PutMapping(ctx context.Context, name string, body []byte) (bool, error)
	DeleteIndex(ctx context.Context, name string) (bool, error)
}

type FailureRecorder interface {
	RecordFailure(ctx context.Context, failedFor, message string) ledger.Outcome
}

// Manager creates, migrates and drops the search indexes and keeps the last
// known status of each of them.
type Manager struct {
	engine   Engine
	recorder FailureRecorder
	resolver Resolver
	mappings fs.FS
	statuses *StatusMap
	logger   *zap.Logger
}

type Option func(*Manager)

// WithMappings replaces the embedded mapping definitions.
func WithMappings(fsys fs.FS) Option {
	return func(m *Manager) {
		m.mappings = fsys
	}
}

func New(engine Engine, recorder FailureRecorder, resolver Resolver, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		engine:   engine,
		recorder: recorder,
		resolver: resolver,
		mappings: mappings.FS,
		statuses: NewStatusMap(),
		logger:   logger.Named("search-index"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Resolver() Resolver {
	return m.resolver
}

func (m *Manager) Status(t IndexType) IndexStatus {
	s, _ := m.statuses.Get(t)
	return s
}

func (m *Manager) Statuses() map[IndexType]IndexStatus {
	return m.statuses.Snapshot()
}

func (m *Manager) CreateAllIndexes(ctx context.Context) {
	for _, t := range AllIndexTypes() {
		m.CreateIndex(ctx, t)
	}
}

func (m *Manager) UpdateAllIndexes(ctx context.Context) {
	for _, t := range AllIndexTypes() {
		m.UpdateIndex(ctx, t)
	}
}

// DropAllIndexes deletes every index and returns the types whose delete
// failed.
func (m *Manager) DropAllIndexes(ctx context.Context) []IndexType {
	var failed []IndexType
	for _, t := range AllIndexTypes() {
		if !m.DeleteIndex(ctx, t) {
			failed = append(failed, t)
		}
	}
	return failed
}

// EnsureIndexExists trusts a CREATED status without asking the cluster.
func (m *Manager) EnsureIndexExists(ctx context.Context, t IndexType) bool {
	if m.Status(t) == IndexStatusCreated {
		return true
	}
	return m.CreateIndex(ctx, t)
}

// CreateIndex creates the index unless it already exists. It returns false on
// failure, in which case the status is FAILED and the failure is recorded.
func (m *Manager) CreateIndex(ctx context.Context, t IndexType) bool {
	ctx, span := startSpan(ctx, "CreateIndex", t)
	defer span.End()

	start := time.Now()
	info, err := m.resolver.IndexInfo(t)
	if err != nil {
		m.logger.Error("failed to resolve index", zap.String("indexType", string(t)), zap.Error(err))
		spanError(span, err)
		return false
	}

	err = m.createIfAbsent(ctx, t, info)
	if err != nil {
		spanError(span, err)
		m.fail(ctx, t, contextCreatingIndex, info.IndexName, err)
		m.logger.Error("Failed to create search indexes", zap.String("index", info.IndexName), zap.Error(err))
		observe(opCreate, t, resultFailure, start)
		return false
	}

	m.setStatus(t, IndexStatusCreated)
	observe(opCreate, t, resultSuccess, start)
	return true
}

// UpdateIndex puts the current mapping on an existing index, or creates the
// index when it is missing. Failures are visible through Status and the
// failure ledger only.
func (m *Manager) UpdateIndex(ctx context.Context, t IndexType) {
	ctx, span := startSpan(ctx, "UpdateIndex", t)
	defer span.End()

	start := time.Now()
	info, err := m.resolver.IndexInfo(t)
	if err != nil {
		m.logger.Error("failed to resolve index", zap.String("indexType", string(t)), zap.Error(err))
		spanError(span, err)
		return
	}

	err = m.update(ctx, info)
	if err != nil {
		spanError(span, err)
		m.fail(ctx, t, contextUpdatingIndex, info.IndexName, err)
		m.logger.Error("Failed to update search indexes", zap.String("index", info.IndexName), zap.Error(err))
		observe(opUpdate, t, resultFailure, start)
		return
	}

	m.setStatus(t, IndexStatusCreated)
	observe(opUpdate, t, resultSuccess, start)
}

// DeleteIndex drops the index if it exists and marks it NOT_CREATED. A failed
// delete is recorded and returns false but leaves the status untouched.
func (m *Manager) DeleteIndex(ctx context.Context, t IndexType) bool {
	ctx, span := startSpan(ctx, "DeleteIndex", t)
	defer span.End()

	start := time.Now()
	info, err := m.resolver.IndexInfo(t)
	if err != nil {
		m.logger.Error("failed to resolve index", zap.String("indexType", string(t)), zap.Error(err))
		spanError(span, err)
		return false
	}

	err = m.delete(ctx, info)
	if err != nil {
		spanError(span, err)
		m.record(ctx, contextDeletingIndex, info.IndexName, err)
		m.logger.Error("Failed to delete search indexes", zap.String("index", info.IndexName), zap.Error(err))
		observe(opDelete, t, resultFailure, start)
		return false
	}

	m.setStatus(t, IndexStatusNotCreated)
	observe(opDelete, t, resultSuccess, start)
	return true
}

// IndexMapping returns the raw mapping definition of the index.
func (m *Manager) IndexMapping(t IndexType) ([]byte, error) {
	info, err := m.resolver.IndexInfo(t)
	if err != nil {
		return nil, err
	}
	return m.readMapping(info)
}

func (m *Manager) IndexForEntityType(entityType string) (IndexTypeInfo, error) {
	return IndexForEntityType(m.resolver, entityType)
}

func (m *Manager) createIfAbsent(ctx context.Context, t IndexType, info IndexInfo) error {
	exists, err := m.engine.IndexExists(ctx, info.IndexName)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	if exists {
		return nil
	}

	mapping, err := m.readMapping(info)
	if err != nil {
		return err
	}
	return m.create(ctx, info.IndexName, mapping)
}

func (m *Manager) create(ctx context.Context, name string, mapping []byte) error {
	ack, err := m.engine.CreateIndex(ctx, name, mapping)
	if err != nil {
		if isAlreadyExists(err) {
			m.logger.Info("index was created concurrently", zap.String("index", name))
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	m.logger.Info("index created", zap.String("index", name), zap.Bool("acknowledged", ack))
	return nil
}

func (m *Manager) update(ctx context.Context, info IndexInfo) error {
	exists, err := m.engine.IndexExists(ctx, info.IndexName)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}

	mapping, err := m.readMapping(info)
	if err != nil {
		return err
	}

	if !exists {
		return m.create(ctx, info.IndexName, mapping)
	}

	ack, err := m.engine.PutMapping(ctx, info.IndexName, mapping)
	if err != nil {
		return fmt.Errorf("put mapping: %w", err)
	}
	m.logger.Info("index updated", zap.String("index", info.IndexName), zap.Bool("acknowledged", ack))
	return nil
}

func (m *Manager) delete(ctx context.Context, info IndexInfo) error {
	exists, err := m.engine.IndexExists(ctx, info.IndexName)
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	if !exists {
		return nil
	}

	ack, err := m.engine.DeleteIndex(ctx, info.IndexName)
	if err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	m.logger.Info("index deleted", zap.String("index", info.IndexName), zap.Bool("acknowledged", ack))
	return nil
}

func (m *Manager) readMapping(info IndexInfo) ([]byte, error) {
	b, err := fs.ReadFile(m.mappings, info.MappingFilePath)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMappingRead, info.MappingFilePath, err)
	}
	return b, nil
}

func (m *Manager) fail(ctx context.Context, t IndexType, operation, indexName string, err error) {
	m.setStatus(t, IndexStatusFailed)
	m.record(ctx, operation, indexName, err)
}

func (m *Manager) record(ctx context.Context, operation, indexName string, err error) {
	outcome := m.recorder.RecordFailure(ctx, ledger.FailureContext(operation, indexName), ledger.FailureReason(err))
	if outcome != ledger.Recorded {
		m.logger.Warn("failure was not recorded", zap.String("index", indexName), zap.Stringer("outcome", outcome))
	}
}

func (m *Manager) setStatus(t IndexType, status IndexStatus) {
	if err := m.statuses.Set(t, status); err != nil {
		m.logger.Error("failed to set index status", zap.Error(err))
	}
}

func startSpan(ctx context.Context, name string, t IndexType) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("indexType", string(t))),
	)
	return ctx, span
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func isAlreadyExists(err error) bool {
	var ae interface{ AlreadyExists() bool }
	return errors.As(err, &ae) && ae.AlreadyExists()
}
