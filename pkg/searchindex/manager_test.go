package searchindex

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex/ledger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

type alreadyExistsError struct{}

func (alreadyExistsError) Error() string       { return "resource_already_exists_exception" }
func (alreadyExistsError) AlreadyExists() bool { return true }

type fakeEngine struct {
	mu sync.Mutex

	indexes map[string][]byte
	calls   map[string]int

	existsErr error
	createErr error
	putErr    error
	deleteErr error
	// failFor limits the injected errors to a single index when set.
	failFor string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		indexes: map[string][]byte{},
		calls:   map[string]int{},
	}
}

func (e *fakeEngine) injected(name string, err error) error {
	if err == nil || (e.failFor != "" && e.failFor != name) {
		return nil
	}
	return err
}

func (e *fakeEngine) IndexExists(_ context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls["exists"]++
	if err := e.injected(name, e.existsErr); err != nil {
		return false, err
	}
	_, ok := e.indexes[name]
	return ok, nil
}

func (e *fakeEngine) CreateIndex(_ context.Context, name string, body []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls["create"]++
	if err := e.injected(name, e.createErr); err != nil {
		return false, err
	}
	e.indexes[name] = body
	return true, nil
}

func (e *fakeEngine) PutMapping(_ context.Context, name string, body []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls["put"]++
	if err := e.injected(name, e.putErr); err != nil {
		return false, err
	}
	e.indexes[name] = body
	return true, nil
}

func (e *fakeEngine) DeleteIndex(_ context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls["delete"]++
	if err := e.injected(name, e.deleteErr); err != nil {
		return false, err
	}
	delete(e.indexes, name)
	return true, nil
}

func (e *fakeEngine) count(call string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.calls[call]
}

func (e *fakeEngine) total() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

type nopRecorder struct {
	calls int
}

func (r *nopRecorder) RecordFailure(context.Context, string, string) ledger.Outcome {
	r.calls++
	return ledger.Conflict
}

func newTestManager(t *testing.T, engine Engine, opts ...Option) (*Manager, *ledger.Ledger) {
	t.Helper()

	l := ledger.New(ledger.NewMemoryStore(), zap.NewNop(), ledger.WithClock(func() time.Time {
		return time.UnixMilli(1_700_000_000_000)
	}))
	return New(engine, l, DefaultResolver{}, zap.NewNop(), opts...), l
}

func TestNewManagerStartsNotCreated(t *testing.T) {
	m, _ := newTestManager(t, newFakeEngine())

	statuses := m.Statuses()
	assert.Len(t, statuses, len(AllIndexTypes()))
	for _, it := range AllIndexTypes() {
		assert.Equal(t, IndexStatusNotCreated, m.Status(it), it)
	}
}

func TestCreateIndexTwiceCreatesOnce(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)

	assert.True(t, m.CreateIndex(ctx, TableSearchIndex))
	assert.Equal(t, IndexStatusCreated, m.Status(TableSearchIndex))
	assert.True(t, m.CreateIndex(ctx, TableSearchIndex))
	assert.Equal(t, IndexStatusCreated, m.Status(TableSearchIndex))

	assert.Equal(t, 1, engine.count("create"))
	assert.Equal(t, 2, engine.count("exists"))
	assert.Contains(t, string(engine.indexes["table_search_index"]), `"mappings"`)
}

func TestCreateIndexWhenAlreadyPresent(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.indexes["topic_search_index"] = []byte(`{}`)
	m, _ := newTestManager(t, engine)

	assert.True(t, m.CreateIndex(ctx, TopicSearchIndex))
	assert.Equal(t, IndexStatusCreated, m.Status(TopicSearchIndex))
	assert.Equal(t, 0, engine.count("create"))
}

func TestCreateIndexConcurrentlyCreated(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.createErr = alreadyExistsError{}
	m, l := newTestManager(t, engine)

	assert.True(t, m.CreateIndex(ctx, UserSearchIndex))
	assert.Equal(t, IndexStatusCreated, m.Status(UserSearchIndex))

	js, err := l.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, js)
}

func TestCreateIndexFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	seed := int64(1_600_000_000_000)
	ok, err := store.CompareAndSwap(ctx, ledger.DefaultKey, nil, []byte(`{"status":"ACTIVE","timestamp":1600000000000}`), seed)
	require.NoError(t, err)
	require.True(t, ok)

	engine := newFakeEngine()
	engine.createErr = errors.New("cluster_block_exception")
	l := ledger.New(store, zap.NewNop())
	m := New(engine, l, DefaultResolver{}, zap.NewNop())

	before := testutil.ToFloat64(IndexOperationsCount.WithLabelValues(opCreate, string(DashboardSearchIndex), resultFailure))
	assert.False(t, m.CreateIndex(ctx, DashboardSearchIndex))
	assert.Equal(t, IndexStatusFailed, m.Status(DashboardSearchIndex))
	assert.Equal(t, before+1, testutil.ToFloat64(IndexOperationsCount.WithLabelValues(opCreate, string(DashboardSearchIndex), resultFailure)))

	js, err := l.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, js.FailureDetails)
	assert.Equal(t, ledger.StatusActiveWithError, js.Status)
	assert.Contains(t, js.FailureDetails.Context, "Creating Index")
	assert.Contains(t, js.FailureDetails.Context, "dashboard_search_index")
	assert.Contains(t, js.FailureDetails.LastFailedReason, "cluster_block_exception")
	assert.Greater(t, js.Timestamp, seed)
}

// contextEngine fails every request made with a done context.
type contextEngine struct {
	*fakeEngine
}

func (e contextEngine) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.fakeEngine.IndexExists(ctx, name)
}

func (e contextEngine) CreateIndex(ctx context.Context, name string, body []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.fakeEngine.CreateIndex(ctx, name, body)
}

type contextStore struct {
	*ledger.MemoryStore
}

func (s contextStore) Get(ctx context.Context, key ledger.Key) ([]byte, int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s contextStore) CompareAndSwap(ctx context.Context, key ledger.Key, expected *int64, record []byte, timestamp int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.MemoryStore.CompareAndSwap(ctx, key, expected, record, timestamp)
}

func TestCreateIndexFailureRecordedAfterCancel(t *testing.T) {
	l := ledger.New(contextStore{MemoryStore: ledger.NewMemoryStore()}, zap.NewNop())
	m := New(contextEngine{fakeEngine: newFakeEngine()}, l, DefaultResolver{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, m.CreateIndex(ctx, TableSearchIndex))
	assert.Equal(t, IndexStatusFailed, m.Status(TableSearchIndex))

	js, err := l.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, js)
	assert.Contains(t, js.FailureDetails.Context, "table_search_index")
	assert.Contains(t, js.FailureDetails.LastFailedReason, context.Canceled.Error())
}

func TestCreateIndexMissingMapping(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, l := newTestManager(t, engine, WithMappings(fstest.MapFS{}))

	assert.False(t, m.CreateIndex(ctx, TagSearchIndex))
	assert.Equal(t, IndexStatusFailed, m.Status(TagSearchIndex))
	assert.Equal(t, 0, engine.count("create"))

	js, err := l.Current(ctx)
	require.NoError(t, err)
	assert.Contains(t, js.FailureDetails.Context, "tag_search_index")
	assert.Contains(t, js.FailureDetails.LastFailedReason, ErrMappingRead.Error())
}

func TestFailedThenCreated(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.existsErr = errors.New("connection refused")
	m, _ := newTestManager(t, engine)

	assert.False(t, m.CreateIndex(ctx, TeamSearchIndex))
	assert.Equal(t, IndexStatusFailed, m.Status(TeamSearchIndex))

	engine.existsErr = nil
	assert.True(t, m.CreateIndex(ctx, TeamSearchIndex))
	assert.Equal(t, IndexStatusCreated, m.Status(TeamSearchIndex))
}

func TestEnsureIndexExistsTrustsCreatedStatus(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)
	require.NoError(t, m.statuses.Set(PipelineSearchIndex, IndexStatusCreated))

	assert.True(t, m.EnsureIndexExists(ctx, PipelineSearchIndex))
	assert.Equal(t, 0, engine.total())
}

func TestEnsureIndexExistsCreatesMissing(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)

	assert.True(t, m.EnsureIndexExists(ctx, PipelineSearchIndex))
	assert.Equal(t, 1, engine.count("create"))

	assert.True(t, m.EnsureIndexExists(ctx, PipelineSearchIndex))
	assert.Equal(t, 1, engine.count("exists"))
}

func TestUpdateIndexFallsBackToCreate(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)

	m.UpdateIndex(ctx, GlossarySearchIndex)

	assert.Equal(t, IndexStatusCreated, m.Status(GlossarySearchIndex))
	assert.Equal(t, 1, engine.count("create"))
	assert.Equal(t, 0, engine.count("put"))
}

func TestUpdateIndexPutsMapping(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.indexes["glossary_search_index"] = []byte(`{}`)
	m, _ := newTestManager(t, engine)

	m.UpdateIndex(ctx, GlossarySearchIndex)

	assert.Equal(t, IndexStatusCreated, m.Status(GlossarySearchIndex))
	assert.Equal(t, 0, engine.count("create"))
	assert.Equal(t, 1, engine.count("put"))
}

func TestUpdateIndexFailure(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.indexes["mlmodel_search_index"] = []byte(`{}`)
	engine.putErr = errors.New("illegal_argument_exception")
	m, l := newTestManager(t, engine)
	require.True(t, m.CreateIndex(ctx, MlModelSearchIndex))

	m.UpdateIndex(ctx, MlModelSearchIndex)

	assert.Equal(t, IndexStatusFailed, m.Status(MlModelSearchIndex))
	js, err := l.Current(ctx)
	require.NoError(t, err)
	assert.Contains(t, js.FailureDetails.Context, "Updating Index")
	assert.Contains(t, js.FailureDetails.Context, "mlmodel_search_index")
}

func TestDeleteIndex(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)
	require.True(t, m.CreateIndex(ctx, TableSearchIndex))

	assert.True(t, m.DeleteIndex(ctx, TableSearchIndex))

	assert.Equal(t, 1, engine.count("delete"))
	assert.NotContains(t, engine.indexes, "table_search_index")
	assert.Equal(t, IndexStatusNotCreated, m.Status(TableSearchIndex))

	assert.True(t, m.DeleteIndex(ctx, TableSearchIndex))
	assert.Equal(t, 1, engine.count("delete"))
	assert.Equal(t, IndexStatusNotCreated, m.Status(TableSearchIndex))
}

func TestDeleteIndexFailureKeepsStatus(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, l := newTestManager(t, engine)
	require.True(t, m.CreateIndex(ctx, TopicSearchIndex))
	engine.deleteErr = errors.New("snapshot_in_progress_exception")

	assert.False(t, m.DeleteIndex(ctx, TopicSearchIndex))

	assert.Equal(t, IndexStatusCreated, m.Status(TopicSearchIndex))
	js, err := l.Current(ctx)
	require.NoError(t, err)
	assert.Contains(t, js.FailureDetails.Context, "Deleting Index")
	assert.Contains(t, js.FailureDetails.Context, "topic_search_index")
}

func TestCreateAllIndexesContinuesAfterFailure(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.createErr = errors.New("disk watermark exceeded")
	engine.failFor = "user_search_index"
	m, _ := newTestManager(t, engine)

	m.CreateAllIndexes(ctx)

	for _, it := range AllIndexTypes() {
		if it == UserSearchIndex {
			assert.Equal(t, IndexStatusFailed, m.Status(it))
			continue
		}
		assert.Equal(t, IndexStatusCreated, m.Status(it), it)
	}
	assert.Equal(t, len(AllIndexTypes()), engine.count("create"))
}

func TestUpdateAndDropAllIndexes(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)

	m.UpdateAllIndexes(ctx)
	assert.Len(t, engine.indexes, len(AllIndexTypes()))
	for it, s := range m.Statuses() {
		assert.Equal(t, IndexStatusCreated, s, it)
	}

	assert.Empty(t, m.DropAllIndexes(ctx))
	assert.Empty(t, engine.indexes)
	for it, s := range m.Statuses() {
		assert.Equal(t, IndexStatusNotCreated, s, it)
	}
}

func TestDropAllIndexesReportsFailedDeletes(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	m, l := newTestManager(t, engine)
	m.CreateAllIndexes(ctx)
	engine.deleteErr = errors.New("cluster_block_exception")
	engine.failFor = "glossary_search_index"

	assert.Equal(t, []IndexType{GlossarySearchIndex}, m.DropAllIndexes(ctx))
	assert.Len(t, engine.indexes, 1)
	assert.Equal(t, IndexStatusCreated, m.Status(GlossarySearchIndex))

	js, err := l.Current(ctx)
	require.NoError(t, err)
	assert.Contains(t, js.FailureDetails.Context, "glossary_search_index")
}

func TestRecorderOutcomeIsIgnored(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	engine.createErr = errors.New("boom")
	recorder := &nopRecorder{}
	m := New(engine, recorder, DefaultResolver{}, zap.NewNop())

	assert.False(t, m.CreateIndex(ctx, TableSearchIndex))
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, IndexStatusFailed, m.Status(TableSearchIndex))
}

func TestUnknownIndexTypeIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	engine := newFakeEngine()
	recorder := &nopRecorder{}
	m := New(engine, recorder, DefaultResolver{}, zap.NewNop())

	assert.False(t, m.CreateIndex(ctx, IndexType("chart_search_index")))
	m.UpdateIndex(ctx, IndexType("chart_search_index"))
	m.DeleteIndex(ctx, IndexType("chart_search_index"))

	assert.Equal(t, 0, recorder.calls)
	assert.Equal(t, 0, engine.total())
	assert.Len(t, m.Statuses(), len(AllIndexTypes()))
}

func TestIndexMapping(t *testing.T) {
	m, _ := newTestManager(t, newFakeEngine())

	b, err := m.IndexMapping(EntityReportDataIndex)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mappings"`)

	m, _ = newTestManager(t, newFakeEngine(), WithMappings(fstest.MapFS{}))
	_, err = m.IndexMapping(EntityReportDataIndex)
	assert.ErrorIs(t, err, ErrMappingRead)

	_, err = m.IndexMapping(IndexType("chart_search_index"))
	assert.ErrorIs(t, err, ErrInvalidIndexType)
}

func TestOperationsAreTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
	})

	ctx := context.Background()
	engine := newFakeEngine()
	m, _ := newTestManager(t, engine)
	require.True(t, m.CreateIndex(ctx, TableSearchIndex))
	engine.deleteErr = errors.New("snapshot_in_progress_exception")
	m.DeleteIndex(ctx, TableSearchIndex)

	spans := sr.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "CreateIndex", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("indexType", "table_search_index"))

	assert.Equal(t, "DeleteIndex", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Status().Description, "snapshot_in_progress_exception")
}
