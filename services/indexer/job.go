package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kaytu-io/kaytu-catalog/pkg/opensearch"
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex"
	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex/ledger"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/config"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/db/connector"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/db/repo"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultHttpAddress   = "localhost:8000"
	defaultTimeout       = 30 * time.Second
	healthyCheckInterval = 10 * time.Second
	statusConcurrency    = 4
)

type Operation string

const (
	OperationCreate  Operation = "create"
	OperationMigrate Operation = "migrate"
	OperationDrop    Operation = "drop"
)

type Job struct {
	conf    config.SearchIndexConfig
	logger  *zap.Logger
	engine  *opensearch.Client
	ledger  *ledger.Ledger
	manager *searchindex.Manager
}

func InitializeJob(conf config.SearchIndexConfig, logger *zap.Logger) (*Job, error) {
	j := &Job{
		conf:   conf,
		logger: logger,
	}

	resolver, err := searchindex.ResolverFromName(conf.ElasticSearch.IndexResolver)
	if err != nil {
		return nil, err
	}

	timeout := defaultTimeout
	if conf.ElasticSearch.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.ElasticSearch.TimeoutSeconds) * time.Second
	}
	j.engine, err = opensearch.NewClient(opensearch.Config{
		Addresses:          conf.ElasticSearch.Address,
		Username:           conf.ElasticSearch.Username,
		Password:           conf.ElasticSearch.Password,
		InsecureSkipVerify: conf.ElasticSearch.InsecureSkipVerify,
		Timeout:            timeout,
		AWSRegion:          conf.ElasticSearch.AwsRegion,
		AWSService:         conf.ElasticSearch.AwsService,
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := j.ledgerStore()
	if err != nil {
		return nil, err
	}
	j.ledger = ledger.New(store, logger)
	j.manager = searchindex.New(j.engine, j.ledger, resolver, logger)

	return j, nil
}

func (j *Job) ledgerStore() (ledger.Store, error) {
	if j.conf.Postgres.Host == "" {
		j.logger.Warn("postgres is not configured, index failures are kept in memory only")
		return ledger.NewMemoryStore(), nil
	}

	db, err := connector.New(j.conf.Postgres, j.logger, gormlogger.Warn)
	if err != nil {
		return nil, fmt.Errorf("new postgres client: %w", err)
	}
	if err := db.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	j.logger.Info("Connected to the postgres database", zap.String("db", j.conf.Postgres.DB))

	return repo.NewEntityExtensionRepo(db), nil
}

// Run applies op to every index, or to the single index named by only. It
// fails when any targeted index ends up FAILED, or for drop, when any delete
// failed.
func (j *Job) Run(ctx context.Context, op Operation, only string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("paniced with error", zap.String("stack", goerrors.Wrap(r, 2).ErrorStack()))
			err = fmt.Errorf("paniced: %v", r)
		}
	}()

	targets := searchindex.AllIndexTypes()
	if only != "" {
		t, err := searchindex.ParseIndexType(only)
		if err != nil {
			return err
		}
		targets = []searchindex.IndexType{t}
	}

	if j.conf.WaitForHealthy {
		if err := j.engine.WaitForHealthy(ctx, healthyCheckInterval); err != nil {
			return fmt.Errorf("wait for cluster: %w", err)
		}
	}

	j.logger.Info("Starting search index job", zap.String("operation", string(op)), zap.Int("indexes", len(targets)))
	var dropFailed []searchindex.IndexType
	switch {
	case op == OperationCreate && only == "":
		j.manager.CreateAllIndexes(ctx)
	case op == OperationMigrate && only == "":
		j.manager.UpdateAllIndexes(ctx)
	case op == OperationDrop && only == "":
		dropFailed = j.manager.DropAllIndexes(ctx)
	case op == OperationCreate:
		j.manager.CreateIndex(ctx, targets[0])
	case op == OperationMigrate:
		j.manager.UpdateIndex(ctx, targets[0])
	case op == OperationDrop:
		if !j.manager.DeleteIndex(ctx, targets[0]) {
			dropFailed = targets
		}
	default:
		return fmt.Errorf("unsupported operation %s", op)
	}
	j.pushMetrics()

	var failed []string
	if op == OperationDrop {
		for _, t := range dropFailed {
			failed = append(failed, string(t))
		}
	} else {
		for _, t := range targets {
			if j.manager.Status(t) == searchindex.IndexStatusFailed {
				failed = append(failed, string(t))
			}
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%s failed for indexes: %s", op, strings.Join(failed, ", "))
	}
	j.logger.Info("search index job finished", zap.String("operation", string(op)))
	return nil
}

func (j *Job) Ensure(ctx context.Context, indexType string) (bool, error) {
	t, err := searchindex.ParseIndexType(indexType)
	if err != nil {
		return false, err
	}
	ok := j.manager.EnsureIndexExists(ctx, t)
	j.pushMetrics()
	return ok, nil
}

type IndexReport struct {
	IndexType       string `json:"indexType"`
	IndexName       string `json:"indexName"`
	MappingFilePath string `json:"mappingFilePath"`
	// Exists is nil when the cluster could not be asked.
	Exists *bool `json:"exists"`
}

type StatusReport struct {
	Indexes []IndexReport     `json:"indexes"`
	Failure *ledger.JobStatus `json:"failure,omitempty"`
}

// Status collects the remote state of every index and the last recorded
// failure.
func (j *Job) Status(ctx context.Context) (*StatusReport, error) {
	types := searchindex.AllIndexTypes()
	res := StatusReport{
		Indexes: make([]IndexReport, len(types)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusConcurrency)
	for i, t := range types {
		info, err := j.manager.Resolver().IndexInfo(t)
		if err != nil {
			return nil, err
		}
		res.Indexes[i] = IndexReport{
			IndexType:       string(t),
			IndexName:       info.IndexName,
			MappingFilePath: info.MappingFilePath,
		}

		r := &res.Indexes[i]
		g.Go(func() error {
			ok, err := j.engine.IndexExists(gctx, r.IndexName)
			if err != nil {
				j.logger.Warn("failed to check index", zap.String("index", r.IndexName), zap.Error(err))
				return nil
			}
			r.Exists = &ok
			return nil
		})
	}
	_ = g.Wait()

	js, err := j.ledger.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("read job status: %w", err)
	}
	res.Failure = js
	return &res, nil
}

// Report writes the status report to w, as a table or as json.
func (j *Job) Report(ctx context.Context, w io.Writer, output string) error {
	res, err := j.Status(ctx)
	if err != nil {
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Index Type", "Index Name", "Mapping", "Exists"})
	for _, r := range res.Indexes {
		exists := "unknown"
		if r.Exists != nil {
			exists = fmt.Sprintf("%t", *r.Exists)
		}
		tw.AppendRow(table.Row{r.IndexType, r.IndexName, r.MappingFilePath, exists})
	}
	tw.Render()

	if res.Failure == nil {
		_, err = fmt.Fprintln(w, "no failure recorded")
		return err
	}
	fmt.Fprintf(w, "status: %s (updated %s)\n", res.Failure.Status, time.UnixMilli(res.Failure.Timestamp).UTC().Format(time.RFC3339))
	if res.Failure.FailureDetails != nil {
		fmt.Fprintf(w, "last failure: %s\n", strings.Join(strings.Fields(res.Failure.FailureDetails.Context), " "))
		fmt.Fprintf(w, "reason: %s\n", firstLine(res.Failure.FailureDetails.LastFailedReason))
	}
	return nil
}

func (j *Job) pushMetrics() {
	if j.conf.PrometheusPushAddress == "" {
		return
	}
	pusher := push.New(j.conf.PrometheusPushAddress, "search-index-worker").
		Collector(searchindex.IndexOperationsCount).
		Collector(searchindex.IndexOperationsDuration)
	if err := pusher.Push(); err != nil {
		j.logger.Warn("failed to push metrics", zap.Error(err))
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
