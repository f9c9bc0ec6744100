package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/go-errors/errors"
	"go.uber.org/zap"
)

// Fixed key of the single job status record shared by every index type.
const (
	ElasticSearchEntityFQNStream = "eventPublisherJob"
	ElasticSearchExtension       = "service.eventPublisher"
)

type Key struct {
	EntityFQN string
	Extension string
}

var DefaultKey = Key{
	EntityFQN: ElasticSearchEntityFQNStream,
	Extension: ElasticSearchExtension,
}

// Store persists the ledger record together with its version timestamp. Get
// returns the version the store holds, which is what CompareAndSwap compares
// against. CompareAndSwap is the only write path: it stores record under key
// only when the stored version still equals expected, or, with a nil expected,
// only when no record exists yet. It reports whether the write happened.
type Store interface {
	Get(ctx context.Context, key Key) (record []byte, version int64, found bool, err error)
	CompareAndSwap(ctx context.Context, key Key, expected *int64, record []byte, timestamp int64) (bool, error)
}

// Outcome tells how a RecordFailure call ended. Callers recording a failure
// from an operation path are free to ignore it.
type Outcome int

const (
	Recorded Outcome = iota
	// Conflict means another writer advanced the record first, the failure
	// was dropped.
	Conflict
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// recordTimeout bounds a single RecordFailure call. The caller's deadline does
// not apply, failures are often caused by it.
const recordTimeout = 10 * time.Second

type Ledger struct {
	store  Store
	key    Key
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithKey(key Key) Option {
	return func(l *Ledger) {
		l.key = key
	}
}

func New(store Store, logger *zap.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		key:    DefaultKey,
		now:    time.Now,
		logger: logger.Named("failure-ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RecordFailure overwrites the job status record with the given failure. It
// never panics and never returns an error; problems are logged and reflected
// in the returned Outcome only.
func (l *Ledger) RecordFailure(ctx context.Context, failedFor, message string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("paniced while updating search job info",
				zap.String("stack", goerrors.Wrap(r, 2).ErrorStack()))
			outcome = Failed
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	raw, version, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.logger.Error("Failed to Update Elastic Search Job Info", zap.Error(err))
		return Failed
	}

	var record map[string]json.RawMessage
	var expected *int64
	if found {
		if err := json.Unmarshal(raw, &record); err != nil {
			l.logger.Warn("replacing unreadable search job info", zap.Error(fmt.Errorf("decode job record: %w", err)))
			record = nil
		}
		expected = &version
	}
	if record == nil {
		record = map[string]json.RawMessage{}
	}

	updateTime := l.now().UnixMilli()
	if expected != nil && updateTime <= *expected {
		updateTime = *expected + 1
	}

	if err := setField(record, "status", StatusActiveWithError); err != nil {
		l.logger.Error("Failed to Update Elastic Search Job Info", zap.Error(err))
		return Failed
	}
	if err := setField(record, "timestamp", updateTime); err != nil {
		l.logger.Error("Failed to Update Elastic Search Job Info", zap.Error(err))
		return Failed
	}
	if err := setField(record, "failureDetails", FailureDetails{
		Context:          failedFor,
		LastFailedAt:     updateTime,
		LastFailedReason: message,
	}); err != nil {
		l.logger.Error("Failed to Update Elastic Search Job Info", zap.Error(err))
		return Failed
	}

	out, err := json.Marshal(record)
	if err != nil {
		l.logger.Error("Failed to Update Elastic Search Job Info", zap.Error(err))
		return Failed
	}

	swapped, err := l.store.CompareAndSwap(ctx, l.key, expected, out, updateTime)
	if err != nil {
		l.logger.Error("Failed to Update Elastic Search Job Info", zap.Error(err))
		return Failed
	}
	if !swapped {
		l.logger.Warn("search job info was updated concurrently, dropping failure report",
			zap.String("context", failedFor))
		return Conflict
	}
	return Recorded
}

// Current returns the stored job status, or nil when nothing was recorded yet.
func (l *Ledger) Current(ctx context.Context) (*JobStatus, error) {
	raw, _, found, err := l.store.Get(ctx, l.key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var js JobStatus
	if err := json.Unmarshal(raw, &js); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return &js, nil
}

func setField(record map[string]json.RawMessage, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	record[name] = b
	return nil
}
