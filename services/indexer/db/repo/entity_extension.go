package repo

import (
	"context"
	"errors"

	"github.com/kaytu-io/kaytu-catalog/pkg/searchindex/ledger"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/db/connector"
	"github.com/kaytu-io/kaytu-catalog/services/indexer/db/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const eventPublisherJobSchema = "eventPublisherJob"

// EntityExtensionRepo is the ledger.Store backed by the
// entity_extension_time_series table.
type EntityExtensionRepo interface {
	ledger.Store
}

type EntityExtensionRepoImpl struct {
	db *connector.Database
}

func NewEntityExtensionRepo(db *connector.Database) EntityExtensionRepo {
	return &EntityExtensionRepoImpl{
		db: db,
	}
}

func (r *EntityExtensionRepoImpl) Get(ctx context.Context, key ledger.Key) ([]byte, int64, bool, error) {
	var m model.EntityExtensionTimeSeries
	tx := r.db.Conn().WithContext(ctx).Model(&model.EntityExtensionTimeSeries{}).
		Where("entity_fqn = ? AND extension = ?", key.EntityFQN, key.Extension).
		First(&m)
	if tx.Error != nil {
		if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return nil, 0, false, nil
		}
		return nil, 0, false, tx.Error
	}
	return m.JSON, m.Timestamp, true, nil
}

// CompareAndSwap inserts the record when expected is nil and no row exists,
// otherwise updates the row only if its timestamp still equals expected.
func (r *EntityExtensionRepoImpl) CompareAndSwap(ctx context.Context, key ledger.Key, expected *int64, record []byte, timestamp int64) (bool, error) {
	conn := r.db.Conn().WithContext(ctx)

	if expected == nil {
		tx := conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.EntityExtensionTimeSeries{
			EntityFQN:  key.EntityFQN,
			Extension:  key.Extension,
			JSONSchema: eventPublisherJobSchema,
			JSON:       datatypes.JSON(record),
			Timestamp:  timestamp,
		})
		if tx.Error != nil {
			return false, tx.Error
		}
		return tx.RowsAffected == 1, nil
	}

	tx := conn.Model(&model.EntityExtensionTimeSeries{}).
		Where("entity_fqn = ? AND extension = ? AND timestamp = ?", key.EntityFQN, key.Extension, *expected).
		Updates(map[string]any{
			"json":      datatypes.JSON(record),
			"timestamp": timestamp,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}
