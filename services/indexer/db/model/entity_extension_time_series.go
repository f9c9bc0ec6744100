package model

import (
	"gorm.io/datatypes"
)

// EntityExtensionTimeSeries stores one JSON document per entity and
// extension. Timestamp is the version used for conditional updates.
type EntityExtensionTimeSeries struct {
	EntityFQN  string         `gorm:"column:entity_fqn;primaryKey"`
	Extension  string         `gorm:"column:extension;primaryKey"`
	JSONSchema string         `gorm:"column:json_schema"`
	JSON       datatypes.JSON `gorm:"column:json"`
	Timestamp  int64          `gorm:"column:timestamp;index"`
}

func (EntityExtensionTimeSeries) TableName() string {
	return "entity_extension_time_series"
}
