package database

import (
	"github.com/planpulse/compass-api/pkg/mapping"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVStore keeps opaque blobs in kv_entries. It satisfies mapping.Backend.
type KVStore struct {
	DB *gorm.DB
}

var _ mapping.Backend = (*KVStore)(nil)

// NewKVStore wraps an opened database
func NewKVStore(db *gorm.DB) *KVStore {
	return &KVStore{DB: db}
}

// Load returns the blob under key, or mapping.ErrNotFound
func (s *KVStore) Load(key string) ([]byte, error) {
	var entry KVEntry
	res := s.DB.Where("key = ?", key).Limit(1).Find(&entry)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, mapping.ErrNotFound
	}
	return entry.Value, nil
}

// Save writes the blob under key, replacing any previous value
func (s *KVStore) Save(key string, data []byte) error {
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&KVEntry{Key: key, Value: data}).Error
}
