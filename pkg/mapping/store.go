// Package mapping keeps the translations users set up between raw import
// values and canonical system values, e.g. "Sprint 3" -> iteration 3.
package mapping

import (
	"errors"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/planpulse/compass-api/pkg/models"
	"go.uber.org/zap"
)

// StorageKey is the key the whole mapping set is persisted under
const StorageKey = "planPulseValueMappings"

// ErrNotFound is returned by a Backend that has nothing stored under a key
var ErrNotFound = errors.New("key not found")

// Backend persists an opaque blob under a key
type Backend interface {
	Load(key string) ([]byte, error)
	Save(key string, data []byte) error
}

// Store holds the value mappings in memory and writes the full set through
// to its backend after every change. A failed write is logged and the
// in-memory state stays authoritative.
type Store struct {
	mu       sync.RWMutex
	mappings []models.ValueMapping
	backend  Backend
	key      string
	logger   *zap.Logger
}

// NewStore loads the persisted set from backend. A missing or unreadable
// set is logged and the store starts empty.
func NewStore(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		backend:  backend,
		key:      StorageKey,
		logger:   logger.Named("mapping"),
		mappings: []models.ValueMapping{},
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.backend == nil {
		return
	}
	data, err := s.backend.Load(s.key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error("failed to load value mappings", zap.Error(err))
		return
	}

	var mappings []models.ValueMapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		s.logger.Error("failed to decode value mappings", zap.Error(err))
		return
	}

	// collapse duplicate keys, last one wins
	for _, m := range mappings {
		s.upsert(m)
	}
	s.logger.Debug("value mappings loaded", zap.Int("count", len(s.mappings)))
}

// persist must be called with the write lock held
func (s *Store) persist() {
	if s.backend == nil {
		return
	}
	data, err := json.Marshal(s.mappings)
	if err != nil {
		s.logger.Error("failed to encode value mappings", zap.Error(err))
		return
	}
	if err := s.backend.Save(s.key, data); err != nil {
		s.logger.Error("failed to save value mappings",
			zap.Error(err),
			zap.Int("count", len(s.mappings)),
		)
	}
}

func (s *Store) upsert(m models.ValueMapping) {
	for i := range s.mappings {
		cur := s.mappings[i]
		if cur.ImportType == m.ImportType && cur.FieldID == m.FieldID && cur.CSVValue == m.CSVValue {
			s.mappings[i].SystemValue = m.SystemValue
			return
		}
	}
	s.mappings = append(s.mappings, m)
}

// SaveValueMapping inserts or replaces the mapping for (importType, fieldID, csvValue)
func (s *Store) SaveValueMapping(importType, fieldID, csvValue, systemValue string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(models.ValueMapping{
		ImportType:  importType,
		FieldID:     fieldID,
		CSVValue:    csvValue,
		SystemValue: systemValue,
	})
	s.persist()
}

// SaveValueMappings replaces every mapping of one field with mapping.
// Entries for the field that are not in mapping are dropped.
func (s *Store) SaveValueMappings(importType, fieldID string, mapping map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.mappings[:0]
	for _, m := range s.mappings {
		if m.ImportType == importType && m.FieldID == fieldID {
			continue
		}
		kept = append(kept, m)
	}
	s.mappings = kept

	csvValues := make([]string, 0, len(mapping))
	for v := range mapping {
		csvValues = append(csvValues, v)
	}
	sort.Strings(csvValues)
	for _, v := range csvValues {
		s.mappings = append(s.mappings, models.ValueMapping{
			ImportType:  importType,
			FieldID:     fieldID,
			CSVValue:    v,
			SystemValue: mapping[v],
		})
	}
	s.persist()
}

// GetValueMapping returns the system value stored for an exact key
func (s *Store) GetValueMapping(importType, fieldID, csvValue string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mappings {
		if m.ImportType == importType && m.FieldID == fieldID && m.CSVValue == csvValue {
			return m.SystemValue, true
		}
	}
	return "", false
}

// GetValueMappingsForField returns the lookup table for one field
func (s *Store) GetValueMappingsForField(importType, fieldID string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string)
	for _, m := range s.mappings {
		if m.ImportType == importType && m.FieldID == fieldID {
			out[m.CSVValue] = m.SystemValue
		}
	}
	return out
}

// ClearValueMappings removes mappings. With both arguments set it clears one
// field, with only importType it clears that import type, and with an empty
// importType it clears everything. It returns how many mappings were removed.
func (s *Store) ClearValueMappings(importType, fieldID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.mappings)
	if importType == "" {
		s.mappings = []models.ValueMapping{}
		s.persist()
		return before
	}

	kept := s.mappings[:0]
	for _, m := range s.mappings {
		if m.ImportType != importType {
			kept = append(kept, m)
			continue
		}
		if fieldID != "" && m.FieldID != fieldID {
			kept = append(kept, m)
		}
	}
	s.mappings = kept
	s.persist()
	return before - len(kept)
}

// All returns a copy of every mapping in insertion order
func (s *Store) All() []models.ValueMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ValueMapping, len(s.mappings))
	copy(out, s.mappings)
	return out
}

// Len is the number of stored mappings
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mappings)
}

// Translate resolves raw to one of options: a stored mapping whose value is
// still an option wins, otherwise SuggestMapping decides.
func (s *Store) Translate(importType, fieldID, raw string, options []string) (string, bool) {
	if v, ok := s.GetValueMapping(importType, fieldID, raw); ok && containsString(options, v) {
		return v, true
	}
	return SuggestMapping(raw, options)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
