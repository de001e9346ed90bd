package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/BetterCallFirewall/CertiAudit/internal/config"
	"github.com/BetterCallFirewall/CertiAudit/internal/models"
)

// AuditRecord is one finished audit kept by the service.
type AuditRecord struct {
	ID          string              `json:"id"`
	FilePath    string              `json:"file_path"`
	ProjectType config.ProjectType  `json:"project_type"`
	Mode        models.AnalysisMode `json:"mode"`
	CreatedAt   time.Time           `json:"created_at"`
	Report      *models.AuditReport `json:"report"`
}

// DefaultMaxRecords bounds the history kept by NewMemoryStorage.
const DefaultMaxRecords = 100

// MemoryStorage keeps audit records for the lifetime of the process. When full,
// storing a new record evicts the oldest one.
type MemoryStorage struct {
	audits     map[string]*AuditRecord
	maxRecords int
	mu         sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return NewMemoryStorageWithLimit(DefaultMaxRecords)
}

// NewMemoryStorageWithLimit creates a store holding at most maxRecords
// records. A non-positive limit means DefaultMaxRecords.
func NewMemoryStorageWithLimit(maxRecords int) *MemoryStorage {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &MemoryStorage{
		audits:     make(map[string]*AuditRecord),
		maxRecords: maxRecords,
	}
}

// StoreAudit saves rec, assigning an ID and creation time when missing.
func (s *MemoryStorage) StoreAudit(rec *AuditRecord) *AuditRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.audits[rec.ID]; !exists && len(s.audits) >= s.maxRecords {
		s.evictOldest()
	}
	s.audits[rec.ID] = rec
	return rec
}

// evictOldest must be called with the write lock held.
func (s *MemoryStorage) evictOldest() {
	var oldest *AuditRecord
	for _, rec := range s.audits {
		if oldest == nil || rec.CreatedAt.Before(oldest.CreatedAt) {
			oldest = rec
		}
	}
	if oldest != nil {
		log.Debug().Str("id", oldest.ID).Msg("🧹 Evicted oldest audit record")
		delete(s.audits, oldest.ID)
	}
}

func (s *MemoryStorage) GetAudit(id string) (*AuditRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.audits[id]
	return rec, ok
}

// GetAllAudits returns every record, newest first.
func (s *MemoryStorage) GetAllAudits() []*AuditRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	audits := make([]*AuditRecord, 0, len(s.audits))
	for _, rec := range s.audits {
		audits = append(audits, rec)
	}
	sort.Slice(audits, func(i, j int) bool {
		if audits[i].CreatedAt.Equal(audits[j].CreatedAt) {
			return audits[i].ID > audits[j].ID
		}
		return audits[i].CreatedAt.After(audits[j].CreatedAt)
	})
	return audits
}

// DeleteAudit removes a record and reports whether it existed.
func (s *MemoryStorage) DeleteAudit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.audits[id]
	delete(s.audits, id)
	return ok
}
