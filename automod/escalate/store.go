package escalate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ViolationRecord is one detector firing (or manual warn), appended to the
// actor's rolling history. Records are never deleted: entries outside the
// forgiveness window stop counting toward escalation but remain for audit.
type ViolationRecord struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	CommunityID string `gorm:"index:idx_violation_actor"`
	ActorID     string `gorm:"index:idx_violation_actor"`
	Detector    string
	Weight      int
	Reason      string
	RecordedAt  time.Time `gorm:"index"`
}

// Store persists violation history and answers the escalation count query.
type Store interface {
	Append(ctx context.Context, recs []ViolationRecord) error
	// CountSince sums violation weights recorded at or after the given
	// instant (the forgiveness-window cutoff).
	CountSince(ctx context.Context, communityID, actorID string, since time.Time) (int, error)
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ViolationRecord{}); err != nil {
		return nil, fmt.Errorf("migrating violation history table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Append(ctx context.Context, recs []ViolationRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&recs).Error; err != nil {
		return fmt.Errorf("appending violation records: %w", err)
	}
	return nil
}

func (s *GormStore) CountSince(ctx context.Context, communityID, actorID string, since time.Time) (int, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&ViolationRecord{}).
		Where("community_id = ? AND actor_id = ? AND recorded_at >= ?", communityID, actorID, since).
		Select("COALESCE(SUM(weight), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("counting violations: %w", err)
	}
	return int(total), nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu      sync.Mutex
	Records []ViolationRecord
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Append(ctx context.Context, recs []ViolationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records = append(s.Records, recs...)
	return nil
}

func (s *MemStore) CountSince(ctx context.Context, communityID, actorID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, r := range s.Records {
		if r.CommunityID == communityID && r.ActorID == actorID && !r.RecordedAt.Before(since) {
			total += r.Weight
		}
	}
	return total, nil
}
