package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store provides read/write access to per-community configuration. Readers
// must tolerate a bounded staleness window (see CachedStore); GetCommunity
// never fails for an unknown community, it returns the defaults.
type Store interface {
	GetCommunity(ctx context.Context, communityID string) (*Community, error)
	PutCommunity(ctx context.Context, c *Community) error
}

// gorm row; the config document itself is stored as JSON
type communityRow struct {
	CommunityID string `gorm:"primarykey"`
	Config      []byte
	UpdatedAt   time.Time
}

func (communityRow) TableName() string {
	return "community_configs"
}

type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&communityRow{}); err != nil {
		return nil, fmt.Errorf("migrating community config table: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetCommunity(ctx context.Context, communityID string) (*Community, error) {
	var row communityRow
	err := s.db.WithContext(ctx).First(&row, "community_id = ?", communityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultCommunity(communityID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading community config: %w", err)
	}
	var c Community
	if err := json.Unmarshal(row.Config, &c); err != nil {
		return nil, fmt.Errorf("parsing community config: %w", err)
	}
	c.ID = communityID
	c.ApplyDefaults()
	return &c, nil
}

func (s *GormStore) PutCommunity(ctx context.Context, c *Community) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("serializing community config: %w", err)
	}
	row := communityRow{CommunityID: c.ID, Config: raw}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("writing community config: %w", err)
	}
	return nil
}

// MemStore is a simple map-backed Store for tests and local development.
type MemStore struct {
	Communities map[string]*Community
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{Communities: make(map[string]*Community)}
}

func (s *MemStore) GetCommunity(ctx context.Context, communityID string) (*Community, error) {
	c, ok := s.Communities[communityID]
	if !ok {
		return DefaultCommunity(communityID), nil
	}
	return c, nil
}

func (s *MemStore) PutCommunity(ctx context.Context, c *Community) error {
	s.Communities[c.ID] = c
	return nil
}
