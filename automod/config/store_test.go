package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	s, err := NewGormStore(db)
	require.NoError(t, err)
	return s
}

func TestGormStoreRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testGormStore(t)

	c := DefaultCommunity("c1")
	c.Prefix = "??"
	c.ImmunityLevel = 4
	c.PermLevels = []PermBinding{{RoleID: "mod", Level: 3}}
	c.Detectors.Spam = &SpamConfig{MaxMessages: 5, Window: 5 * time.Second}
	c.Escalation = []EscalationStep{{Threshold: 1, Action: "warn"}}
	require.NoError(t, s.PutCommunity(ctx, c))

	got, err := s.GetCommunity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal("??", got.Prefix)
	assert.Equal(4, got.ImmunityLevel)
	require.NotNil(t, got.Detectors.Spam)
	assert.Equal(5*time.Second, got.Detectors.Spam.Window)
	assert.Nil(got.Detectors.Duplicate)
	require.Len(t, got.Escalation, 1)
	assert.Equal("warn", got.Escalation[0].Action)

	// updates overwrite in place
	c.ImmunityLevel = 6
	require.NoError(t, s.PutCommunity(ctx, c))
	got, err = s.GetCommunity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(6, got.ImmunityLevel)
}

func TestGormStoreUnknownCommunity(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := testGormStore(t)

	got, err := s.GetCommunity(ctx, "never-configured")
	require.NoError(t, err)
	assert.Equal("never-configured", got.ID)
	assert.Equal("!!", got.Prefix)
	assert.Equal(5, got.ImmunityLevel)
	assert.Nil(got.Detectors.Spam)
	assert.Empty(got.Escalation)
}

func TestMemCachedStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := NewMemStore()
	c := DefaultCommunity("c1")
	c.ImmunityLevel = 3
	inner.Communities["c1"] = c

	cached := NewMemCachedStore(inner, 16, time.Minute)

	got, err := cached.GetCommunity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(3, got.ImmunityLevel)

	// direct inner mutation is invisible until the cache is purged
	c2 := DefaultCommunity("c1")
	c2.ImmunityLevel = 6
	inner.Communities["c1"] = c2

	got, err = cached.GetCommunity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(3, got.ImmunityLevel)

	require.NoError(t, cached.PurgeCommunity(ctx, "c1"))
	got, err = cached.GetCommunity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(6, got.ImmunityLevel)

	// writes through the cached store invalidate on their own
	c3 := DefaultCommunity("c1")
	c3.ImmunityLevel = 2
	require.NoError(t, cached.PutCommunity(ctx, c3))
	got, err = cached.GetCommunity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(2, got.ImmunityLevel)
}

func TestApplyDefaults(t *testing.T) {
	assert := assert.New(t)

	c := &Community{ID: "c1"}
	c.ApplyDefaults()
	assert.Equal("!!", c.Prefix)
	assert.Equal(5, c.ImmunityLevel)
	assert.Equal(24*time.Hour, c.ForgivenessWindow)
	assert.Equal(10*time.Minute, c.AutomodMuteDuration)

	// explicit values survive
	c = &Community{ID: "c1", Prefix: "??", ImmunityLevel: 2}
	c.ApplyDefaults()
	assert.Equal("??", c.Prefix)
	assert.Equal(2, c.ImmunityLevel)
}
