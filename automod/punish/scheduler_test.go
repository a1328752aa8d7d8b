package punish

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tempestmod/tempest/automod/actions"
	"github.com/tempestmod/tempest/automod/audit"
)

func testScheduler(t *testing.T) (*Scheduler, *actions.MockClient, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	ac := actions.NewMockClient()
	s, err := NewScheduler(db, ac, audit.NewSlogNotifier(slog.Default()), slog.Default())
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s, ac, db
}

func tempMute(actor string, expires time.Time) *Punishment {
	return &Punishment{
		CommunityID: "c1",
		ActorID:     actor,
		Kind:        KindMute,
		Reason:      "test",
		IssuedBy:    "automod",
		IssuedAt:    time.Now(),
		ExpiresAt:   &expires,
	}
}

func reversalCalls(ac *actions.MockClient) int {
	n := 0
	for _, c := range ac.CallsSnapshot() {
		if c.Op == "reverse" {
			n++
		}
	}
	return n
}

func TestScheduleAndGet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))
	assert.NotZero(p.ID)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateActive, got.State)
	assert.Equal("u1", got.ActorID)
	require.NotNil(t, got.ExpiresAt)

	_, err = s.Get(ctx, 9999)
	assert.ErrorIs(err, ErrNotFound)
}

func TestScheduleValidation(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _, _ := testScheduler(t)

	// mute and tempban require an expiry
	assert.Error(s.Schedule(ctx, &Punishment{CommunityID: "c1", ActorID: "u1", Kind: KindMute}))
	assert.Error(s.Schedule(ctx, &Punishment{CommunityID: "c1", ActorID: "u1", Kind: KindTempban}))

	// a permanent ban does not
	assert.NoError(s.Schedule(ctx, &Punishment{CommunityID: "c1", ActorID: "u1", Kind: KindBan}))

	// kicks have no lifecycle and cannot be scheduled
	assert.Error(s.Schedule(ctx, &Punishment{CommunityID: "c1", ActorID: "u1", Kind: Kind("kick")}))
}

func TestScheduleSupersedes(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _, _ := testScheduler(t)

	first := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, first))
	second := tempMute("u1", time.Now().Add(2*time.Hour))
	require.NoError(t, s.Schedule(ctx, second))

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(StateCancelled, got.State)

	got, err = s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(StateActive, got.State)

	// different kinds never supersede each other
	ban := &Punishment{CommunityID: "c1", ActorID: "u1", Kind: KindBan, IssuedAt: time.Now()}
	require.NoError(t, s.Schedule(ctx, ban))
	got, err = s.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(StateActive, got.State)
}

func TestCancelIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, ac, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))

	assert.NoError(s.Cancel(ctx, p.ID, "mistake"))
	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateCancelled, got.State)

	// cancelling again, or cancelling any terminal row, is a quiet no-op
	assert.NoError(s.Cancel(ctx, p.ID, "again"))
	got, err = s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateCancelled, got.State)

	// a cancelled punishment is never reversed on the platform
	assert.Equal(0, reversalCalls(ac))
}

func TestExpiryReversesExactlyOnce(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, ac, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))

	// fire twice, as a racing timer and recovery scan would
	s.fire(p.ID)
	s.fire(p.ID)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateExpired, got.State)
	assert.NotNil(got.ReversedAt)
	assert.Equal(1, reversalCalls(ac))
}

func TestManualReversalBeatsTimer(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, ac, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))

	found, err := s.ReverseActive(ctx, "c1", "u1", KindMute, "moderator unmute")
	require.NoError(t, err)
	assert.True(found)
	assert.Equal(1, reversalCalls(ac))

	// the timer firing afterwards observes the terminal state and does
	// nothing
	s.fire(p.ID)
	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateReversed, got.State)
	assert.Equal(1, reversalCalls(ac))

	// no second active mute to reverse
	found, err = s.ReverseActive(ctx, "c1", "u1", KindMute, "again")
	require.NoError(t, err)
	assert.False(found)
}

func TestRecoverFiresPastDue(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Punishment{}))

	// simulate rows left behind by a crashed process: one past due, one
	// still pending, one permanent
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	rows := []*Punishment{
		{CommunityID: "c1", ActorID: "u1", Kind: KindMute, State: StateActive, IssuedAt: past.Add(-time.Hour), ExpiresAt: &past},
		{CommunityID: "c1", ActorID: "u2", Kind: KindTempban, State: StateActive, IssuedAt: time.Now(), ExpiresAt: &future},
		{CommunityID: "c1", ActorID: "u3", Kind: KindBan, State: StateActive, IssuedAt: time.Now()},
	}
	for _, r := range rows {
		require.NoError(t, db.Create(r).Error)
	}

	ac := actions.NewMockClient()
	s, err := NewScheduler(db, ac, audit.NewSlogNotifier(slog.Default()), slog.Default())
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Recover(ctx))

	// the past-due mute was reversed once, immediately
	got, err := s.Get(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(StateExpired, got.State)
	assert.Equal(1, reversalCalls(ac))

	// the pending tempban stays active with a re-armed timer
	got, err = s.Get(ctx, rows[1].ID)
	require.NoError(t, err)
	assert.Equal(StateActive, got.State)
	s.mu.Lock()
	_, armed := s.timers[rows[1].ID]
	s.mu.Unlock()
	assert.True(armed)

	// the permanent ban has nothing to arm
	s.mu.Lock()
	_, armed = s.timers[rows[2].ID]
	s.mu.Unlock()
	assert.False(armed)

	// a second recovery scan changes nothing
	require.NoError(t, s.Recover(ctx))
	assert.Equal(1, reversalCalls(ac))
}

func TestExpiryTimerFires(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, ac, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(30*time.Millisecond))
	require.NoError(t, s.Schedule(ctx, p))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reversalCalls(ac) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateExpired, got.State)
	assert.Equal(1, reversalCalls(ac))
}

// shortRetryWindows shrinks the reversal retry knobs for the duration of a
// test and restores them afterwards.
func shortRetryWindows(t *testing.T, delay, backoff time.Duration) {
	t.Helper()
	oldDelay, oldBackoff := reversalRetryDelay, reversalAttemptBackoff
	reversalRetryDelay, reversalAttemptBackoff = delay, backoff
	t.Cleanup(func() {
		reversalRetryDelay, reversalAttemptBackoff = oldDelay, oldBackoff
	})
}

func TestReversalRetriesThenSucceeds(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	shortRetryWindows(t, time.Hour, time.Millisecond)
	s, ac, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))

	// first attempt fails, the bounded in-call retry succeeds
	ac.Err = context.DeadlineExceeded
	ac.FailNext = 1
	s.fire(p.ID)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateExpired, got.State)
	assert.NotNil(got.ReversedAt)
	assert.Equal(1, reversalCalls(ac))
}

func TestReversalOutlastsRetryBudget(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	shortRetryWindows(t, 20*time.Millisecond, time.Millisecond)
	s, ac, _ := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))

	// the outage burns through the full in-call attempt budget; the
	// re-armed timer must keep going until the platform acknowledges,
	// including for a manual reversal
	ac.Err = context.DeadlineExceeded
	ac.FailNext = reversalRetryAttempts + 2
	found, err := s.ReverseActive(ctx, "c1", "u1", KindMute, "moderator unmute")
	require.NoError(t, err)
	assert.True(found)
	assert.Equal(0, reversalCalls(ac))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if reversalCalls(ac) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateReversed, got.State)
	assert.NotNil(got.ReversedAt)
	assert.Equal(1, reversalCalls(ac))
}

func TestRecoverRetriesUnacknowledgedReversals(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Punishment{}))

	// terminal rows from a process that crashed before the platform
	// acknowledged the reversal, plus one that was already acknowledged
	past := time.Now().Add(-time.Hour)
	acked := time.Now().Add(-time.Minute)
	rows := []*Punishment{
		{CommunityID: "c1", ActorID: "u1", Kind: KindMute, State: StateExpired, IssuedAt: past, ExpiresAt: &past},
		{CommunityID: "c1", ActorID: "u2", Kind: KindTempban, State: StateReversed, IssuedAt: past, ExpiresAt: &past},
		{CommunityID: "c1", ActorID: "u3", Kind: KindMute, State: StateExpired, IssuedAt: past, ExpiresAt: &past, ReversedAt: &acked},
	}
	for _, r := range rows {
		require.NoError(t, db.Create(r).Error)
	}

	ac := actions.NewMockClient()
	s, err := NewScheduler(db, ac, audit.NewSlogNotifier(slog.Default()), slog.Default())
	require.NoError(t, err)
	defer s.Shutdown()

	require.NoError(t, s.Recover(ctx))

	assert.Equal(2, reversalCalls(ac))
	for _, c := range ac.CallsSnapshot() {
		assert.NotEqual("u3", c.ActorID)
	}
	for _, id := range []uint{rows[0].ID, rows[1].ID} {
		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.NotNil(got.ReversedAt)
	}

	// once acknowledged, a second scan owes nothing
	require.NoError(t, s.Recover(ctx))
	assert.Equal(2, reversalCalls(ac))
}

func TestRestartAfterFailedReversal(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	shortRetryWindows(t, time.Hour, time.Millisecond)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	// first process: the platform is down for the whole attempt budget
	down := actions.NewMockClient()
	down.Err = context.DeadlineExceeded
	down.FailNext = 100
	s1, err := NewScheduler(db, down, audit.NewSlogNotifier(slog.Default()), slog.Default())
	require.NoError(t, err)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s1.Schedule(ctx, p))
	s1.fire(p.ID)

	got, err := s1.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateExpired, got.State)
	assert.Nil(got.ReversedAt)
	s1.Shutdown()

	// second process: recovery picks the unacknowledged reversal back up
	up := actions.NewMockClient()
	s2, err := NewScheduler(db, up, audit.NewSlogNotifier(slog.Default()), slog.Default())
	require.NoError(t, err)
	defer s2.Shutdown()

	require.NoError(t, s2.Recover(ctx))
	assert.Equal(1, reversalCalls(up))
	got, err = s2.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(got.ReversedAt)
}

func TestActiveRowUniqueness(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s, _, db := testScheduler(t)

	p := tempMute("u1", time.Now().Add(time.Hour))
	require.NoError(t, s.Schedule(ctx, p))

	// a second Active row for the same community, actor, and kind is
	// rejected by storage itself, even when written around the scheduler
	dup := tempMute("u1", time.Now().Add(time.Hour))
	dup.State = StateActive
	assert.ErrorIs(db.Create(dup).Error, gorm.ErrDuplicatedKey)

	// terminal rows never collide
	done := tempMute("u1", time.Now().Add(-time.Hour))
	done.State = StateExpired
	assert.NoError(db.Create(done).Error)

	// Schedule resolves the conflict by superseding, not by erroring
	next := tempMute("u1", time.Now().Add(2*time.Hour))
	require.NoError(t, s.Schedule(ctx, next))
	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(StateCancelled, got.State)
}
