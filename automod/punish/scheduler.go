package punish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tempestmod/tempest/automod/actions"
	"github.com/tempestmod/tempest/automod/audit"
)

// bounded timeout for storage operations from timer callbacks
var storageTimeout = 5 * time.Second

// how long to wait before retrying a reversal the platform did not
// acknowledge
var reversalRetryDelay = time.Minute

// backoff unit between in-flight reversal attempts
var reversalAttemptBackoff = time.Second

var reversalRetryAttempts = 3

// bound on supersede retries when racing another Schedule for the same slot
var supersedeAttempts = 3

var ErrNotFound = errors.New("punishment not found")

// Scheduler durably schedules and fires expiry of time-bounded punishments.
//
// The persisted row is the source of truth; in-memory timers are only an
// optimization. A temporary punishment is reversed exactly once, at or after
// its expiry, even across process restarts: recovery re-derives the timer
// set from storage, and the Active->Expired transition is a storage-level
// conditional update, so a re-armed timer and a concurrent recovery scan
// cannot both win.
type Scheduler struct {
	db       *gorm.DB
	actions  actions.Client
	notifier audit.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[uint]*time.Timer
}

func NewScheduler(db *gorm.DB, ac actions.Client, notifier audit.Notifier, logger *slog.Logger) (*Scheduler, error) {
	if err := db.AutoMigrate(&Punishment{}); err != nil {
		return nil, fmt.Errorf("migrating punishment table: %w", err)
	}
	return &Scheduler{
		db:       db,
		actions:  ac,
		notifier: notifier,
		logger:   logger.With("system", "punishment-scheduler"),
		timers:   make(map[uint]*time.Timer),
	}, nil
}

// Recover re-derives the scheduler's obligations from storage: Active
// punishments that are already past due are expired immediately, pending ones
// get their timers re-armed for the remaining duration, and terminal rows
// whose platform reversal was never acknowledged (crash mid-retry) have the
// reversal re-applied. Must complete before the event consumer starts.
func (s *Scheduler) Recover(ctx context.Context) error {
	var pending []Punishment
	if err := s.db.WithContext(ctx).Where("state = ?", StateActive).Find(&pending).Error; err != nil {
		return fmt.Errorf("scanning active punishments: %w", err)
	}
	var unacked []Punishment
	if err := s.db.WithContext(ctx).
		Where("state IN ? AND reversed_at IS NULL", []State{StateExpired, StateReversed}).
		Find(&unacked).Error; err != nil {
		return fmt.Errorf("scanning unacknowledged reversals: %w", err)
	}
	for i := range unacked {
		s.reverseWithRetry(ctx, &unacked[i])
	}
	now := time.Now()
	recovered, fired := 0, 0
	for i := range pending {
		p := pending[i]
		if p.ExpiresAt == nil {
			continue // permanent, nothing to arm
		}
		if !p.ExpiresAt.After(now) {
			s.fire(p.ID)
			fired++
			continue
		}
		s.arm(p.ID, time.Until(*p.ExpiresAt))
		recovered++
	}
	s.logger.Info("punishment recovery complete", "rearmed", recovered, "firedImmediately", fired, "reversalsRetried", len(unacked))
	return nil
}

// Schedule persists the punishment as Active and arms its expiry timer. An
// existing Active punishment of the same kind for the same actor is
// cancelled first (superseded), never stacked. The enforcement side effect
// is not committed unless Schedule returns nil.
func (s *Scheduler) Schedule(ctx context.Context, p *Punishment) error {
	switch p.Kind {
	case KindMute, KindTempban, KindBan:
	default:
		return fmt.Errorf("unschedulable punishment kind: %s", p.Kind)
	}
	if (p.Kind == KindMute || p.Kind == KindTempban) && p.ExpiresAt == nil {
		return fmt.Errorf("%s punishment requires an expiry", p.Kind)
	}

	p.State = StateActive
	if p.IssuedAt.IsZero() {
		p.IssuedAt = time.Now()
	}

	// the partial unique index over Active rows makes the insert the
	// supersede arbiter: a concurrent Schedule that slipped in between the
	// scan and the insert surfaces as a duplicate-key error, and we cancel
	// it and try again
	for attempt := 0; attempt < supersedeAttempts; attempt++ {
		var prior []Punishment
		err := s.db.WithContext(ctx).
			Where("community_id = ? AND actor_id = ? AND kind = ? AND state = ?", p.CommunityID, p.ActorID, p.Kind, StateActive).
			Find(&prior).Error
		if err != nil {
			return fmt.Errorf("checking for overlapping punishment: %w", err)
		}
		for _, old := range prior {
			if err := s.Cancel(ctx, old.ID, "superseded"); err != nil {
				return err
			}
		}

		p.ID = 0
		err = s.db.WithContext(ctx).Create(p).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return fmt.Errorf("persisting punishment: %w", err)
		}
		punishmentsScheduled.WithLabelValues(string(p.Kind)).Inc()

		if p.ExpiresAt != nil {
			s.arm(p.ID, time.Until(*p.ExpiresAt))
		}
		return nil
	}
	return fmt.Errorf("persisting punishment: kept losing the supersede race for %s/%s/%s", p.CommunityID, p.ActorID, p.Kind)
}

// Cancel transitions Active -> Cancelled. Cancelling a punishment already in
// a terminal state is a no-op, not an error.
func (s *Scheduler) Cancel(ctx context.Context, id uint, reason string) error {
	won, p, err := s.transition(ctx, id, StateCancelled)
	if err != nil {
		return err
	}
	s.disarm(id)
	if !won {
		return nil
	}
	punishmentsCancelled.Inc()
	s.notifier.Transition(ctx, audit.TransitionEntry{
		PunishmentID: p.ID,
		CommunityID:  p.CommunityID,
		ActorID:      p.ActorID,
		Kind:         string(p.Kind),
		FromState:    string(StateActive),
		ToState:      string(StateCancelled),
		Reason:       reason,
		At:           time.Now(),
	})
	return nil
}

// ReverseActive reverses the actor's Active punishment of the given kind
// immediately: the row transitions to Reversed, the pending timer is
// disarmed, and the platform-level reversal is applied. When the timer later
// fires anyway it observes the non-Active state and does nothing. Reports
// whether an Active punishment was found.
func (s *Scheduler) ReverseActive(ctx context.Context, communityID, actorID string, kind Kind, reason string) (bool, error) {
	var p Punishment
	err := s.db.WithContext(ctx).
		Where("community_id = ? AND actor_id = ? AND kind = ? AND state = ?", communityID, actorID, kind, StateActive).
		Order("id DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up active punishment: %w", err)
	}

	won, _, err := s.transition(ctx, p.ID, StateReversed)
	if err != nil {
		return false, err
	}
	s.disarm(p.ID)
	if !won {
		// lost a race with an expiry or another command; either way the
		// punishment is no longer active
		return true, nil
	}
	punishmentsReversed.Inc()
	s.notifier.Transition(ctx, audit.TransitionEntry{
		PunishmentID: p.ID,
		CommunityID:  p.CommunityID,
		ActorID:      p.ActorID,
		Kind:         string(p.Kind),
		FromState:    string(StateActive),
		ToState:      string(StateReversed),
		Reason:       reason,
		At:           time.Now(),
	})
	s.reverseWithRetry(ctx, &p)
	return true, nil
}

// Get loads one punishment row.
func (s *Scheduler) Get(ctx context.Context, id uint) (*Punishment, error) {
	var p Punishment
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Shutdown stops all armed timers. Pending expiries are picked up by the
// next process's recovery scan.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// transition performs the conditional Active -> to update. Returns whether
// this caller won the transition, and the row as read before the update.
func (s *Scheduler) transition(ctx context.Context, id uint, to State) (bool, *Punishment, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, nil, err
	}
	// note: reversed_at is deliberately not touched here. It records the
	// platform's acknowledgement, written by reverseWithRetry on success,
	// regardless of which state the row ended up in.
	updates := map[string]any{"state": to, "updated_at": time.Now()}
	res := s.db.WithContext(ctx).Model(&Punishment{}).
		Where("id = ? AND state = ?", id, StateActive).
		Updates(updates)
	if res.Error != nil {
		return false, nil, fmt.Errorf("updating punishment state: %w", res.Error)
	}
	return res.RowsAffected == 1, p, nil
}

func (s *Scheduler) arm(id uint, d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(d, func() {
		s.disarm(id)
		s.fire(id)
	})
}

func (s *Scheduler) disarm(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// fire handles one expiry: conditionally transition to Expired, and only the
// transition winner invokes the platform reversal.
func (s *Scheduler) fire(id uint) {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	won, p, err := s.transition(ctx, id, StateExpired)
	if err != nil {
		s.logger.Error("punishment expiry transition failed", "punishment", id, "err", err)
		// storage hiccup: the row is still Active, retry shortly
		if !errors.Is(err, ErrNotFound) {
			s.arm(id, reversalRetryDelay)
		}
		return
	}
	if !won {
		// a cancellation, manual reversal, or concurrent recovery got here
		// first
		return
	}
	punishmentsExpired.WithLabelValues(string(p.Kind)).Inc()
	s.notifier.Transition(ctx, audit.TransitionEntry{
		PunishmentID: p.ID,
		CommunityID:  p.CommunityID,
		ActorID:      p.ActorID,
		Kind:         string(p.Kind),
		FromState:    string(StateActive),
		ToState:      string(StateExpired),
		Reason:       "expired",
		At:           time.Now(),
	})
	s.reverseWithRetry(ctx, p)
}

// reverseWithRetry applies the platform-level reversal, retrying with a
// bounded backoff and recording the acknowledgement timestamp on success.
// The punishment's state is already terminal; only reversed_at is updated.
func (s *Scheduler) reverseWithRetry(ctx context.Context, p *Punishment) {
	var err error
	for attempt := 0; attempt < reversalRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * reversalAttemptBackoff):
			case <-ctx.Done():
				return
			}
		}
		err = s.actions.ReversePunishment(ctx, p.CommunityID, p.ActorID, string(p.Kind))
		if err == nil {
			now := time.Now()
			if uerr := s.db.WithContext(ctx).Model(&Punishment{}).
				Where("id = ?", p.ID).
				Update("reversed_at", &now).Error; uerr != nil {
				s.logger.Error("recording reversal ack failed", "punishment", p.ID, "err", uerr)
			}
			return
		}
		s.logger.Warn("punishment reversal attempt failed", "punishment", p.ID, "attempt", attempt+1, "err", err)
	}
	// give up for now; retry from a fresh timer so the reversal is not lost
	s.logger.Error("punishment reversal unacknowledged, will retry", "punishment", p.ID, "err", err)
	reversalRetries.Inc()
	s.mu.Lock()
	id := p.ID
	if old, ok := s.timers[id]; ok {
		old.Stop()
	}
	s.timers[id] = time.AfterFunc(reversalRetryDelay, func() {
		s.disarm(id)
		rctx, rcancel := context.WithTimeout(context.Background(), storageTimeout)
		defer rcancel()
		fresh, err := s.Get(rctx, id)
		if err != nil {
			s.logger.Error("loading punishment for reversal retry", "punishment", id, "err", err)
			return
		}
		if fresh.ReversedAt != nil || fresh.State == StateCancelled {
			return
		}
		s.reverseWithRetry(rctx, fresh)
	})
	s.mu.Unlock()
}
