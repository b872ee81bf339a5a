package vault

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// AutoLock locks the session after a period with no observed user
// activity. The host delivers a single Activity() signal for any pointer,
// keyboard, scroll or touch event; the controller itself is host-agnostic.
//
// There is at most one pending timer: arming always cancels the previous
// one first, so timers can neither leak nor race each other.
type AutoLock struct {
	session *Session
	store   *RecordStore

	mu      sync.Mutex
	timeout time.Duration
	timer   *time.Timer
}

// NewAutoLock creates the controller with the persisted timeout setting.
func NewAutoLock(session *Session, store *RecordStore) *AutoLock {
	return &AutoLock{
		session: session,
		store:   store,
		timeout: time.Duration(store.AutoLockMinutes()) * time.Minute,
	}
}

// TimeoutMinutes returns the configured idle timeout. 0 means disabled.
func (a *AutoLock) TimeoutMinutes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.timeout / time.Minute)
}

// SetTimeoutMinutes persists the new timeout and re-arms the timer from
// zero. Setting 0 disables auto-lock and cancels any pending timer
// immediately.
func (a *AutoLock) SetTimeoutMinutes(minutes int) error {
	if err := a.store.SetAutoLockMinutes(minutes); err != nil {
		return err
	}

	a.mu.Lock()
	a.timeout = time.Duration(minutes) * time.Minute
	a.mu.Unlock()

	a.rearm()
	if minutes > 0 {
		log.Info().Int("minutes", minutes).Msg("Auto-lock timeout updated")
	} else {
		log.Info().Msg("Auto-lock disabled")
	}
	return nil
}

// Activity restarts the idle timer. A signal while the session is not
// unlocked, or with no wallet stored, is a no-op.
func (a *AutoLock) Activity() {
	a.rearm()
}

// Stop cancels any pending timer. Called on shutdown.
func (a *AutoLock) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
}

func (a *AutoLock) rearm() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cancelLocked()

	if a.timeout <= 0 {
		return
	}
	if a.session.State() != StateUnlocked {
		return
	}
	if !a.store.HasAny() {
		return
	}

	a.timer = time.AfterFunc(a.timeout, func() {
		log.Info().Msg("Idle timeout reached, locking wallet")
		a.session.Lock()
	})
}

func (a *AutoLock) cancelLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
