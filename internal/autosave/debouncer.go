// Package autosave persists game states in the background after the detective stops typing.
package autosave

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/myrjola/noir/internal/errors"
	"github.com/myrjola/noir/internal/models"
)

const (
	DefaultDelay = time.Second
	saveTimeout  = 10 * time.Second
)

// Saver persists a state for a user, see repositories.CaseRepository.
type Saver interface {
	Save(ctx context.Context, userID []byte, state models.GameState) (models.GameState, error)
}

type entry struct {
	// saveMu serialises saves of one case. The latest state is read under Debouncer.mu only after acquiring it,
	// so an older state is never written after a newer one.
	saveMu sync.Mutex
	userID []byte
	state  models.GameState
	dirty  bool
	timer  *time.Timer
}

// entryKey identifies the pending save of one user's case. Another user scheduling the same case id never touches
// the owner's pending state.
func entryKey(userID []byte, caseID string) string {
	return hex.EncodeToString(userID) + "/" + caseID
}

// Debouncer delays saves of a case until no newer state has been scheduled for a while.
type Debouncer struct {
	saver    Saver
	delay    time.Duration
	logger   *slog.Logger
	mu       sync.Mutex
	entries  map[string]*entry
	stopped  bool
	inflight sync.WaitGroup
}

func NewDebouncer(saver Saver, delay time.Duration, logger *slog.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		saver:   saver,
		delay:   delay,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Schedule replaces the pending state of the case and restarts its timer. States without a case id are ignored
// because they have to be created synchronously to learn the id.
func (d *Debouncer) Schedule(userID []byte, state models.GameState) {
	if state.CaseID == "" || len(userID) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.logger.LogAttrs(context.Background(), slog.LevelWarn, "autosave stopped, dropping state",
			slog.String("case_id", state.CaseID))
		return
	}
	e := d.pendingEntry(userID, state)
	if e.timer != nil {
		e.timer.Stop()
	}
	key := entryKey(userID, state.CaseID)
	e.timer = time.AfterFunc(d.delay, func() { d.fire(key) })
}

// pendingEntry records state as the latest one for the user's case. d.mu must be held.
func (d *Debouncer) pendingEntry(userID []byte, state models.GameState) *entry {
	key := entryKey(userID, state.CaseID)
	e, ok := d.entries[key]
	if !ok {
		e = &entry{} //nolint:exhaustruct // filled below
		d.entries[key] = e
	}
	e.userID = userID
	e.state = state
	e.dirty = true
	return e
}

func (d *Debouncer) fire(key string) {
	d.mu.Lock()
	e, ok := d.entries[key]
	if d.stopped || !ok {
		d.mu.Unlock()
		return
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := d.save(ctx, key, e); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelError, "autosave failed", errors.SlogError(err))
	}
}

func (d *Debouncer) save(ctx context.Context, key string, e *entry) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	d.mu.Lock()
	if !e.dirty {
		d.mu.Unlock()
		return nil
	}
	userID, state := e.userID, e.state
	caseID := state.CaseID
	e.dirty = false
	d.mu.Unlock()

	_, err := d.saver.Save(ctx, userID, state)

	d.mu.Lock()
	// Entries are forgotten only when nothing newer arrived during the save.
	if !e.dirty && d.entries[key] == e {
		delete(d.entries, key)
	}
	d.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "save case", slog.String("case_id", caseID),
			slog.String("user_id", hex.EncodeToString(userID)))
	}
	d.logger.LogAttrs(ctx, slog.LevelDebug, "autosaved case", slog.String("case_id", caseID))
	return nil
}

// Flush saves state immediately and cancels its pending timer. New cases are created synchronously.
func (d *Debouncer) Flush(ctx context.Context, userID []byte, state models.GameState) (models.GameState, error) {
	if state.CaseID == "" {
		saved, err := d.saver.Save(ctx, userID, state)
		if err != nil {
			return state, errors.Wrap(err, "create case")
		}
		return saved, nil
	}
	if len(userID) == 0 {
		return state, nil
	}

	d.mu.Lock()
	e := d.pendingEntry(userID, state)
	if e.timer != nil {
		e.timer.Stop()
	}
	d.mu.Unlock()

	return state, d.save(ctx, entryKey(userID, state.CaseID), e)
}

// Stop cancels all timers and saves the pending states. Later schedules are dropped.
func (d *Debouncer) Stop(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	pending := make(map[string]*entry, len(d.entries))
	for key, e := range d.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		pending[key] = e
	}
	d.mu.Unlock()

	d.inflight.Wait()

	var errs []error
	for key, e := range pending {
		errs = append(errs, d.save(ctx, key, e))
	}
	return errors.Join(errs...)
}
