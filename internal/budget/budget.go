// Package budget enforces a daily ceiling on external API calls. The count
// persists across runs in a small JSON state file and resets at UTC midnight.
package budget

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrExhausted is returned when a reservation would exceed the daily ceiling.
var ErrExhausted = eris.New("daily API call budget exhausted")

// warnFraction is the utilization level at which OnWarning fires.
const warnFraction = 0.9

// Reserver is the consumption interface handed to API clients.
type Reserver interface {
	// Reserve claims n calls against today's budget, or returns ErrExhausted
	// without claiming any.
	Reserve(n int) error
}

// state is the persisted shape of the tracker.
type state struct {
	CallsToday int    `json:"calls_today"`
	ResetDate  string `json:"reset_date"`
}

// Tracker counts external API calls against a per-day ceiling.
type Tracker struct {
	mu       sync.Mutex
	ceiling  int
	path     string
	calls    int
	resetDay string
	warned   bool

	// OnWarning fires once per day when utilization crosses 90%.
	OnWarning func(used, ceiling int)

	nowFunc func() time.Time
}

// NewTracker loads or initializes budget state at path with the given
// daily ceiling.
func NewTracker(path string, ceiling int) (*Tracker, error) {
	t := &Tracker{
		ceiling: ceiling,
		path:    path,
		nowFunc: time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, eris.Wrap(err, "budget: read state")
		}
		t.resetDay = t.today()
		return t, nil
	}

	var s state
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt state file starts the day over rather than blocking runs.
		zap.L().Warn("budget state unreadable, resetting", zap.String("path", path), zap.Error(err))
		t.resetDay = t.today()
		return t, nil
	}

	t.calls = s.CallsToday
	t.resetDay = s.ResetDate
	t.rollIfNewDayLocked()
	return t, nil
}

// Reserve claims n calls against today's budget. The claim is all-or-nothing
// and persisted before returning.
func (t *Tracker) Reserve(n int) error {
	if n <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollIfNewDayLocked()

	if t.calls+n > t.ceiling {
		return ErrExhausted
	}
	t.calls += n

	if !t.warned && float64(t.calls) >= warnFraction*float64(t.ceiling) {
		t.warned = true
		if t.OnWarning != nil {
			t.OnWarning(t.calls, t.ceiling)
		}
	}

	return t.saveLocked()
}

// Reset zeroes today's counter and persists the cleared state.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = 0
	t.warned = false
	t.resetDay = t.today()
	return t.saveLocked()
}

// Used returns calls consumed so far today and the ceiling.
func (t *Tracker) Used() (used, ceiling int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollIfNewDayLocked()
	return t.calls, t.ceiling
}

// Remaining returns calls still available today.
func (t *Tracker) Remaining() int {
	used, ceiling := t.Used()
	return ceiling - used
}

func (t *Tracker) today() string {
	return t.nowFunc().UTC().Format("2006-01-02")
}

func (t *Tracker) rollIfNewDayLocked() {
	today := t.today()
	if t.resetDay != today {
		t.calls = 0
		t.resetDay = today
		t.warned = false
	}
}

func (t *Tracker) saveLocked() error {
	data, err := json.MarshalIndent(state{CallsToday: t.calls, ResetDate: t.resetDay}, "", "  ")
	if err != nil {
		return eris.Wrap(err, "budget: marshal state")
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return eris.Wrap(err, "budget: write state")
	}
	return nil
}
