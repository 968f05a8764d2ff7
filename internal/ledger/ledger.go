package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OldStager01/predictive-autoscaler/internal/logger"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var (
	ErrOutOfOrder       = errors.New("decision is older than the last ledger entry")
	ErrNotFound         = errors.New("decision not found")
	ErrAlreadyFinalized = errors.New("decision already finalized")
	ErrInvalidOutcome   = errors.New("outcome must be success or failure")
	ErrDuplicateID      = errors.New("decision id already recorded")
)

// Store persists ledger entries. Errors returned by a Store are logged by the
// ledger and never fail Record or Finalize.
type Store interface {
	Save(ctx context.Context, d models.ScalingDecision) error
	Update(ctx context.Context, d models.ScalingDecision) error
	Load(ctx context.Context) ([]models.ScalingDecision, error)
	Close() error
}

type Config struct {
	FleetID      string
	Store        Store
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Stats summarizes ledger contents.
type Stats struct {
	Total        int                          `json:"total"`
	Pending      int                          `json:"pending"`
	Successes    int                          `json:"successes"`
	Failures     int                          `json:"failures"`
	ByAction     map[models.ScalingAction]int `json:"by_action"`
	FailureRatio float64                      `json:"failure_ratio"`
}

// Ledger is an append-only, timestamp-ordered record of scaling decisions.
// The control loop is its only writer; readers receive copies.
type Ledger struct {
	config  Config
	mu      sync.RWMutex
	entries []models.ScalingDecision
	index   map[string]int
}

// New builds a ledger and reloads whatever the store already holds. A store
// that fails to load leaves the ledger empty.
func New(ctx context.Context, cfg Config) *Ledger {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Ledger{
		config: cfg,
		index:  make(map[string]int),
	}

	loadCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()

	persisted, err := cfg.Store.Load(loadCtx)
	if err != nil {
		logger.WithFleet(cfg.FleetID).Warnf("Failed to reload decision ledger: %v", err)
		return l
	}

	slices.SortStableFunc(persisted, func(a, b models.ScalingDecision) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	var abandoned []models.ScalingDecision
	for _, d := range persisted {
		if _, dup := l.index[d.ID]; dup || d.ID == "" {
			continue
		}
		if !d.Outcome.IsFinal() {
			abandon(&d, cfg.Now())
			abandoned = append(abandoned, d)
		}
		l.index[d.ID] = len(l.entries)
		l.entries = append(l.entries, d)
	}
	if len(l.entries) > 0 {
		logger.WithFleet(cfg.FleetID).Infof("Reloaded %d decisions into ledger", len(l.entries))
	}
	if len(abandoned) > 0 {
		logger.WithFleet(cfg.FleetID).Warnf("Marked %d decisions left pending by a previous run as failed", len(abandoned))
	}
	for _, d := range abandoned {
		l.persist(ctx, "update", d, cfg.Store.Update)
	}
	return l
}

// AbandonedReason is the error text recorded on decisions that were still
// pending when the previous process stopped. Nothing can finalize them after
// a restart.
const AbandonedReason = "abandoned: process restarted"

func abandon(d *models.ScalingDecision, now time.Time) {
	d.Outcome = models.OutcomeFailure
	d.Error = AbandonedReason
	d.FinalizedAt = &now
}

// Record appends d with a pending outcome, assigning an ID when d has none.
func (l *Ledger) Record(ctx context.Context, d *models.ScalingDecision) error {
	l.mu.Lock()
	if n := len(l.entries); n > 0 && d.Timestamp.Before(l.entries[n-1].Timestamp) {
		last := l.entries[n-1].Timestamp
		l.mu.Unlock()
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			d.Timestamp.Format(time.RFC3339), last.Format(time.RFC3339))
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if _, exists := l.index[d.ID]; exists {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, d.ID)
	}

	d.Outcome = models.OutcomePending
	d.Error = ""
	d.FinalizedAt = nil

	l.index[d.ID] = len(l.entries)
	l.entries = append(l.entries, *d)
	entry := *d
	l.mu.Unlock()

	l.persist(ctx, "save", entry, l.config.Store.Save)
	return nil
}

// Finalize records the outcome of a pending decision. It may be called once
// per decision.
func (l *Ledger) Finalize(ctx context.Context, id string, outcome models.Outcome, errMsg string) error {
	if !outcome.IsFinal() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}

	l.mu.Lock()
	pos, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	entry := &l.entries[pos]
	if entry.Outcome.IsFinal() {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrAlreadyFinalized, id, entry.Outcome)
	}

	now := l.config.Now()
	entry.Outcome = outcome
	entry.Error = errMsg
	entry.FinalizedAt = &now
	updated := cloneDecision(*entry)
	l.mu.Unlock()

	l.persist(ctx, "update", updated, l.config.Store.Update)
	return nil
}

func (l *Ledger) persist(ctx context.Context, op string, d models.ScalingDecision, fn func(context.Context, models.ScalingDecision) error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.config.StoreTimeout)
	defer cancel()

	if err := fn(sctx, d); err != nil {
		logger.WithFleet(l.config.FleetID).Warnf("Ledger store %s failed for decision %s: %v", op, d.ID, err)
	}
}

func (l *Ledger) Get(id string) (models.ScalingDecision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.index[id]
	if !ok {
		return models.ScalingDecision{}, false
	}
	return cloneDecision(l.entries[pos]), true
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a deep copy of every entry, oldest first.
func (l *Ledger) Snapshot() []models.ScalingDecision {
	return l.Since(0)
}

// Since returns copies of the entries at positions >= from.
func (l *Ledger) Since(from int) []models.ScalingDecision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	from = max(from, 0)
	if from >= len(l.entries) {
		return nil
	}
	out := make([]models.ScalingDecision, 0, len(l.entries)-from)
	for _, d := range l.entries[from:] {
		out = append(out, cloneDecision(d))
	}
	return out
}

// Recent returns up to n of the newest entries, oldest first.
func (l *Ledger) Recent(n int) []models.ScalingDecision {
	if n <= 0 {
		return nil
	}
	l.mu.RLock()
	from := len(l.entries) - n
	l.mu.RUnlock()
	return l.Since(from)
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := Stats{
		Total:    len(l.entries),
		ByAction: make(map[models.ScalingAction]int),
	}
	var actionableFinal, actionableFailed int
	for _, d := range l.entries {
		stats.ByAction[d.Action]++
		switch d.Outcome {
		case models.OutcomePending:
			stats.Pending++
		case models.OutcomeSuccess:
			stats.Successes++
		case models.OutcomeFailure:
			stats.Failures++
		}
		if d.IsActionable() && d.Outcome.IsFinal() {
			actionableFinal++
			if d.Outcome == models.OutcomeFailure {
				actionableFailed++
			}
		}
	}
	if actionableFinal > 0 {
		stats.FailureRatio = float64(actionableFailed) / float64(actionableFinal)
	}
	return stats
}

func (l *Ledger) Close() error {
	return l.config.Store.Close()
}

func cloneDecision(d models.ScalingDecision) models.ScalingDecision {
	if d.FinalizedAt != nil {
		t := *d.FinalizedAt
		d.FinalizedAt = &t
	}
	return d
}
