package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func decisionAt(offset time.Duration, action models.ScalingAction) *models.ScalingDecision {
	return &models.ScalingDecision{
		Timestamp:        t0.Add(offset),
		CurrentLoad:      50,
		PredictedLoad:    85,
		Confidence:       0.9,
		CurrentInstances: 4,
		Action:           action,
		TargetInstances:  8,
		Reason:           "predicted load",
		Rule:             models.RulePredictiveScaleUp,
	}
}

func newTestLedger(t *testing.T, store Store) *Ledger {
	t.Helper()
	return New(context.Background(), Config{
		FleetID: "fleet-1",
		Store:   store,
		Now:     func() time.Time { return t0.Add(time.Hour) },
	})
}

func TestLedger_Record(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	d := decisionAt(0, models.ActionScaleUp)
	d.Outcome = models.OutcomeSuccess
	require.NoError(t, l.Record(ctx, d))

	assert.NotEmpty(t, d.ID)
	assert.Equal(t, models.OutcomePending, d.Outcome)
	assert.Equal(t, 1, l.Len())

	got, ok := l.Get(d.ID)
	require.True(t, ok)
	assert.Equal(t, *d, got)
}

func TestLedger_Record_KeepsProvidedID(t *testing.T) {
	l := newTestLedger(t, nil)

	d := decisionAt(0, models.ActionNone)
	d.ID = "fixed"
	require.NoError(t, l.Record(context.Background(), d))
	assert.Equal(t, "fixed", d.ID)

	again := decisionAt(time.Minute, models.ActionNone)
	again.ID = "fixed"
	assert.ErrorIs(t, l.Record(context.Background(), again), ErrDuplicateID)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_Record_OutOfOrder(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, decisionAt(time.Minute, models.ActionNone)))
	require.NoError(t, l.Record(ctx, decisionAt(time.Minute, models.ActionNone)), "equal timestamps are allowed")

	err := l.Record(ctx, decisionAt(0, models.ActionNone))
	assert.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, 2, l.Len())
}

func TestLedger_Finalize(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(l *Ledger) string
		outcome models.Outcome
		wantErr error
	}{
		{
			name: "success",
			setup: func(l *Ledger) string {
				d := decisionAt(0, models.ActionScaleUp)
				require.NoError(t, l.Record(ctx, d))
				return d.ID
			},
			outcome: models.OutcomeSuccess,
		},
		{
			name:    "unknown id",
			setup:   func(*Ledger) string { return "missing" },
			outcome: models.OutcomeFailure,
			wantErr: ErrNotFound,
		},
		{
			name: "pending is not an outcome",
			setup: func(l *Ledger) string {
				d := decisionAt(0, models.ActionScaleUp)
				require.NoError(t, l.Record(ctx, d))
				return d.ID
			},
			outcome: models.OutcomePending,
			wantErr: ErrInvalidOutcome,
		},
		{
			name: "twice",
			setup: func(l *Ledger) string {
				d := decisionAt(0, models.ActionScaleUp)
				require.NoError(t, l.Record(ctx, d))
				require.NoError(t, l.Finalize(ctx, d.ID, models.OutcomeSuccess, ""))
				return d.ID
			},
			outcome: models.OutcomeFailure,
			wantErr: ErrAlreadyFinalized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t, nil)
			id := tt.setup(l)

			err := l.Finalize(ctx, id, tt.outcome, "")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, ok := l.Get(id)
			require.True(t, ok)
			assert.Equal(t, tt.outcome, got.Outcome)
			require.NotNil(t, got.FinalizedAt)
			assert.Equal(t, t0.Add(time.Hour), *got.FinalizedAt)
		})
	}
}

func TestLedger_Finalize_KeepsFirstOutcome(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	d := decisionAt(0, models.ActionScaleDown)
	require.NoError(t, l.Record(ctx, d))
	require.NoError(t, l.Finalize(ctx, d.ID, models.OutcomeFailure, "fleet rejected"))
	require.Error(t, l.Finalize(ctx, d.ID, models.OutcomeSuccess, ""))

	got, _ := l.Get(d.ID)
	assert.Equal(t, models.OutcomeFailure, got.Outcome)
	assert.Equal(t, "fleet rejected", got.Error)
}

func TestLedger_SnapshotIsDeepCopy(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	d := decisionAt(0, models.ActionScaleUp)
	require.NoError(t, l.Record(ctx, d))
	require.NoError(t, l.Finalize(ctx, d.ID, models.OutcomeSuccess, ""))

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Reason = "mutated"
	*snap[0].FinalizedAt = time.Time{}

	got, _ := l.Get(d.ID)
	assert.Equal(t, "predicted load", got.Reason)
	assert.Equal(t, t0.Add(time.Hour), *got.FinalizedAt)
}

func TestLedger_RecentAndSince(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	var ids []string
	for i := range 5 {
		d := decisionAt(time.Duration(i)*time.Minute, models.ActionNone)
		require.NoError(t, l.Record(ctx, d))
		ids = append(ids, d.ID)
	}

	recent := l.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[3], recent[0].ID)
	assert.Equal(t, ids[4], recent[1].ID)

	assert.Len(t, l.Recent(10), 5)
	assert.Nil(t, l.Recent(0))
	assert.Len(t, l.Since(3), 2)
	assert.Nil(t, l.Since(5))
}

func TestLedger_Stats(t *testing.T) {
	l := newTestLedger(t, nil)
	ctx := context.Background()

	record := func(offset time.Duration, action models.ScalingAction, outcome models.Outcome) {
		d := decisionAt(offset, action)
		require.NoError(t, l.Record(ctx, d))
		if outcome != models.OutcomePending {
			require.NoError(t, l.Finalize(ctx, d.ID, outcome, ""))
		}
	}
	record(0, models.ActionNone, models.OutcomeSuccess)
	record(time.Minute, models.ActionScaleUp, models.OutcomeSuccess)
	record(2*time.Minute, models.ActionScaleUp, models.OutcomeFailure)
	record(3*time.Minute, models.ActionScaleDown, models.OutcomeFailure)
	record(4*time.Minute, models.ActionScaleDown, models.OutcomePending)

	stats := l.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 2, stats.Successes)
	assert.Equal(t, 2, stats.Failures)
	assert.Equal(t, 2, stats.ByAction[models.ActionScaleUp])
	assert.InDelta(t, 2.0/3.0, stats.FailureRatio, 1e-9)
}

type failingStore struct {
	*MemoryStore
}

func (s *failingStore) Save(context.Context, models.ScalingDecision) error {
	return errors.New("disk full")
}

func (s *failingStore) Load(context.Context) ([]models.ScalingDecision, error) {
	return nil, errors.New("corrupt")
}

func TestLedger_StoreErrorsAreNotFatal(t *testing.T) {
	l := newTestLedger(t, &failingStore{MemoryStore: NewMemoryStore()})

	d := decisionAt(0, models.ActionScaleUp)
	require.NoError(t, l.Record(context.Background(), d))
	assert.Equal(t, 1, l.Len())
}

func TestLedger_ReloadsFromStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := newTestLedger(t, store)
	a := decisionAt(0, models.ActionScaleUp)
	b := decisionAt(time.Minute, models.ActionNone)
	require.NoError(t, first.Record(ctx, a))
	require.NoError(t, first.Record(ctx, b))
	require.NoError(t, first.Finalize(ctx, a.ID, models.OutcomeSuccess, ""))

	second := newTestLedger(t, store)
	require.Equal(t, 2, second.Len())

	got, ok := second.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, models.OutcomeSuccess, got.Outcome)

	got, ok = second.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, models.OutcomeFailure, got.Outcome)
	assert.Equal(t, AbandonedReason, got.Error)

	assert.ErrorIs(t, second.Record(ctx, decisionAt(-time.Minute, models.ActionNone)), ErrOutOfOrder)
}

func TestLedger_ReloadFailsLeftoverPendingEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	leftover := decisionAt(0, models.ActionScaleUp)
	leftover.ID = "left-pending"
	leftover.Outcome = models.OutcomePending
	require.NoError(t, store.Save(ctx, *leftover))

	l := newTestLedger(t, store)

	got, ok := l.Get("left-pending")
	require.True(t, ok)
	assert.Equal(t, models.OutcomeFailure, got.Outcome)
	assert.Equal(t, AbandonedReason, got.Error)
	require.NotNil(t, got.FinalizedAt)
	assert.Equal(t, t0.Add(time.Hour), *got.FinalizedAt)
	assert.Zero(t, l.Stats().Pending)
	assert.ErrorIs(t, l.Finalize(ctx, "left-pending", models.OutcomeSuccess, ""), ErrAlreadyFinalized)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, models.OutcomeFailure, persisted[0].Outcome)
	assert.Equal(t, AbandonedReason, persisted[0].Error)
}

func TestBoltStore_RoundTripInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "decisions.db")
	store, err := NewBoltStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	l := newTestLedger(t, store)

	later := decisionAt(90*time.Second, models.ActionScaleDown)
	earlier := decisionAt(500*time.Millisecond, models.ActionScaleUp)
	require.NoError(t, l.Record(ctx, earlier))
	require.NoError(t, l.Record(ctx, later))
	require.NoError(t, l.Finalize(ctx, later.ID, models.OutcomeFailure, "timeout"))
	require.NoError(t, l.Close())

	reopened, err := NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, earlier.ID, loaded[0].ID)
	assert.Equal(t, later.ID, loaded[1].ID)
	assert.Equal(t, models.OutcomeFailure, loaded[1].Outcome)
	assert.Equal(t, "timeout", loaded[1].Error)
	assert.True(t, earlier.Timestamp.Equal(loaded[0].Timestamp))
}

func TestBoltStore_UpdateMissing(t *testing.T) {
	store, err := NewBoltStore(filepath.Join(t.TempDir(), "decisions.db"))
	require.NoError(t, err)
	defer store.Close()

	err = store.Update(context.Background(), *decisionAt(0, models.ActionNone))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.Update(context.Background(), *decisionAt(0, models.ActionNone)), ErrNotFound)
}
