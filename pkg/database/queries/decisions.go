package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type DecisionRepository struct {
	db      *sql.DB
	fleetID string
}

func NewDecisionRepository(db *sql.DB, fleetID string) *DecisionRepository {
	return &DecisionRepository{db: db, fleetID: fleetID}
}

func (r *DecisionRepository) Insert(ctx context.Context, d models.ScalingDecision) error {
	query := `
		INSERT INTO scaling_decisions
			(id, fleet_id, timestamp, current_load, predicted_load, confidence,
			 current_instances, action, target_instances, reason, rule, outcome, error, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), $14)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, r.fleetID, d.Timestamp, d.CurrentLoad, d.PredictedLoad, d.Confidence,
		d.CurrentInstances, string(d.Action), d.TargetInstances, d.Reason, string(d.Rule),
		string(d.Outcome), d.Error, d.FinalizedAt,
	)
	return err
}

func (r *DecisionRepository) Finalize(ctx context.Context, d models.ScalingDecision) error {
	query := `
		UPDATE scaling_decisions
		SET outcome = $2, error = NULLIF($3, ''), finalized_at = $4
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, d.ID, string(d.Outcome), d.Error, d.FinalizedAt)
	return err
}

// List returns the fleet's decisions oldest first.
func (r *DecisionRepository) List(ctx context.Context, limit int) ([]models.ScalingDecision, error) {
	if limit <= 0 {
		limit = 10000
	}

	query := `
		SELECT id, timestamp, current_load, predicted_load, confidence, current_instances,
			   action, target_instances, reason, rule, outcome, COALESCE(error, ''), finalized_at
		FROM (
			SELECT * FROM scaling_decisions
			WHERE fleet_id = $1
			ORDER BY timestamp DESC
			LIMIT $2
		) recent
		ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, r.fleetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []models.ScalingDecision
	for rows.Next() {
		var d models.ScalingDecision
		var action, rule, outcome string
		var finalizedAt sql.NullTime
		err := rows.Scan(
			&d.ID, &d.Timestamp, &d.CurrentLoad, &d.PredictedLoad, &d.Confidence,
			&d.CurrentInstances, &action, &d.TargetInstances, &d.Reason, &rule,
			&outcome, &d.Error, &finalizedAt,
		)
		if err != nil {
			return nil, err
		}
		d.Action = models.ScalingAction(action)
		d.Rule = models.DecisionRule(rule)
		d.Outcome = models.Outcome(outcome)
		if finalizedAt.Valid {
			t := finalizedAt.Time.In(time.UTC)
			d.FinalizedAt = &t
		}
		decisions = append(decisions, d)
	}

	return decisions, rows.Err()
}
