package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

type ScalingEventRepository struct {
	db *sql.DB
}

func NewScalingEventRepository(db *sql.DB) *ScalingEventRepository {
	return &ScalingEventRepository{db: db}
}

type ScalingStats struct {
	FleetID        string    `json:"fleet_id"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	ScaleUpCount   int       `json:"scale_up_count"`
	ScaleDownCount int       `json:"scale_down_count"`
	SuccessCount   int       `json:"success_count"`
	FailedCount    int       `json:"failed_count"`
}

// RecordScalingEvent satisfies events.ScalingEventRecorder.
func (r *ScalingEventRepository) RecordScalingEvent(ctx context.Context, event *models.ScalingEvent) error {
	query := `
		INSERT INTO scaling_events
			(decision_id, fleet_id, timestamp, action, instances_before, instances_after,
			 reason, predicted_load, confidence, outcome, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))`

	_, err := r.db.ExecContext(ctx, query,
		event.DecisionID,
		event.FleetID,
		event.Timestamp,
		string(event.Action),
		event.InstancesBefore,
		event.InstancesAfter,
		event.Reason,
		event.PredictedLoad,
		event.Confidence,
		string(event.Outcome),
		event.Error,
	)
	return err
}

func (r *ScalingEventRepository) GetRecent(ctx context.Context, fleetID string, limit int) ([]models.ScalingEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT decision_id, fleet_id, timestamp, action, instances_before, instances_after,
			   reason, predicted_load, confidence, outcome, COALESCE(error, '')
		FROM scaling_events
		WHERE fleet_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, fleetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ScalingEvent
	for rows.Next() {
		var e models.ScalingEvent
		var action, outcome string
		err := rows.Scan(
			&e.DecisionID, &e.FleetID, &e.Timestamp, &action,
			&e.InstancesBefore, &e.InstancesAfter, &e.Reason,
			&e.PredictedLoad, &e.Confidence, &outcome, &e.Error,
		)
		if err != nil {
			return nil, err
		}
		e.Action = models.ScalingAction(action)
		e.Outcome = models.Outcome(outcome)
		events = append(events, e)
	}

	return events, rows.Err()
}

func (r *ScalingEventRepository) GetStats(ctx context.Context, fleetID string, from, to time.Time) (*ScalingStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE action = 'scale_up') AS scale_up_count,
			COUNT(*) FILTER (WHERE action = 'scale_down') AS scale_down_count,
			COUNT(*) FILTER (WHERE outcome = 'success') AS success_count,
			COUNT(*) FILTER (WHERE outcome = 'failure') AS failed_count
		FROM scaling_events
		WHERE fleet_id = $1 AND timestamp >= $2 AND timestamp <= $3`

	var stats ScalingStats
	err := r.db.QueryRowContext(ctx, query, fleetID, from, to).Scan(
		&stats.ScaleUpCount, &stats.ScaleDownCount,
		&stats.SuccessCount, &stats.FailedCount,
	)
	if err != nil {
		return nil, err
	}

	stats.FleetID = fleetID
	stats.From = from
	stats.To = to

	return &stats, nil
}
