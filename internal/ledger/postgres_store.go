package ledger

import (
	"context"

	"github.com/OldStager01/predictive-autoscaler/pkg/database"
	"github.com/OldStager01/predictive-autoscaler/pkg/database/queries"
	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

// PostgresStore persists decisions in the scaling_decisions table. The
// schema is created by the embedded migrations in pkg/database.
type PostgresStore struct {
	repo *queries.DecisionRepository
}

func NewPostgresStore(db *database.DB, fleetID string) *PostgresStore {
	return &PostgresStore{
		repo: queries.NewDecisionRepository(db.DB, fleetID),
	}
}

func (s *PostgresStore) Save(ctx context.Context, d models.ScalingDecision) error {
	return s.repo.Insert(ctx, d)
}

func (s *PostgresStore) Update(ctx context.Context, d models.ScalingDecision) error {
	return s.repo.Finalize(ctx, d)
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.ScalingDecision, error) {
	return s.repo.List(ctx, 0)
}

// Close leaves the shared connection pool open; its owner closes it.
func (s *PostgresStore) Close() error {
	return nil
}
