package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/OldStager01/predictive-autoscaler/pkg/models"
)

var bucketDecisions = []byte("decisions")

// keyLayout sorts lexically in time order, unlike RFC3339Nano which trims
// trailing zeros.
const keyLayout = "2006-01-02T15:04:05.000000000Z07:00"

// BoltStore persists decisions in an embedded bbolt file. Keys are the UTC
// timestamp followed by the decision ID so a cursor walk yields ledger order.
type BoltStore struct {
	db *bolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDecisions); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketDecisions, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func decisionKey(d models.ScalingDecision) []byte {
	return []byte(d.Timestamp.UTC().Format(keyLayout) + "/" + d.ID)
}

func (s *BoltStore) Save(_ context.Context, d models.ScalingDecision) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDecisions).Put(decisionKey(d), data)
	})
}

func (s *BoltStore) Update(_ context.Context, d models.ScalingDecision) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDecisions)
		key := decisionKey(d)
		if b.Get(key) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, d.ID)
		}
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *BoltStore) Load(_ context.Context) ([]models.ScalingDecision, error) {
	var decisions []models.ScalingDecision
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDecisions).ForEach(func(k, v []byte) error {
			var d models.ScalingDecision
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			decisions = append(decisions, d)
			return nil
		})
	})
	return decisions, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
