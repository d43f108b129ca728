package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/noah-isme/bmc-canvas-api/internal/models"
)

// BoltBuckets lists the top level buckets of the embedded store. Submissions live in one
// nested bucket per session, keyed by submission id.
var BoltBuckets = map[string][]byte{
	"sessions":    []byte("Sessions"),
	"submissions": []byte("Submissions"),
	"meta":        []byte("Meta"),
}

var boltActiveKey = []byte("active")

// NewBoltStore bundles the bbolt backed repositories. The buckets must already exist,
// see database.OpenBolt.
func NewBoltStore(db *bbolt.DB) Store {
	return Store{
		Driver:      "bolt",
		Submissions: &boltSubmissionRepository{db: db},
		Sessions:    &boltSessionRepository{db: db},
		Ping: func(ctx context.Context) error {
			return db.View(func(tx *bbolt.Tx) error {
				if tx.Bucket(BoltBuckets["sessions"]) == nil {
					return fmt.Errorf("bolt bucket %s missing", BoltBuckets["sessions"])
				}
				return nil
			})
		},
	}
}

type boltSubmissionRepository struct {
	db *bbolt.DB
}

func (r *boltSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(BoltBuckets["submissions"]).CreateBucketIfNotExists([]byte(submission.SessionID))
		if err != nil {
			return err
		}
		if b.Get([]byte(submission.ID)) != nil {
			return nil
		}
		return b.Put([]byte(submission.ID), payload)
	})
}

func (r *boltSubmissionRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Submission, error) {
	submissions := []models.Submission{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := sessionSubmissions(tx, sessionID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var submission models.Submission
			if err := json.Unmarshal(v, &submission); err != nil {
				return fmt.Errorf("decode submission: %w", err)
			}
			submissions = append(submissions, submission)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	models.SortLeaderboard(submissions)
	return submissions, nil
}

func (r *boltSubmissionRepository) DeleteByID(ctx context.Context, sessionID, id string) (int64, error) {
	var removed int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := sessionSubmissions(tx, sessionID)
		if b == nil || b.Get([]byte(id)) == nil {
			return nil
		}
		removed = 1
		return b.Delete([]byte(id))
	})
	return removed, err
}

func (r *boltSubmissionRepository) DeleteBySubmittedAt(ctx context.Context, sessionID string, at int64) (int64, error) {
	var removed int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := sessionSubmissions(tx, sessionID)
		if b == nil {
			return nil
		}

		var candidates []models.Submission
		err := b.ForEach(func(_, v []byte) error {
			var submission models.Submission
			if err := json.Unmarshal(v, &submission); err != nil {
				return fmt.Errorf("decode submission: %w", err)
			}
			if submission.SubmittedAt == at {
				candidates = append(candidates, submission)
			}
			return nil
		})
		if err != nil {
			return err
		}

		target := oldestAt(candidates, at)
		if target == nil {
			return nil
		}
		removed = 1
		return b.Delete([]byte(target.ID))
	})
	return removed, err
}

func (r *boltSubmissionRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	var removed int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		var err error
		removed, err = dropSessionSubmissions(tx, sessionID)
		return err
	})
	return removed, err
}

func (r *boltSubmissionRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.View(func(tx *bbolt.Tx) error {
		if b := sessionSubmissions(tx, sessionID); b != nil {
			count = countKeys(b)
		}
		return nil
	})
	return count, err
}

func sessionSubmissions(tx *bbolt.Tx, sessionID string) *bbolt.Bucket {
	return tx.Bucket(BoltBuckets["submissions"]).Bucket([]byte(sessionID))
}

func dropSessionSubmissions(tx *bbolt.Tx, sessionID string) (int64, error) {
	b := sessionSubmissions(tx, sessionID)
	if b == nil {
		return 0, nil
	}
	count := countKeys(b)
	if err := tx.Bucket(BoltBuckets["submissions"]).DeleteBucket([]byte(sessionID)); err != nil {
		return 0, err
	}
	return count, nil
}

func countKeys(b *bbolt.Bucket) int64 {
	var n int64
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

type boltSessionRepository struct {
	db *bbolt.DB
}

func (r *boltSessionRepository) Create(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BoltBuckets["sessions"]).Put([]byte(session.ID), payload)
	})
}

func (r *boltSessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	var session models.Session
	err := r.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(BoltBuckets["sessions"]).Get([]byte(id))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &session)
	})
	return session, err
}

func (r *boltSessionRepository) List(ctx context.Context) ([]models.Session, error) {
	sessions := []models.Session{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(BoltBuckets["sessions"]).ForEach(func(_, v []byte) error {
			var session models.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			sessions = append(sessions, session)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortSessions(sessions)
	return sessions, nil
}

func (r *boltSessionRepository) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(BoltBuckets["sessions"])
		if sessions.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		if _, err := dropSessionSubmissions(tx, id); err != nil {
			return err
		}
		if err := sessions.Delete([]byte(id)); err != nil {
			return err
		}

		meta := tx.Bucket(BoltBuckets["meta"])
		if string(meta.Get(boltActiveKey)) == id {
			return meta.Delete(boltActiveKey)
		}
		return nil
	})
}

func (r *boltSessionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.View(func(tx *bbolt.Tx) error {
		count = countKeys(tx.Bucket(BoltBuckets["sessions"]))
		return nil
	})
	return count, err
}

func (r *boltSessionRepository) ActiveID(ctx context.Context) (string, error) {
	var id string
	err := r.db.View(func(tx *bbolt.Tx) error {
		id = string(tx.Bucket(BoltBuckets["meta"]).Get(boltActiveKey))
		return nil
	})
	return id, err
}

func (r *boltSessionRepository) SetActiveID(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(BoltBuckets["sessions"]).Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return tx.Bucket(BoltBuckets["meta"]).Put(boltActiveKey, []byte(id))
	})
}
