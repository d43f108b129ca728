package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/bmc-canvas-api/internal/models"
)

const (
	redisSessionOrderKey = "sessions:order"
	redisActiveKey       = "sessions:active"
)

func redisSessionKey(id string) string { return "session:" + id }
func redisEntriesKey(sid string) string { return "entries:" + sid }
func redisEntryKey(id string) string { return "entry:" + id }

// NewRedisStore bundles the redis backed repositories. Keys follow the hosted KV layout:
// session:{id} hashes ordered by the sessions:order zset, entry:{id} hashes indexed per
// session by the entries:{sid} zset scored by overall score.
func NewRedisStore(client *redis.Client) Store {
	return Store{
		Driver:      "redis",
		Submissions: &redisSubmissionRepository{client: client},
		Sessions:    &redisSessionRepository{client: client},
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

type redisSubmissionRepository struct {
	client *redis.Client
}

// Create writes the entry hash and its leaderboard index in one MULTI block. Every command only
// fills what is missing, so a retry after a partial write completes it instead of skipping it.
func (r *redisSubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}

	key := redisEntryKey(submission.ID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "data", payload)
		pipe.HSetNX(ctx, key, "sessionId", submission.SessionID)
		pipe.HSetNX(ctx, key, "submittedAt", submission.SubmittedAt)
		pipe.HSetNX(ctx, key, "overallScore", submission.OverallScore)
		pipe.ZAddNX(ctx, redisEntriesKey(submission.SessionID), redis.Z{
			Score:  submission.OverallScore,
			Member: submission.ID,
		})
		return nil
	})
	return err
}

func (r *redisSubmissionRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Submission, error) {
	ids, err := r.client.ZRange(ctx, redisEntriesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Submission{}, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, redisEntryKey(id), "data")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	submissions := make([]models.Submission, 0, len(ids))
	for _, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, err
		}
		var submission models.Submission
		if err := json.Unmarshal(raw, &submission); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		submissions = append(submissions, submission)
	}

	models.SortLeaderboard(submissions)
	return submissions, nil
}

func (r *redisSubmissionRepository) DeleteByID(ctx context.Context, sessionID, id string) (int64, error) {
	removed, err := r.client.ZRem(ctx, redisEntriesKey(sessionID), id).Result()
	if err != nil {
		return 0, err
	}
	if removed == 0 {
		return 0, nil
	}
	if err := r.client.Del(ctx, redisEntryKey(id)).Err(); err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *redisSubmissionRepository) DeleteBySubmittedAt(ctx context.Context, sessionID string, at int64) (int64, error) {
	submissions, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	target := oldestAt(submissions, at)
	if target == nil {
		return 0, nil
	}
	return r.DeleteByID(ctx, sessionID, target.ID)
}

func (r *redisSubmissionRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	return deleteRedisEntries(ctx, r.client, sessionID)
}

func (r *redisSubmissionRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	return r.client.ZCard(ctx, redisEntriesKey(sessionID)).Result()
}

func deleteRedisEntries(ctx context.Context, client *redis.Client, sessionID string) (int64, error) {
	ids, err := client.ZRange(ctx, redisEntriesKey(sessionID), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, redisEntryKey(id))
		}
		pipe.Del(ctx, redisEntriesKey(sessionID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

type redisSessionRepository struct {
	client *redis.Client
}

func (r *redisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisSessionKey(session.ID),
			"id", session.ID,
			"name", session.Name,
			"createdAt", session.CreatedAt,
			"displayOrder", session.DisplayOrder,
		)
		pipe.ZAdd(ctx, redisSessionOrderKey, redis.Z{
			Score:  float64(session.DisplayOrder),
			Member: session.ID,
		})
		return nil
	})
	return err
}

func (r *redisSessionRepository) GetByID(ctx context.Context, id string) (models.Session, error) {
	fields, err := r.client.HGetAll(ctx, redisSessionKey(id)).Result()
	if err != nil {
		return models.Session{}, err
	}
	if len(fields) == 0 {
		return models.Session{}, ErrNotFound
	}
	return sessionFromHash(id, fields), nil
}

func (r *redisSessionRepository) List(ctx context.Context) ([]models.Session, error) {
	ids, err := r.client.ZRevRange(ctx, redisSessionOrderKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, redisSessionKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		sessions = append(sessions, sessionFromHash(ids[i], fields))
	}

	sortSessions(sessions)
	return sessions, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	exists, err := r.client.Exists(ctx, redisSessionKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	if _, err := deleteRedisEntries(ctx, r.client, id); err != nil {
		return err
	}

	active, err := r.ActiveID(ctx)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionKey(id))
		pipe.ZRem(ctx, redisSessionOrderKey, id)
		if active == id {
			pipe.Del(ctx, redisActiveKey)
		}
		return nil
	})
	return err
}

func (r *redisSessionRepository) Count(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, redisSessionOrderKey).Result()
}

func (r *redisSessionRepository) ActiveID(ctx context.Context) (string, error) {
	id, err := r.client.Get(ctx, redisActiveKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

func (r *redisSessionRepository) SetActiveID(ctx context.Context, id string) error {
	exists, err := r.client.Exists(ctx, redisSessionKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return r.client.Set(ctx, redisActiveKey, id, 0).Err()
}

func sessionFromHash(id string, fields map[string]string) models.Session {
	session := models.Session{ID: id, Name: fields["name"]}
	session.CreatedAt, _ = strconv.ParseInt(fields["createdAt"], 10, 64)
	session.DisplayOrder, _ = strconv.ParseInt(fields["displayOrder"], 10, 64)
	return session
}

func sortSessions(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].DisplayOrder != sessions[j].DisplayOrder {
			return sessions[i].DisplayOrder > sessions[j].DisplayOrder
		}
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})
}

// oldestAt picks the first stored submission carrying the given timestamp.
func oldestAt(submissions []models.Submission, at int64) *models.Submission {
	var target *models.Submission
	for i := range submissions {
		candidate := &submissions[i]
		if candidate.SubmittedAt != at {
			continue
		}
		if target == nil ||
			candidate.CreatedAt.Before(target.CreatedAt) ||
			(candidate.CreatedAt.Equal(target.CreatedAt) && candidate.ID < target.ID) {
			target = candidate
		}
	}
	return target
}
