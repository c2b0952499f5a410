package redis

import (
	"context"
	"strings"
	"time"

	"daily-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// usageRetention keeps a day's usage hash around until the day is over in
// every timezone.
const usageRetention = 48 * time.Hour

// UsageIndex records which questions each learner of a locality holds on a
// given day, so selection can spread questions across colleagues:
//
//	HSET usage:{localityID}:{day} {learnerID} "q1,q2,q3,q4,q5"
type UsageIndex struct {
	client *redis.Client
}

func NewUsageIndex(client *redis.Client) *UsageIndex {
	return &UsageIndex{client: client}
}

func (u *UsageIndex) ListUsedQuestionIDs(ctx context.Context, localityID string, day domain.Day, excludeLearnerID string) (map[string]struct{}, error) {
	fields, err := u.client.HGetAll(ctx, u.key(localityID, day)).Result()
	if err != nil {
		return nil, err
	}
	used := make(map[string]struct{})
	for learnerID, joined := range fields {
		if learnerID == excludeLearnerID || joined == "" {
			continue
		}
		for _, id := range strings.Split(joined, ",") {
			used[id] = struct{}{}
		}
	}
	return used, nil
}

func (u *UsageIndex) MarkUsed(ctx context.Context, localityID string, day domain.Day, learnerID string, questionIDs []string) error {
	key := u.key(localityID, day)
	pipe := u.client.TxPipeline()
	pipe.HSet(ctx, key, learnerID, strings.Join(questionIDs, ","))
	pipe.Expire(ctx, key, usageRetention)
	_, err := pipe.Exec(ctx)
	return err
}

func (u *UsageIndex) Release(ctx context.Context, localityID string, day domain.Day, learnerID string) error {
	return u.client.HDel(ctx, u.key(localityID, day), learnerID).Err()
}

func (u *UsageIndex) key(localityID string, day domain.Day) string {
	return "usage:" + localityID + ":" + day.String()
}
