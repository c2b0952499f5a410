package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogCache caches the active-question list of each eligibility group in
// Redis and falls back to the loader on cache miss. Entries are stored as:
//
//	SET catalog:group:{groupID} <json questions> EX ttl
//
// The whole catalog (admin view) lives under catalog:all.
type CatalogCache struct {
	client *redis.Client
	loader app.QuestionCatalog
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewCatalogCache(client *redis.Client, loader app.QuestionCatalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListActive(ctx context.Context, groupID string) ([]domain.Question, error) {
	key := c.key(groupID)
	if questions, ok := c.cached(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.ListActive(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(questions); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// GetQuestions is not cached: grading must see the catalog as it is now.
func (c *CatalogCache) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	return c.loader.GetQuestions(ctx, ids)
}

// Invalidate drops the cached lists of groupIDs and the whole-catalog
// list, which holds every group's questions.
func (c *CatalogCache) Invalidate(ctx context.Context, groupIDs ...string) error {
	keys := []string{c.key("")}
	for _, g := range groupIDs {
		if g != "" {
			keys = append(keys, c.key(g))
		}
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CatalogCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else falls through to the loader.
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *CatalogCache) key(groupID string) string {
	if groupID == "" {
		return "catalog:all"
	}
	return "catalog:group:" + groupID
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
