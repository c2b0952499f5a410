package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CatalogCache caches active-question lists per eligibility group with TTL
// to avoid repeated catalog hits. Lookups by ID go straight to the loader.
type CatalogCache struct {
	loader app.QuestionCatalog
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewCatalogCache(loader app.QuestionCatalog, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *CatalogCache) ListActive(ctx context.Context, groupID string) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[groupID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("group:"+groupID, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[groupID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.ListActive(ctx, groupID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[groupID] = cachedQuestions{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *CatalogCache) GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	return c.loader.GetQuestions(ctx, ids)
}

// Invalidate drops the cached lists of groupIDs and the whole-catalog
// list, which holds every group's questions.
func (c *CatalogCache) Invalidate(_ context.Context, groupIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, "")
	for _, g := range groupIDs {
		delete(c.cache, g)
	}
	return nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalog is a catalog backed by an in-memory slice (useful for tests/demos).
type StaticCatalog struct {
	mu        sync.RWMutex
	questions []domain.Question
}

func NewStaticCatalog(questions []domain.Question) *StaticCatalog {
	return &StaticCatalog{questions: append([]domain.Question(nil), questions...)}
}

// Put adds or replaces a question.
func (c *StaticCatalog) Put(q domain.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.questions {
		if c.questions[i].ID == q.ID {
			c.questions[i] = q
			return
		}
	}
	c.questions = append(c.questions, q)
}

func (c *StaticCatalog) ListActive(_ context.Context, groupID string) ([]domain.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Question, 0, len(c.questions))
	for _, q := range c.questions {
		if !q.Active {
			continue
		}
		if groupID != "" && !q.VisibleTo(groupID) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (c *StaticCatalog) GetQuestions(_ context.Context, ids []string) (map[string]domain.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make(map[string]domain.Question, len(ids))
	for _, q := range c.questions {
		if _, ok := want[q.ID]; ok {
			out[q.ID] = q
		}
	}
	return out, nil
}
