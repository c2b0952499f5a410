package memory

import (
	"context"
	"sort"
	"sync"

	"daily-quiz-service/internal/domain"
)

// LearnerDirectory is an in-memory app.LearnerDirectory.
type LearnerDirectory struct {
	mu       sync.RWMutex
	learners map[string]domain.Learner
}

func NewLearnerDirectory(learners ...domain.Learner) *LearnerDirectory {
	d := &LearnerDirectory{learners: make(map[string]domain.Learner, len(learners))}
	for _, l := range learners {
		d.learners[l.ID] = l
	}
	return d
}

// Put adds or replaces a learner.
func (d *LearnerDirectory) Put(l domain.Learner) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.learners[l.ID] = l
}

func (d *LearnerDirectory) GetLearner(_ context.Context, learnerID string) (domain.Learner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.learners[learnerID]
	if !ok {
		return domain.Learner{}, domain.ErrLearnerNotFound
	}
	return l, nil
}

func (d *LearnerDirectory) ListPeers(_ context.Context, groupID string) ([]domain.Learner, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var peers []domain.Learner
	for _, l := range d.learners {
		if l.Active && l.GroupID == groupID {
			peers = append(peers, l)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers, nil
}

func (d *LearnerDirectory) ApplyCompletion(_ context.Context, learnerID string, score int, coins int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.learners[learnerID]
	if !ok {
		return domain.ErrLearnerNotFound
	}
	l.Stats = l.Stats.WithCompletion(score)
	l.Coins += coins
	d.learners[learnerID] = l
	return nil
}

func (d *LearnerDirectory) AddCoins(_ context.Context, learnerID string, coins int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.learners[learnerID]
	if !ok {
		return domain.ErrLearnerNotFound
	}
	l.Coins += coins
	d.learners[learnerID] = l
	return nil
}
