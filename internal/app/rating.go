package app

import (
	"context"
	"fmt"
	"sort"

	"daily-quiz-service/internal/domain"
)

// TopPeers is the leaderboard length returned with a rating position.
const TopPeers = 10

// RatingService ranks learners among the peers of their eligibility group.
// It recomputes the full ranking on every call.
type RatingService struct {
	learners LearnerDirectory
}

func NewRatingService(learners LearnerDirectory) *RatingService {
	return &RatingService{learners: learners}
}

// PositionOf returns the learner's rank; Rank is 0 when the learner is not an active peer.
func (r *RatingService) PositionOf(ctx context.Context, learnerID string) (domain.RatingPosition, error) {
	learner, err := r.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return domain.RatingPosition{}, err
	}
	peers, err := r.learners.ListPeers(ctx, learner.GroupID)
	if err != nil {
		return domain.RatingPosition{}, fmt.Errorf("list peers: %w", err)
	}

	ranked := RankPeers(peers)
	position := domain.RatingPosition{TotalPeers: len(ranked)}
	for _, entry := range ranked {
		if entry.LearnerID == learnerID {
			position.Rank = entry.Rank
			break
		}
	}
	top := ranked
	if len(top) > TopPeers {
		top = top[:TopPeers]
	}
	position.Top = top
	return position, nil
}

// RankPeers orders by correct answers, then average score, both descending;
// remaining ties fall back to learner ID so the order is stable.
func RankPeers(peers []domain.Learner) []domain.RatingEntry {
	sorted := append([]domain.Learner(nil), peers...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].Stats, sorted[j].Stats
		if a.CorrectAnswers != b.CorrectAnswers {
			return a.CorrectAnswers > b.CorrectAnswers
		}
		if a.AverageScore != b.AverageScore {
			return a.AverageScore > b.AverageScore
		}
		return sorted[i].ID < sorted[j].ID
	})

	entries := make([]domain.RatingEntry, len(sorted))
	for i, peer := range sorted {
		entries[i] = domain.RatingEntry{
			Rank:           i + 1,
			LearnerID:      peer.ID,
			DisplayName:    peer.DisplayName,
			CorrectAnswers: peer.Stats.CorrectAnswers,
			AverageScore:   peer.Stats.AverageScore,
		}
	}
	return entries
}
