package app

import (
	"context"
	"time"

	"daily-quiz-service/internal/domain"
)

// LearnerDirectory is the external learner collaborator.
type LearnerDirectory interface {
	GetLearner(ctx context.Context, learnerID string) (domain.Learner, error)
	// ListPeers returns the active learners of an eligibility group.
	ListPeers(ctx context.Context, groupID string) ([]domain.Learner, error)
	// ApplyCompletion folds one completed quiz into stats and credits coins in a single write.
	ApplyCompletion(ctx context.Context, learnerID string, score int, coins int64) error
	AddCoins(ctx context.Context, learnerID string, coins int64) error
}

// QuestionCatalog reads the external question catalog.
type QuestionCatalog interface {
	// ListActive returns active questions visible to groupID; "" means the whole catalog.
	ListActive(ctx context.Context, groupID string) ([]domain.Question, error)
	GetQuestions(ctx context.Context, ids []string) (map[string]domain.Question, error)
}

// QuizStore persists quiz instances. Implementations enforce one instance
// per (learner, day) and optimistic concurrency on Version.
type QuizStore interface {
	// Create returns domain.ErrDuplicateQuiz when the learner already has a quiz for the day.
	Create(ctx context.Context, quiz domain.QuizInstance) error
	Get(ctx context.Context, quizID string) (domain.QuizInstance, error)
	FindByLearnerDay(ctx context.Context, learnerID string, day domain.Day) (domain.QuizInstance, error)
	ListByLearner(ctx context.Context, learnerID string) ([]domain.QuizInstance, error)
	// Update stores quiz if its Version matches the stored one and returns it with the bumped version.
	Update(ctx context.Context, quiz domain.QuizInstance) (domain.QuizInstance, error)
	Delete(ctx context.Context, quizID string) error
	DeleteByLearner(ctx context.Context, learnerID string) error
}

// UsageIndex answers which questions other learners of a locality hold today.
type UsageIndex interface {
	ListUsedQuestionIDs(ctx context.Context, localityID string, day domain.Day, excludeLearnerID string) (map[string]struct{}, error)
	MarkUsed(ctx context.Context, localityID string, day domain.Day, learnerID string, questionIDs []string) error
	Release(ctx context.Context, localityID string, day domain.Day, learnerID string) error
}

// HistoryLedger is the permanent per-(learner, question) exposure record.
type HistoryLedger interface {
	// RecordExposure creates the record or bumps its exposure count; EverCorrect takes the latest outcome.
	RecordExposure(ctx context.Context, learnerID, questionID string, correct bool, at time.Time) error
	SeenQuestionIDs(ctx context.Context, learnerID string) (map[string]struct{}, error)
	Get(ctx context.Context, learnerID, questionID string) (domain.HistoryRecord, error)
	PurgeAll(ctx context.Context, learnerID string) error
}

// ResultStore keeps the immutable test result snapshots.
type ResultStore interface {
	// Save is a no-op when a result for the same quiz already exists.
	Save(ctx context.Context, result domain.TestResult) error
	ListByLearner(ctx context.Context, learnerID string) ([]domain.TestResult, error)
	CountPerfect(ctx context.Context, learnerID string) (int, error)
}

// AchievementStore reads the achievement catalog and appends grants.
type AchievementStore interface {
	ListActive(ctx context.Context) ([]domain.AchievementDefinition, error)
	GrantedIDs(ctx context.Context, learnerID string) (map[string]struct{}, error)
	// Grant creates the grant and credits its reward coins together; created is false if it already existed.
	Grant(ctx context.Context, grant domain.AchievementGrant) (created bool, err error)
}

// RewardSettingsProvider supplies the live coin rates.
type RewardSettingsProvider interface {
	RewardSettings(ctx context.Context) (domain.RewardSettings, error)
}

// Notifier delivers push events; failures are the notifier's concern.
type Notifier interface {
	Notify(ctx context.Context, learnerID string, event domain.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, domain.Event) {}
