package app

import (
	"context"
	"fmt"
	"time"

	"daily-quiz-service/internal/domain"
	"daily-quiz-service/internal/logger"
	"daily-quiz-service/internal/metrics"
)

// Dependencies wires the quiz engine to its collaborators. Notifier,
// Logger, Metrics, Location, Now and Shuffle are optional.
type Dependencies struct {
	Learners     LearnerDirectory
	Catalog      QuestionCatalog
	Quizzes      QuizStore
	Usage        UsageIndex
	History      HistoryLedger
	Results      ResultStore
	Achievements AchievementStore
	Rewards      RewardSettingsProvider
	Notifier     Notifier
	Logger       *logger.Logger
	Metrics      *metrics.Engine
	Location     *time.Location
	Now          func() time.Time
	Shuffle      func([]domain.Question)
}

// QuizService contains the daily quiz use cases.
type QuizService struct {
	learners LearnerDirectory
	catalog  QuestionCatalog
	quizzes  QuizStore
	usage    UsageIndex
	history  HistoryLedger
	results  ResultStore
	rewards  RewardSettingsProvider
	notifier Notifier
	log      *logger.Logger
	metrics  *metrics.Engine
	loc      *time.Location
	now      func() time.Time

	selector     *Selector
	rating       *RatingService
	achievements *AchievementEvaluator
}

func NewQuizService(deps Dependencies) *QuizService {
	s := &QuizService{
		learners: deps.Learners,
		catalog:  deps.Catalog,
		quizzes:  deps.Quizzes,
		usage:    deps.Usage,
		history:  deps.History,
		results:  deps.Results,
		rewards:  deps.Rewards,
		notifier: deps.Notifier,
		log:      deps.Logger,
		metrics:  deps.Metrics,
		loc:      deps.Location,
		now:      deps.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.selector = NewSelector(deps.Catalog, deps.History, deps.Quizzes, deps.Usage, s.log)
	if deps.Shuffle != nil {
		s.selector.shuffle = deps.Shuffle
	}
	s.rating = NewRatingService(deps.Learners)
	s.achievements = NewAchievementEvaluator(deps.Learners, deps.Quizzes, deps.Results, deps.Achievements)
	return s
}

// clock returns the current instant in the service location and its day.
func (s *QuizService) clock() (time.Time, domain.Day) {
	now := s.now().In(s.loc)
	return now, domain.DayOf(now)
}

// QuestionView is a catalog question as shown inside a quiz. CorrectIndex
// and Explanation are only filled once the quiz is completed.
type QuestionView struct {
	ID           string   `json:"id"`
	CategoryID   string   `json:"categoryId"`
	Prompt       string   `json:"prompt"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correctIndex,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// QuizView pairs a quiz instance with its questions in slot order.
type QuizView struct {
	Quiz      domain.QuizInstance `json:"quiz"`
	Questions []QuestionView      `json:"questions"`
}

// GetCurrent returns today's quiz for the learner, or nil when none exists.
func (s *QuizService) GetCurrent(ctx context.Context, learnerID string) (*QuizView, error) {
	learner, err := s.learners.GetLearner(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	now, today := s.clock()
	quiz, err := s.quizzes.FindByLearnerDay(ctx, learner.ID, today)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	quiz, err = s.expireIfDue(ctx, learner, quiz, now)
	if err != nil {
		return nil, err
	}
	return s.View(ctx, quiz)
}

// View renders quiz with its questions in slot order.
func (s *QuizService) View(ctx context.Context, quiz domain.QuizInstance) (*QuizView, error) {
	questions, err := s.catalog.GetQuestions(ctx, quiz.QuestionIDs())
	if err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	reveal := quiz.Status == domain.StatusCompleted
	views := make([]QuestionView, 0, len(quiz.Slots))
	for _, slot := range quiz.Slots {
		q, ok := questions[slot.QuestionID]
		if !ok {
			return nil, fmt.Errorf("question %s: %w", slot.QuestionID, domain.ErrQuestionNotFound)
		}
		v := QuestionView{
			ID:         q.ID,
			CategoryID: q.CategoryID,
			Prompt:     q.Prompt,
			Options:    make([]string, len(q.Options)),
		}
		for i, opt := range q.Options {
			v.Options[i] = opt.Text
		}
		if reveal {
			idx := q.CorrectIndex()
			v.CorrectIndex = &idx
			v.Explanation = q.Explanation
		}
		views = append(views, v)
	}
	return &QuizView{Quiz: quiz, Questions: views}, nil
}

// RatingPosition returns the learner's rank among eligibility-group peers.
func (s *QuizService) RatingPosition(ctx context.Context, learnerID string) (domain.RatingPosition, error) {
	return s.rating.PositionOf(ctx, learnerID)
}

// ListResults returns the learner's test results, newest first.
func (s *QuizService) ListResults(ctx context.Context, learnerID string) ([]domain.TestResult, error) {
	if _, err := s.learners.GetLearner(ctx, learnerID); err != nil {
		return nil, err
	}
	return s.results.ListByLearner(ctx, learnerID)
}

// Learner exposes the directory lookup to the transport layer.
func (s *QuizService) Learner(ctx context.Context, learnerID string) (domain.Learner, error) {
	return s.learners.GetLearner(ctx, learnerID)
}
