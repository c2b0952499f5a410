package domain

import "time"

// QuizSize is the fixed number of slots in every quiz instance.
const QuizSize = 5

// Role distinguishes regular learners from operators.
type Role string

const (
	RoleLearner Role = "learner"
	RoleAdmin   Role = "admin"
)

// LearnerStats are the cumulative counters maintained on quiz completion.
type LearnerStats struct {
	TotalQuizzes     int     `json:"totalQuizzes"`
	CompletedQuizzes int     `json:"completedQuizzes"`
	CorrectAnswers   int     `json:"correctAnswers"`
	TotalAnswers     int     `json:"totalAnswers"`
	AverageScore     float64 `json:"averageScore"` // running average percentage
}

// WithCompletion returns the stats after one more completed quiz with the given score.
func (s LearnerStats) WithCompletion(score int) LearnerStats {
	pct := Percentage(score)
	s.AverageScore = (s.AverageScore*float64(s.CompletedQuizzes) + pct) / float64(s.CompletedQuizzes+1)
	s.TotalQuizzes++
	s.CompletedQuizzes++
	s.CorrectAnswers += score
	s.TotalAnswers += QuizSize
	return s
}

// Percentage converts a quiz score into a 0-100 percentage.
func Percentage(score int) float64 {
	return float64(score) * 100 / float64(QuizSize)
}

// Learner is owned by the learner directory; the engine only applies
// completion deltas to Stats and Coins.
type Learner struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"displayName"`
	GroupID     string       `json:"groupId"`
	LocalityID  string       `json:"localityId"`
	Role        Role         `json:"role"`
	Active      bool         `json:"active"`
	Stats       LearnerStats `json:"stats"`
	Coins       int64        `json:"coins"`
}

func (l Learner) IsAdmin() bool {
	return l.Role == RoleAdmin
}

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID          string   `json:"id"`
	CategoryID  string   `json:"categoryId"`
	GroupIDs    []string `json:"groupIds"`
	Prompt      string   `json:"prompt"`
	Explanation string   `json:"explanation"`
	Options     []Option `json:"options"`
	Active      bool     `json:"active"`
}

// CorrectIndex returns the index of the correct option, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// VisibleTo reports whether learners of groupID may be shown q.
func (q Question) VisibleTo(groupID string) bool {
	for _, g := range q.GroupIDs {
		if g == groupID {
			return true
		}
	}
	return false
}

type QuizStatus string

const (
	StatusPending    QuizStatus = "pending"
	StatusInProgress QuizStatus = "in_progress"
	StatusCompleted  QuizStatus = "completed"
	StatusExpired    QuizStatus = "expired"
)

// Terminal reports whether no further answers are accepted.
func (s QuizStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// QuestionSlot holds one question of a quiz and its eventual answer.
type QuestionSlot struct {
	QuestionID  string     `json:"questionId"`
	ChosenIndex *int       `json:"chosenIndex,omitempty"`
	Correct     bool       `json:"correct"`
	AnsweredAt  *time.Time `json:"answeredAt,omitempty"`
}

func (s QuestionSlot) Answered() bool {
	return s.ChosenIndex != nil
}

// QuizInstance is one learner's quiz for one assignment day.
type QuizInstance struct {
	ID           string         `json:"id"`
	LearnerID    string         `json:"learnerId"`
	LocalityID   string         `json:"localityId,omitempty"`
	AssignedOn   Day            `json:"assignedOn"`
	Slots        []QuestionSlot `json:"slots"`
	Status       QuizStatus     `json:"status"`
	Deadline     time.Time      `json:"deadline"`
	CompletedAt  *time.Time     `json:"completedAt,omitempty"`
	Score        int            `json:"score"`
	CoinsAwarded int64          `json:"coinsAwarded"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// QuestionIDs returns the slot question identifiers in slot order.
func (q QuizInstance) QuestionIDs() []string {
	ids := make([]string, len(q.Slots))
	for i, s := range q.Slots {
		ids[i] = s.QuestionID
	}
	return ids
}

// AnsweredCount returns how many slots carry an answer.
func (q QuizInstance) AnsweredCount() int {
	n := 0
	for _, s := range q.Slots {
		if s.Answered() {
			n++
		}
	}
	return n
}

// CorrectCount returns how many slots were answered correctly.
func (q QuizInstance) CorrectCount() int {
	n := 0
	for _, s := range q.Slots {
		if s.Answered() && s.Correct {
			n++
		}
	}
	return n
}

// Validate enforces the fixed-size, distinct-question invariant.
func (q QuizInstance) Validate() error {
	if len(q.Slots) != QuizSize {
		return ErrInvalidQuiz
	}
	seen := make(map[string]struct{}, len(q.Slots))
	for _, s := range q.Slots {
		if s.QuestionID == "" {
			return ErrInvalidQuiz
		}
		if _, dup := seen[s.QuestionID]; dup {
			return ErrInvalidQuiz
		}
		seen[s.QuestionID] = struct{}{}
	}
	return nil
}

// HistoryRecord tracks a learner's exposure to one question.
type HistoryRecord struct {
	LearnerID   string    `json:"learnerId"`
	QuestionID  string    `json:"questionId"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	Exposures   int       `json:"exposures"`
	EverCorrect bool      `json:"everCorrect"`
}

// GradedAnswer is one slot of a TestResult.
type GradedAnswer struct {
	QuestionID   string `json:"questionId"`
	ChosenIndex  int    `json:"chosenIndex"`
	CorrectIndex int    `json:"correctIndex"`
	Correct      bool   `json:"correct"`
}

// TestResult is the immutable audit snapshot of a completed quiz.
type TestResult struct {
	ID         string         `json:"id"`
	QuizID     string         `json:"quizId"`
	LearnerID  string         `json:"learnerId"`
	AssignedOn Day            `json:"assignedOn"`
	Answers    []GradedAnswer `json:"answers"`
	Score      int            `json:"score"`
	Percentage float64        `json:"percentage"`
	Coins      int64          `json:"coins"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Perfect reports a full-marks result.
func (r TestResult) Perfect() bool {
	return r.Score == QuizSize
}

type ConditionType string

const (
	ConditionCorrectAnswers   ConditionType = "correct_answers"
	ConditionCompletedQuizzes ConditionType = "completed_quizzes"
	ConditionStreakDays       ConditionType = "streak_days"
	ConditionPerfectQuizzes   ConditionType = "perfect_quizzes"
)

// AchievementDefinition is an entry of the external achievement catalog.
type AchievementDefinition struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Condition   ConditionType `json:"condition"`
	Threshold   int           `json:"threshold"`
	RewardCoins int64         `json:"rewardCoins"`
	Active      bool          `json:"active"`
}

// AchievementGrant is unique per (learner, achievement).
type AchievementGrant struct {
	ID            string    `json:"id"`
	LearnerID     string    `json:"learnerId"`
	AchievementID string    `json:"achievementId"`
	RewardCoins   int64     `json:"rewardCoins"`
	GrantedAt     time.Time `json:"grantedAt"`
}

// RewardSettings are the process-wide coin rates.
type RewardSettings struct {
	PerCorrect      int64 `json:"perCorrect"`
	CompletionBonus int64 `json:"completionBonus"`
}

// RatingEntry is one row of the peer leaderboard.
type RatingEntry struct {
	Rank           int     `json:"rank"`
	LearnerID      string  `json:"learnerId"`
	DisplayName    string  `json:"displayName"`
	CorrectAnswers int     `json:"correctAnswers"`
	AverageScore   float64 `json:"averageScore"`
}

// RatingPosition is a learner's place among peers of the same group.
type RatingPosition struct {
	Rank       int           `json:"rank"`
	TotalPeers int           `json:"totalPeers"`
	Top        []RatingEntry `json:"top"`
}

// Event is pushed to learners through the notifier.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

const (
	EventQuizCompleted       = "quiz.completed"
	EventAchievementUnlocked = "achievement.unlocked"
)
