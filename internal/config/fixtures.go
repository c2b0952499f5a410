package config

import (
	"fmt"
	"os"

	"daily-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Fixtures is the reference data the service starts from: the learner
// directory, the question catalog and the achievement catalog. The memory
// stores are filled from it directly; `seed` upserts it into Postgres.
type Fixtures struct {
	Learners     []LearnerFixture     `yaml:"learners"`
	Questions    []QuestionFixture    `yaml:"questions"`
	Achievements []AchievementFixture `yaml:"achievements"`
}

type LearnerFixture struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"name"`
	Group       string `yaml:"group"`
	Locality    string `yaml:"locality"`
	Role        string `yaml:"role"`
	Inactive    bool   `yaml:"inactive"`
}

type QuestionFixture struct {
	ID          string   `yaml:"id"`
	Category    string   `yaml:"category"`
	Groups      []string `yaml:"groups"`
	Prompt      string   `yaml:"prompt"`
	Explanation string   `yaml:"explanation"`
	Options     []string `yaml:"options"`
	Correct     int      `yaml:"correct"`
	Inactive    bool     `yaml:"inactive"`
}

type AchievementFixture struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Condition   string `yaml:"condition"`
	Threshold   int    `yaml:"threshold"`
	RewardCoins int64  `yaml:"reward_coins"`
	Inactive    bool   `yaml:"inactive"`
}

// LoadFixtures reads and validates a fixtures YAML file.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, err
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, err
	}
	for _, q := range f.Questions {
		if q.Correct < 0 || q.Correct >= len(q.Options) {
			return Fixtures{}, fmt.Errorf("question %s: correct option %d out of range", q.ID, q.Correct)
		}
	}
	for _, a := range f.Achievements {
		switch domain.ConditionType(a.Condition) {
		case domain.ConditionCorrectAnswers, domain.ConditionCompletedQuizzes,
			domain.ConditionStreakDays, domain.ConditionPerfectQuizzes:
		default:
			return Fixtures{}, fmt.Errorf("achievement %s: unknown condition %q", a.ID, a.Condition)
		}
	}
	return f, nil
}

func (f Fixtures) DomainLearners() []domain.Learner {
	out := make([]domain.Learner, len(f.Learners))
	for i, l := range f.Learners {
		role := domain.RoleLearner
		if l.Role == string(domain.RoleAdmin) {
			role = domain.RoleAdmin
		}
		name := l.DisplayName
		if name == "" {
			name = l.ID
		}
		out[i] = domain.Learner{
			ID:          l.ID,
			DisplayName: name,
			GroupID:     l.Group,
			LocalityID:  l.Locality,
			Role:        role,
			Active:      !l.Inactive,
		}
	}
	return out
}

func (f Fixtures) DomainQuestions() []domain.Question {
	out := make([]domain.Question, len(f.Questions))
	for i, q := range f.Questions {
		options := make([]domain.Option, len(q.Options))
		for j, text := range q.Options {
			options[j] = domain.Option{Text: text, Correct: j == q.Correct}
		}
		out[i] = domain.Question{
			ID:          q.ID,
			CategoryID:  q.Category,
			GroupIDs:    q.Groups,
			Prompt:      q.Prompt,
			Explanation: q.Explanation,
			Options:     options,
			Active:      !q.Inactive,
		}
	}
	return out
}

func (f Fixtures) DomainAchievements() []domain.AchievementDefinition {
	out := make([]domain.AchievementDefinition, len(f.Achievements))
	for i, a := range f.Achievements {
		out[i] = domain.AchievementDefinition{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Condition:   domain.ConditionType(a.Condition),
			Threshold:   a.Threshold,
			RewardCoins: a.RewardCoins,
			Active:      !a.Inactive,
		}
	}
	return out
}
