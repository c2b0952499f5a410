package config

import (
	"testing"

	"daily-quiz-service/internal/domain"
)

const sampleFixtures = `
learners:
  - id: u1
    name: Ada
    group: sales
    locality: berlin
  - id: root
    group: ops
    role: admin
  - id: gone
    group: sales
    inactive: true
questions:
  - id: q1
    category: products
    groups: [sales]
    prompt: Which plan includes support?
    explanation: Only Pro includes support.
    options: [Basic, Pro, Free]
    correct: 1
achievements:
  - id: first
    title: First quiz
    condition: completed_quizzes
    threshold: 1
    reward_coins: 20
`

func TestParseFixtures(t *testing.T) {
	f, err := ParseFixtures([]byte(sampleFixtures))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	learners := f.DomainLearners()
	if len(learners) != 3 {
		t.Fatalf("expected 3 learners, got %d", len(learners))
	}
	if learners[0].DisplayName != "Ada" || learners[0].Role != domain.RoleLearner || !learners[0].Active {
		t.Fatalf("unexpected learner %+v", learners[0])
	}
	if !learners[1].IsAdmin() || learners[1].DisplayName != "root" {
		t.Fatalf("expected admin with id as name, got %+v", learners[1])
	}
	if learners[2].Active {
		t.Fatalf("expected inactive learner")
	}

	questions := f.DomainQuestions()
	if len(questions) != 1 || questions[0].CorrectIndex() != 1 || !questions[0].VisibleTo("sales") {
		t.Fatalf("unexpected questions %+v", questions)
	}

	defs := f.DomainAchievements()
	if len(defs) != 1 || defs[0].Condition != domain.ConditionCompletedQuizzes || !defs[0].Active {
		t.Fatalf("unexpected achievements %+v", defs)
	}
}

func TestParseFixturesRejectsBadData(t *testing.T) {
	cases := map[string]string{
		"correct out of range": "questions:\n  - id: q1\n    options: [a, b]\n    correct: 2\n",
		"unknown condition":    "achievements:\n  - id: a1\n    condition: logins\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixtures([]byte(doc))
			if err == nil {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestShippedFixturesLoad(t *testing.T) {
	f, err := LoadFixtures("../../config/fixtures.yaml")
	if err != nil {
		t.Fatalf("load shipped fixtures: %v", err)
	}
	perGroup := make(map[string]int)
	for _, q := range f.DomainQuestions() {
		for _, g := range q.GroupIDs {
			perGroup[g]++
		}
	}
	if perGroup["grade-7"] < domain.QuizSize {
		t.Fatalf("expected at least %d questions for grade-7, got %d", domain.QuizSize, perGroup["grade-7"])
	}
	if len(f.DomainAchievements()) == 0 {
		t.Fatalf("expected achievement definitions")
	}
}
