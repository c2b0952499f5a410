package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine holds the Prometheus collectors of the quiz engine.
// A nil *Engine is valid and records nothing.
type Engine struct {
	generated    prometheus.Counter
	completed    prometheus.Counter
	answers      *prometheus.CounterVec
	insufficient *prometheus.CounterVec
	downstream   *prometheus.CounterVec
	scores       prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Engine {
	m := &Engine{
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dailyquiz",
			Name:      "quizzes_generated_total",
			Help:      "Quiz instances created.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dailyquiz",
			Name:      "quizzes_completed_total",
			Help:      "Quiz instances that reached the completed state.",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dailyquiz",
			Name:      "answers_total",
			Help:      "Accepted answers by correctness.",
		}, []string{"correct"}),
		insufficient: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dailyquiz",
			Name:      "insufficient_questions_total",
			Help:      "Generation attempts rejected for lack of questions.",
		}, []string{"reason"}),
		downstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dailyquiz",
			Name:      "downstream_failures_total",
			Help:      "Swallowed failures of best-effort completion steps.",
		}, []string{"stage"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dailyquiz",
			Name:      "quiz_score",
			Help:      "Score distribution of completed quizzes.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.generated, m.completed, m.answers, m.insufficient, m.downstream, m.scores)
	}
	return m
}

func (m *Engine) QuizGenerated() {
	if m == nil {
		return
	}
	m.generated.Inc()
}

func (m *Engine) QuizCompleted(score int) {
	if m == nil {
		return
	}
	m.completed.Inc()
	m.scores.Observe(float64(score))
}

func (m *Engine) Answer(correct bool) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (m *Engine) InsufficientQuestions(reason string) {
	if m == nil {
		return
	}
	m.insufficient.WithLabelValues(reason).Inc()
}

func (m *Engine) DownstreamFailure(stage string) {
	if m == nil {
		return
	}
	m.downstream.WithLabelValues(stage).Inc()
}
