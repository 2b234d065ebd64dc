package quiz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_Submit(t *testing.T) {
	svc := NewService(nil)
	qz := Quiz{ID: "qz"}
	qz.Questions = buildQuestions(qz.ID, []NewQuestion{
		{Text: "2+2?", Choices: []NewChoice{{Text: "4", IsCorrect: true}, {Text: "5"}}},
		{Text: "Capital of Kenya?", Choices: []NewChoice{{Text: "Nairobi", IsCorrect: true}, {Text: "Lagos"}}},
		{Text: "Go is?", Choices: []NewChoice{{Text: "compiled", IsCorrect: true}, {Text: "interpreted"}}},
	})
	q1, q2, q3 := qz.Questions[0], qz.Questions[1], qz.Questions[2]

	tests := []struct {
		name    string
		quiz    Quiz
		answers map[string]string
		want    Result
	}{
		{name: "no questions", quiz: Quiz{ID: "empty"}, answers: map[string]string{"x": "y"}, want: Result{}},
		{name: "no answers", quiz: qz, want: Result{Total: 3}},
		{
			name: "all correct",
			quiz: qz,
			answers: map[string]string{
				q1.ID: q1.Choices[0].ID,
				q2.ID: q2.Choices[0].ID,
				q3.ID: q3.Choices[0].ID,
			},
			want: Result{Score: 100, Total: 3, Correct: 3},
		},
		{
			name: "one wrong",
			quiz: qz,
			answers: map[string]string{
				q1.ID: q1.Choices[0].ID,
				q2.ID: q2.Choices[1].ID,
				q3.ID: q3.Choices[0].ID,
			},
			want: Result{Score: 66.67, Total: 3, Correct: 2},
		},
		{
			name: "correct choice of another question",
			quiz: qz,
			answers: map[string]string{
				q1.ID: q2.Choices[0].ID,
			},
			want: Result{Score: 0, Total: 3, Correct: 0},
		},
		{
			name:    "unknown question",
			quiz:    qz,
			answers: map[string]string{"nope": q1.Choices[0].ID, q3.ID: q3.Choices[0].ID},
			want:    Result{Score: 33.33, Total: 3, Correct: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.Submit(context.Background(), tt.quiz, Submission{Answers: tt.answers})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuiz_WithoutAnswers(t *testing.T) {
	qz := Quiz{ID: "qz"}
	qz.Questions = buildQuestions(qz.ID, []NewQuestion{
		{Text: "?", Choices: []NewChoice{{Text: "a", IsCorrect: true}, {Text: "b"}}},
	})

	hidden := qz.WithoutAnswers()
	for _, ch := range hidden.Questions[0].Choices {
		assert.Nil(t, ch.IsCorrect)
	}
	// original untouched
	assert.True(t, qz.Questions[0].Choices[0].Correct())
	assert.False(t, qz.Questions[0].Choices[1].Correct())
}
