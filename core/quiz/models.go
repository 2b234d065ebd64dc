package quiz

import (
	"github.com/go-playground/validator/v10"

	"github.com/acadamier/backend/core"
)

type Quiz struct {
	ID        string     `json:"id"`
	LessonID  string     `json:"lesson"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type Question struct {
	ID      string   `json:"id"`
	QuizID  string   `json:"quiz"`
	Text    string   `json:"text"`
	Order   int      `json:"order"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question"`
	Text       string `json:"text"`
	IsCorrect  *bool  `json:"is_correct,omitempty"` // nil when hidden from the viewer
}

func (c *Choice) Correct() bool {
	return c.IsCorrect != nil && *c.IsCorrect
}

// WithoutAnswers returns a copy of the quiz where no choice tells whether it is correct.
func (q Quiz) WithoutAnswers() Quiz {
	questions := make([]Question, len(q.Questions))
	for i, qn := range q.Questions {
		choices := make([]Choice, len(qn.Choices))
		for j, ch := range qn.Choices {
			ch.IsCorrect = nil
			choices[j] = ch
		}
		qn.Choices = choices
		questions[i] = qn
	}
	q.Questions = questions
	return q
}

// Requests

type NewChoice struct {
	Text      string `json:"text" validate:"required,max=255"`
	IsCorrect bool   `json:"is_correct"`
}

type NewQuestion struct {
	Text    string      `json:"text" validate:"required"`
	Order   int         `json:"order" validate:"min=0"`
	Choices []NewChoice `json:"choices" validate:"dive"`
}

type NewQuiz struct {
	LessonID  string        `json:"lesson" validate:"required,uuid"`
	Title     string        `json:"title" validate:"required,max=200"`
	Questions []NewQuestion `json:"questions" validate:"dive"`
}

func (nq *NewQuiz) Validate(validate *validator.Validate) error {
	nq.Title = core.CleanString(nq.Title)
	cleanQuestions(nq.Questions)
	return validate.Struct(nq)
}

// UpdateQuiz replaces the title and all the questions of a Quiz.
type UpdateQuiz struct {
	Title     string        `json:"title" validate:"required,max=200"`
	Questions []NewQuestion `json:"questions" validate:"dive"`
}

func (uq *UpdateQuiz) Validate(validate *validator.Validate) error {
	uq.Title = core.CleanString(uq.Title)
	cleanQuestions(uq.Questions)
	return validate.Struct(uq)
}

func cleanQuestions(questions []NewQuestion) {
	for i := range questions {
		questions[i].Text = core.CleanString(questions[i].Text)
		for j := range questions[i].Choices {
			questions[i].Choices[j].Text = core.CleanString(questions[i].Choices[j].Text)
		}
	}
}

// Submission maps question IDs to the selected choice IDs.
type Submission struct {
	Answers map[string]string `json:"answers"`
}

type Result struct {
	Score   float64 `json:"score"`
	Total   int     `json:"total"`
	Correct int     `json:"correct"`
}
