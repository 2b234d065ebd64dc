package quiz

import (
	"context"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/acadamier/backend/core"
)

var ErrNotFound = core.NewNotFoundError("quiz not found")

type (
	Repository interface {
		ListQuizzes(ctx context.Context, lessonID string) ([]Quiz, error)
		// GetQuiz returns the Quiz with its questions and their choices, by order.
		GetQuiz(ctx context.Context, id string) (Quiz, error)
		// CreateQuiz atomically saves the Quiz with all its questions and choices.
		CreateQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		// ReplaceQuiz atomically updates the title and replaces all questions and choices of the Quiz.
		ReplaceQuiz(ctx context.Context, qz Quiz) (Quiz, error)
		DeleteQuiz(ctx context.Context, id string) error
	}

	Service interface {
		ListByLesson(ctx context.Context, lessonID string) ([]Quiz, error)
		GetByID(ctx context.Context, id string) (Quiz, error)
		Create(ctx context.Context, nq NewQuiz) (Quiz, error)
		Update(ctx context.Context, qz Quiz, uq UpdateQuiz) (Quiz, error)
		Delete(ctx context.Context, id string) error
		Submit(ctx context.Context, qz Quiz, sub Submission) Result
	}

	service struct {
		repo   Repository
		tracer trace.Tracer
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{
		repo:   repo,
		tracer: otel.Tracer("quiz/service"),
	}
}

func (svc *service) ListByLesson(ctx context.Context, lessonID string) ([]Quiz, error) {
	return svc.repo.ListQuizzes(ctx, lessonID)
}

func (svc *service) GetByID(ctx context.Context, id string) (Quiz, error) {
	return svc.repo.GetQuiz(ctx, id)
}

func (svc *service) Create(ctx context.Context, nq NewQuiz) (Quiz, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Create")
	defer span.End()

	qz := Quiz{ID: uuid.NewString(), LessonID: nq.LessonID, Title: nq.Title}
	qz.Questions = buildQuestions(qz.ID, nq.Questions)
	qz, err := svc.repo.CreateQuiz(traceCtx, qz)
	if err != nil {
		span.RecordError(err)
		return Quiz{}, pkgerrors.Wrap(err, "creating quiz")
	}
	return qz, nil
}

func (svc *service) Update(ctx context.Context, qz Quiz, uq UpdateQuiz) (Quiz, error) {
	traceCtx, span := svc.tracer.Start(ctx, "Update")
	defer span.End()

	qz.Title = uq.Title
	qz.Questions = buildQuestions(qz.ID, uq.Questions)
	qz, err := svc.repo.ReplaceQuiz(traceCtx, qz)
	if err != nil {
		span.RecordError(err)
		return Quiz{}, pkgerrors.Wrap(err, "replacing quiz")
	}
	return qz, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteQuiz(ctx, id)
}

// Submit grades the answers: a question is correct when the selected choice belongs to it and is correct.
func (svc *service) Submit(_ context.Context, qz Quiz, sub Submission) Result {
	res := Result{Total: len(qz.Questions)}
	for _, qn := range qz.Questions {
		choiceID, ok := sub.Answers[qn.ID]
		if !ok {
			continue
		}
		for _, ch := range qn.Choices {
			if ch.ID == choiceID && ch.Correct() {
				res.Correct++
				break
			}
		}
	}
	if res.Total > 0 {
		res.Score = core.Round2(float64(res.Correct) / float64(res.Total) * 100)
	}
	return res
}

func buildQuestions(quizID string, nqs []NewQuestion) []Question {
	questions := make([]Question, 0, len(nqs))
	for _, nqn := range nqs {
		qn := Question{
			ID:      uuid.NewString(),
			QuizID:  quizID,
			Text:    nqn.Text,
			Order:   nqn.Order,
			Choices: make([]Choice, 0, len(nqn.Choices)),
		}
		for _, nch := range nqn.Choices {
			isCorrect := nch.IsCorrect
			qn.Choices = append(qn.Choices, Choice{
				ID:         uuid.NewString(),
				QuestionID: qn.ID,
				Text:       nch.Text,
				IsCorrect:  &isCorrect,
			})
		}
		questions = append(questions, qn)
	}
	return questions
}
