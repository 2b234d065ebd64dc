package inmemdb

import (
	"context"
	"sort"

	"github.com/acadamier/backend/core/course"
	"github.com/acadamier/backend/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

func copyQuiz(qz quiz.Quiz) quiz.Quiz {
	questions := make([]quiz.Question, len(qz.Questions))
	for i, qn := range qz.Questions {
		choices := make([]quiz.Choice, len(qn.Choices))
		for j, ch := range qn.Choices {
			if ch.IsCorrect != nil {
				correct := *ch.IsCorrect
				ch.IsCorrect = &correct
			}
			choices[j] = ch
		}
		qn.Choices = choices
		questions[i] = qn
	}
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })
	qz.Questions = questions
	return qz
}

func (repo *quizRepository) ListQuizzes(_ context.Context, lessonID string) ([]quiz.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	quizzes := make([]quiz.Quiz, 0)
	for _, qz := range repo.db.quizzes {
		if qz.LessonID == lessonID {
			quizzes = append(quizzes, copyQuiz(qz))
		}
	}
	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].Title < quizzes[j].Title })
	return quizzes, nil
}

func (repo *quizRepository) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if qz, ok := repo.db.quizzes[id]; ok {
		return copyQuiz(qz), nil
	}
	return quiz.Quiz{}, quiz.ErrNotFound
}

func (repo *quizRepository) CreateQuiz(_ context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.lessons[qz.LessonID]; !ok {
		return quiz.Quiz{}, course.ErrLessonNotFound
	}
	qz = copyQuiz(qz)
	repo.db.quizzes[qz.ID] = qz
	return copyQuiz(qz), nil
}

func (repo *quizRepository) ReplaceQuiz(_ context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.quizzes[qz.ID]
	if !ok {
		return quiz.Quiz{}, quiz.ErrNotFound
	}
	qz.LessonID = orig.LessonID
	qz = copyQuiz(qz)
	repo.db.quizzes[qz.ID] = qz
	return copyQuiz(qz), nil
}

func (repo *quizRepository) DeleteQuiz(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.quizzes[id]; !ok {
		return quiz.ErrNotFound
	}
	delete(repo.db.quizzes, id)
	return nil
}
