package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"

	"github.com/acadamier/backend/core/quiz"
)

type quizRepository struct {
	db *DB
}

var _ quiz.Repository = (*quizRepository)(nil)

func NewQuizRepository(db *DB) quiz.Repository {
	return &quizRepository{db: db}
}

type quizRow struct {
	ID       string `db:"id"`
	LessonID string `db:"lesson_id"`
	Title    string `db:"title"`
}

type questionRow struct {
	ID     string `db:"id"`
	QuizID string `db:"quiz_id"`
	Text   string `db:"text"`
	Order  int    `db:"order"`
}

type choiceRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
}

// loadQuestions fills in the questions and choices of the quizzes, by order.
func loadQuestions(ctx context.Context, q queryer, quizzes []quiz.Quiz) error {
	if len(quizzes) == 0 {
		return nil
	}
	ids := make([]string, len(quizzes))
	for i, qz := range quizzes {
		ids[i] = qz.ID
	}

	var qrows []questionRow
	b := psql.Select("id", "quiz_id", "text", `"order"`).From("questions").Where(sq.Eq{"quiz_id": ids}).OrderBy(`"order"`, "id")
	if err := selectRows(ctx, q, &qrows, b); err != nil {
		return pkgerrors.Wrap(err, "selecting questions")
	}
	qids := make([]string, len(qrows))
	for i, r := range qrows {
		qids[i] = r.ID
	}

	var crows []choiceRow
	if len(qids) > 0 {
		b = psql.Select("id", "question_id", "text", "is_correct").From("choices").Where(sq.Eq{"question_id": qids}).OrderBy("position")
		if err := selectRows(ctx, q, &crows, b); err != nil {
			return pkgerrors.Wrap(err, "selecting choices")
		}
	}
	choices := make(map[string][]quiz.Choice)
	for _, r := range crows {
		correct := r.IsCorrect
		choices[r.QuestionID] = append(choices[r.QuestionID], quiz.Choice{ID: r.ID, QuestionID: r.QuestionID, Text: r.Text, IsCorrect: &correct})
	}
	questions := make(map[string][]quiz.Question)
	for _, r := range qrows {
		questions[r.QuizID] = append(questions[r.QuizID], quiz.Question{
			ID:      r.ID,
			QuizID:  r.QuizID,
			Text:    r.Text,
			Order:   r.Order,
			Choices: append([]quiz.Choice{}, choices[r.ID]...),
		})
	}
	for i := range quizzes {
		quizzes[i].Questions = append([]quiz.Question{}, questions[quizzes[i].ID]...)
	}
	return nil
}

func (repo *quizRepository) ListQuizzes(ctx context.Context, lessonID string) ([]quiz.Quiz, error) {
	var rows []quizRow
	b := psql.Select("id", "lesson_id", "title").From("quizzes").Where(sq.Eq{"lesson_id": lessonID}).OrderBy("title")
	if err := selectRows(ctx, repo.db, &rows, b); err != nil {
		return nil, err
	}
	quizzes := make([]quiz.Quiz, len(rows))
	for i, r := range rows {
		quizzes[i] = quiz.Quiz{ID: r.ID, LessonID: r.LessonID, Title: r.Title}
	}
	if err := loadQuestions(ctx, repo.db, quizzes); err != nil {
		return nil, err
	}
	return quizzes, nil
}

func (repo *quizRepository) GetQuiz(ctx context.Context, id string) (quiz.Quiz, error) {
	var r quizRow
	if err := get(ctx, repo.db, &r, psql.Select("id", "lesson_id", "title").From("quizzes").Where(sq.Eq{"id": id})); err != nil {
		return quiz.Quiz{}, trapNoRowsErr(err, quiz.ErrNotFound)
	}
	quizzes := []quiz.Quiz{{ID: r.ID, LessonID: r.LessonID, Title: r.Title}}
	if err := loadQuestions(ctx, repo.db, quizzes); err != nil {
		return quiz.Quiz{}, err
	}
	return quizzes[0], nil
}

func insertQuestions(ctx context.Context, tx *sqlx.Tx, qz quiz.Quiz) error {
	for _, qn := range qz.Questions {
		b := psql.Insert("questions").Columns("id", "quiz_id", "text", `"order"`).Values(qn.ID, qz.ID, qn.Text, qn.Order)
		if _, err := exec(ctx, tx, b); err != nil {
			return pkgerrors.Wrap(err, "inserting question")
		}
		if len(qn.Choices) == 0 {
			continue
		}
		cb := psql.Insert("choices").Columns("id", "question_id", "text", "is_correct", "position")
		for pos, ch := range qn.Choices {
			cb = cb.Values(ch.ID, qn.ID, ch.Text, ch.Correct(), pos)
		}
		if _, err := exec(ctx, tx, cb); err != nil {
			return pkgerrors.Wrap(err, "inserting choices")
		}
	}
	return nil
}

func (repo *quizRepository) CreateQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		b := psql.Insert("quizzes").Columns("id", "lesson_id", "title").Values(qz.ID, qz.LessonID, qz.Title)
		if _, err := exec(ctx, tx, b); err != nil {
			return pkgerrors.Wrap(err, "inserting quiz")
		}
		return insertQuestions(ctx, tx, qz)
	})
	if err != nil {
		return quiz.Quiz{}, err
	}
	return repo.GetQuiz(ctx, qz.ID)
}

func (repo *quizRepository) ReplaceQuiz(ctx context.Context, qz quiz.Quiz) (quiz.Quiz, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		b := psql.Update("quizzes").Set("title", qz.Title).Where(sq.Eq{"id": qz.ID})
		if err := execOne(ctx, tx, b, quiz.ErrNotFound); err != nil {
			return err
		}
		if _, err := exec(ctx, tx, psql.Delete("questions").Where(sq.Eq{"quiz_id": qz.ID})); err != nil {
			return pkgerrors.Wrap(err, "deleting questions")
		}
		return insertQuestions(ctx, tx, qz)
	})
	if err != nil {
		return quiz.Quiz{}, err
	}
	return repo.GetQuiz(ctx, qz.ID)
}

func (repo *quizRepository) DeleteQuiz(ctx context.Context, id string) error {
	return execOne(ctx, repo.db, psql.Delete("quizzes").Where(sq.Eq{"id": id}), quiz.ErrNotFound)
}
