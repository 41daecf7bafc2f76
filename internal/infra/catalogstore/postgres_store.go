package catalogstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	apperrors "github.com/concoursapp/catalogsync/pkg/errors"
)

// PostgresStore implements catalog.Store using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs the store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the catalog tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			category_id TEXT NOT NULL REFERENCES categories (id),
			text TEXT NOT NULL,
			correct_answer TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id TEXT PRIMARY KEY,
			question_id TEXT NOT NULL REFERENCES questions (id),
			text TEXT NOT NULL,
			is_correct BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_category ON questions (category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_question ON answers (question_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return apperrors.Wrap(apperrors.CodeStorage, "ensure schema", err)
		}
	}
	return nil
}

// UpsertCategories replaces the given categories in one transaction.
func (s *PostgresStore) UpsertCategories(ctx context.Context, categories []catalog.Category) error {
	if len(categories) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, category := range categories {
			if _, err := tx.Exec(ctx, `
				INSERT INTO categories (id, title, description)
				VALUES ($1, $2, $3)
				ON CONFLICT (id) DO UPDATE
				SET title = EXCLUDED.title, description = EXCLUDED.description
			`, category.ID, category.Title, category.Description); err != nil {
				return err
			}
		}
		return nil
	}, "upsert categories")
}

// UpsertQuestions writes one category's valid questions and their answers in
// a single transaction. Invalid questions are skipped, not fatal.
func (s *PostgresStore) UpsertQuestions(ctx context.Context, categoryID string, questions []catalog.Question) (int, error) {
	valid, skipped := catalog.FilterValidQuestions(questions)
	if len(valid) == 0 {
		return skipped, nil
	}

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, question := range valid {
			if _, err := tx.Exec(ctx, `
				INSERT INTO questions (id, category_id, text, correct_answer)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE
				SET category_id = EXCLUDED.category_id,
				    text = EXCLUDED.text,
				    correct_answer = EXCLUDED.correct_answer
			`, question.ID, categoryID, question.Text, question.CorrectAnswer); err != nil {
				return err
			}

			for _, answer := range question.Answers {
				if _, err := tx.Exec(ctx, `
					INSERT INTO answers (id, question_id, text, is_correct)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (id) DO UPDATE
					SET question_id = EXCLUDED.question_id,
					    text = EXCLUDED.text,
					    is_correct = EXCLUDED.is_correct
				`, answer.ID, question.ID, answer.Text, answer.IsCorrect); err != nil {
					return err
				}
			}
		}
		return nil
	}, "upsert questions")
	if err != nil {
		return 0, err
	}
	return skipped, nil
}

// ListCategories returns all stored categories without nested questions.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description
		FROM categories
		ORDER BY id
	`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list categories", err)
	}
	defer rows.Close()

	categories := make([]catalog.Category, 0)
	for rows.Next() {
		var category catalog.Category
		if err := rows.Scan(&category.ID, &category.Title, &category.Description); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan category", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list categories", err)
	}
	return categories, nil
}

// ListQuestions reconstructs one category's question/answer graph via a join.
func (s *PostgresStore) ListQuestions(ctx context.Context, categoryID string) ([]catalog.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT q.id, q.category_id, q.text, q.correct_answer,
		       a.id, a.text, a.is_correct
		FROM questions q
		LEFT JOIN answers a ON a.question_id = q.id
		WHERE q.category_id = $1
		ORDER BY q.id, a.id
	`, categoryID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list questions", err)
	}
	defer rows.Close()

	questions := make([]catalog.Question, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			question   catalog.Question
			answerID   *string
			answerText *string
			isCorrect  *bool
		)
		if err := rows.Scan(&question.ID, &question.CategoryID, &question.Text, &question.CorrectAnswer, &answerID, &answerText, &isCorrect); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeStorage, "scan question", err)
		}

		pos, seen := index[question.ID]
		if !seen {
			pos = len(questions)
			index[question.ID] = pos
			questions = append(questions, question)
		}
		if answerID != nil {
			questions[pos].Answers = append(questions[pos].Answers, catalog.Answer{
				ID:         *answerID,
				QuestionID: question.ID,
				Text:       *answerText,
				IsCorrect:  *isCorrect,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStorage, "list questions", err)
	}
	return questions, nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(pgx.Tx) error, op string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, op, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeStorage, op, err)
	}
	return nil
}

var _ catalog.Store = (*PostgresStore)(nil)
