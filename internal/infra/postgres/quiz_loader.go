package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// QuizLoader reads quiz content from Postgres, questions and answers in
// their stable authoring order.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := l.pool.QueryRow(ctx,
		`SELECT id, title, creator_id FROM quizzes WHERE id = $1`, quizID,
	).Scan(&quiz.ID, &quiz.Title, &quiz.CreatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT id, text, time_limit FROM questions WHERE quiz_id = $1 ORDER BY "order" ASC`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	index := make(map[string]int)
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.TimeLimit); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan question: %w", err)
		}
		index[q.ID] = len(quiz.Questions)
		quiz.Questions = append(quiz.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("read questions: %w", err)
	}

	answerRows, err := l.pool.Query(ctx,
		`SELECT a.id, a.question_id, a.text, a.is_correct
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE q.quiz_id = $1
		 ORDER BY q."order" ASC, a."order" ASC`, quizID)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var a domain.Answer
		var questionID string
		if err := answerRows.Scan(&a.ID, &questionID, &a.Text, &a.Correct); err != nil {
			return domain.Quiz{}, fmt.Errorf("scan answer: %w", err)
		}
		if i, ok := index[questionID]; ok {
			quiz.Questions[i].Answers = append(quiz.Questions[i].Answers, a)
		}
	}
	if err := answerRows.Err(); err != nil {
		return domain.Quiz{}, fmt.Errorf("read answers: %w", err)
	}

	return quiz, nil
}
