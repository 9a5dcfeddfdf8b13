package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// Store is the bun-backed implementation of app.Store. The schema's unique
// constraints (room_code, (session_id, user_id), (session_id, user_id,
// question_id)) back up the in-process serialization against concurrent
// duplicate joins, code collisions and racing resubmissions.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:quiz_sessions"`

	ID        string     `bun:"id,pk"`
	QuizID    string     `bun:"quiz_id,notnull"`
	RoomCode  string     `bun:"room_code,notnull"`
	CreatorID string     `bun:"creator_id,notnull"`
	Status    string     `bun:"status,notnull"`
	StartedAt *time.Time `bun:"started_at"`
	EndedAt   *time.Time `bun:"ended_at"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
}

type participantRow struct {
	bun.BaseModel `bun:"table:session_participants"`

	SessionID   string    `bun:"session_id,pk"`
	UserID      string    `bun:"user_id,pk"`
	DisplayName string    `bun:"display_name,notnull"`
	JoinedAt    time.Time `bun:"joined_at,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:user_answers"`

	SessionID        string    `bun:"session_id,pk"`
	UserID           string    `bun:"user_id,pk"`
	QuestionID       string    `bun:"question_id,pk"`
	SelectedAnswerID string    `bun:"selected_answer_id,notnull"`
	IsCorrect        bool      `bun:"is_correct,notnull"`
	AnsweredAt       time.Time `bun:"answered_at,notnull"`
}

type resultRow struct {
	bun.BaseModel `bun:"table:session_results"`

	SessionID      string  `bun:"session_id,pk"`
	UserID         string  `bun:"user_id,pk"`
	TotalQuestions int     `bun:"total_questions,notnull"`
	CorrectAnswers int     `bun:"correct_answers,notnull"`
	Score          float64 `bun:"score,notnull"`
}

func (s *Store) CreateSession(ctx context.Context, session domain.Session) error {
	row := sessionRow{
		ID:        session.ID,
		QuizID:    session.QuizID,
		RoomCode:  session.RoomCode,
		CreatorID: session.CreatorID,
		Status:    string(session.Status),
		StartedAt: session.StartedAt,
		EndedAt:   session.EndedAt,
		CreatedAt: session.CreatedAt,
	}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.ErrRoomCodeTaken
	}
	return err
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", sessionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) GetJoinableSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	var row sessionRow
	err := s.db.NewSelect().Model(&row).
		Where("room_code = ?", code).
		Where("status IN (?)", bun.In([]string{string(domain.StatusWaiting), string(domain.StatusInProgress)})).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) SetSessionStarted(ctx context.Context, sessionID string, at time.Time) error {
	return s.updateStatus(ctx, sessionID, domain.StatusInProgress, "started_at", at)
}

func (s *Store) SetSessionCompleted(ctx context.Context, sessionID string, at time.Time) error {
	return s.updateStatus(ctx, sessionID, domain.StatusCompleted, "ended_at", at)
}

func (s *Store) updateStatus(ctx context.Context, sessionID string, status domain.SessionStatus, stampColumn string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*sessionRow)(nil)).
		Set("status = ?", string(status)).
		Set(stampColumn+" = ?", at).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) AddParticipant(ctx context.Context, p domain.Participant) error {
	row := participantRow{
		SessionID:   p.SessionID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		JoinedAt:    p.JoinedAt,
	}
	// A rejoin keeps the original row, display name included.
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (session_id, user_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	var rows []participantRow
	err := s.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Participant, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Participant{
			SessionID:   r.SessionID,
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			JoinedAt:    r.JoinedAt,
		})
	}
	return out, nil
}

func (s *Store) SaveAnswer(ctx context.Context, a domain.SubmittedAnswer) error {
	row := answerRow{
		SessionID:        a.SessionID,
		UserID:           a.UserID,
		QuestionID:       a.QuestionID,
		SelectedAnswerID: a.AnswerID,
		IsCorrect:        a.Correct,
		AnsweredAt:       a.AnsweredAt,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (session_id, user_id, question_id) DO UPDATE").
		Set("selected_answer_id = EXCLUDED.selected_answer_id").
		Set("is_correct = EXCLUDED.is_correct").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	return err
}

func (s *Store) ListAnswers(ctx context.Context, sessionID string) ([]domain.SubmittedAnswer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return answerRowsToDomain(rows), nil
}

func (s *Store) ListQuestionAnswers(ctx context.Context, sessionID, questionID string) ([]domain.SubmittedAnswer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Where("question_id = ?", questionID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return answerRowsToDomain(rows), nil
}

func (s *Store) SaveResults(ctx context.Context, results []domain.SessionResult) error {
	if len(results) == 0 {
		return nil
	}
	rows := make([]resultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, resultRow{
			SessionID:      r.SessionID,
			UserID:         r.UserID,
			TotalQuestions: r.TotalQuestions,
			CorrectAnswers: r.CorrectAnswers,
			Score:          r.Score,
		})
	}
	// Results are written once at completion; a duplicate finalize keeps
	// the first numbers.
	_, err := s.db.NewInsert().Model(&rows).
		On("CONFLICT (session_id, user_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (s *Store) ListResults(ctx context.Context, sessionID string) ([]domain.SessionResult, error) {
	var rows []resultRow
	err := s.db.NewSelect().Model(&rows).
		Where("session_id = ?", sessionID).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SessionResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SessionResult{
			SessionID:      r.SessionID,
			UserID:         r.UserID,
			TotalQuestions: r.TotalQuestions,
			CorrectAnswers: r.CorrectAnswers,
			Score:          r.Score,
		})
	}
	return out, nil
}

func (r sessionRow) toDomain() domain.Session {
	return domain.Session{
		ID:        r.ID,
		QuizID:    r.QuizID,
		RoomCode:  r.RoomCode,
		CreatorID: r.CreatorID,
		Status:    domain.SessionStatus(r.Status),
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		CreatedAt: r.CreatedAt,
	}
}

func answerRowsToDomain(rows []answerRow) []domain.SubmittedAnswer {
	out := make([]domain.SubmittedAnswer, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SubmittedAnswer{
			SessionID:  r.SessionID,
			UserID:     r.UserID,
			QuestionID: r.QuestionID,
			AnswerID:   r.SelectedAnswerID,
			Correct:    r.IsCorrect,
			AnsweredAt: r.AnsweredAt,
		})
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}
