package app

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yadarochka/quizz-room-server/internal/domain"
	"github.com/yadarochka/quizz-room-server/internal/room"
)

// Store abstracts durable state: sessions, participants, answers, results.
// Unique constraints on room codes, (session, user) and (session, user,
// question) are the correctness backstop for concurrent writes.
type Store interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetJoinableSessionByCode(ctx context.Context, code string) (domain.Session, error)
	SetSessionStarted(ctx context.Context, sessionID string, at time.Time) error
	SetSessionCompleted(ctx context.Context, sessionID string, at time.Time) error

	AddParticipant(ctx context.Context, p domain.Participant) error
	ListParticipants(ctx context.Context, sessionID string) ([]domain.Participant, error)

	SaveAnswer(ctx context.Context, a domain.SubmittedAnswer) error
	ListAnswers(ctx context.Context, sessionID string) ([]domain.SubmittedAnswer, error)
	ListQuestionAnswers(ctx context.Context, sessionID, questionID string) ([]domain.SubmittedAnswer, error)

	SaveResults(ctx context.Context, results []domain.SessionResult) error
	ListResults(ctx context.Context, sessionID string) ([]domain.SessionResult, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// CodeDirectory is an optional fast index of live join codes, used to
// short-circuit collision checks and code resolution. The store remains
// authoritative; a nil directory disables the fast path.
type CodeDirectory interface {
	Claim(ctx context.Context, code, sessionID string) (bool, error)
	Resolve(ctx context.Context, code string) (string, error)
	Release(ctx context.Context, code string) error
}

// ScheduleFunc arms a one-shot timer and returns its cancel function.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func() bool)

// Options tunes the orchestrator.
type Options struct {
	// Codes is the optional live join-code index.
	Codes CodeDirectory
	// Grace is the pause between a question's breakdown broadcast and the
	// next question (or the final results). Defaults to 5s.
	Grace time.Duration
	// CodeLength is the room code length. Defaults to 6.
	CodeLength int
}

const (
	defaultGrace      = 5 * time.Second
	defaultCodeLength = 6
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts   = 32
)

// Service orchestrates live quiz sessions: lifecycle, question timing,
// answer collection and final scoring.
type Service struct {
	store   Store
	quizzes QuizRepository
	rooms   *room.Hub
	codes   CodeDirectory

	grace   time.Duration
	codeLen int

	now      func() time.Time
	schedule ScheduleFunc

	// runtime holds per-session ephemeral state, present only while a
	// session is in_progress. Guarded by mu; each entry has its own lock
	// serializing that session's question flow.
	mu      sync.Mutex
	runtime map[string]*sessionRuntime

	codeRnd   *rand.Rand
	codeRndMu sync.Mutex
}

// sessionRuntime is the ephemeral bookkeeping of one in_progress session.
// The question snapshot is taken at start time and never reread, so quiz
// edits after start cannot affect a running session.
type sessionRuntime struct {
	mu        sync.Mutex
	quizID    string
	quizTitle string
	questions []domain.Question
	index     int
	closed    bool
	cancel    func() bool
}

func NewService(store Store, quizzes QuizRepository, rooms *room.Hub, opts Options) *Service {
	return NewServiceWithScheduler(store, quizzes, rooms, opts, time.Now, func(d time.Duration, fn func()) func() bool {
		return time.AfterFunc(d, fn).Stop
	})
}

// NewServiceWithScheduler is test-only for deterministic clocks and timers.
func NewServiceWithScheduler(store Store, quizzes QuizRepository, rooms *room.Hub, opts Options, now func() time.Time, schedule ScheduleFunc) *Service {
	grace := opts.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	codeLen := opts.CodeLength
	if codeLen <= 0 {
		codeLen = defaultCodeLength
	}
	return &Service{
		store:    store,
		quizzes:  quizzes,
		rooms:    rooms,
		codes:    opts.Codes,
		grace:    grace,
		codeLen:  codeLen,
		now:      now,
		schedule: schedule,
		runtime:  make(map[string]*sessionRuntime),
		codeRnd:  rand.New(rand.NewSource(now().UnixNano())),
	}
}

// CreateSession registers a waiting session for a quiz, assigning a join
// code unique among all non-completed sessions. Generation retries on
// collision; the store's unique constraint is the final arbiter.
func (s *Service) CreateSession(ctx context.Context, quizID, creatorID string) (domain.Session, error) {
	if creatorID == "" {
		return domain.Session{}, domain.ErrUnauthenticated
	}
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	if quiz.CreatorID != "" && quiz.CreatorID != creatorID {
		return domain.Session{}, domain.ErrNotQuizOwner
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		session := domain.Session{
			ID:        uuid.NewString(),
			QuizID:    quizID,
			RoomCode:  s.randomCode(),
			CreatorID: creatorID,
			Status:    domain.StatusWaiting,
			CreatedAt: s.now(),
		}
		if s.codes != nil {
			ok, err := s.codes.Claim(ctx, session.RoomCode, session.ID)
			if err != nil {
				return domain.Session{}, err
			}
			if !ok {
				continue
			}
		}
		err := s.store.CreateSession(ctx, session)
		if errors.Is(err, domain.ErrRoomCodeTaken) {
			if s.codes != nil {
				_ = s.codes.Release(ctx, session.RoomCode)
			}
			continue
		}
		if err != nil {
			if s.codes != nil {
				_ = s.codes.Release(ctx, session.RoomCode)
			}
			return domain.Session{}, err
		}
		return session, nil
	}
	return domain.Session{}, domain.ErrRoomCodeTaken
}

// StartQuiz transitions a waiting session to in_progress and opens the first
// question. Only the session creator may start it.
func (s *Service) StartQuiz(ctx context.Context, sessionID, requesterID string) error {
	if requesterID == "" {
		return domain.ErrUnauthenticated
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.CreatorID != requesterID {
		return domain.ErrNotCreator
	}
	if session.Status != domain.StatusWaiting {
		return domain.ErrSessionNotWaiting
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return err
	}
	if len(quiz.Questions) == 0 {
		return domain.ErrEmptyQuiz
	}

	startedAt := s.now()
	if err := s.store.SetSessionStarted(ctx, sessionID, startedAt); err != nil {
		return err
	}

	rt := &sessionRuntime{
		quizID:    quiz.ID,
		quizTitle: quiz.Title,
		questions: snapshotQuestions(quiz.Questions),
		index:     -1,
	}
	s.mu.Lock()
	if _, exists := s.runtime[sessionID]; exists {
		s.mu.Unlock()
		return domain.ErrSessionNotWaiting
	}
	s.runtime[sessionID] = rt
	s.mu.Unlock()

	s.openQuestion(sessionID, 0)
	return nil
}

// JoinRoom resolves a join code, registers the participant if new, and
// subscribes the caller to the session's room. The returned subscriber must
// be passed to LeaveRoom when the connection goes away.
func (s *Service) JoinRoom(ctx context.Context, code, userID, displayName string) (domain.RoomJoined, *room.Subscriber, error) {
	if userID == "" {
		return domain.RoomJoined{}, nil, domain.ErrUnauthenticated
	}

	session, err := s.resolveCode(ctx, code)
	if err != nil {
		return domain.RoomJoined{}, nil, err
	}

	err = s.store.AddParticipant(ctx, domain.Participant{
		SessionID:   session.ID,
		UserID:      userID,
		DisplayName: displayName,
		JoinedAt:    s.now(),
	})
	if err != nil {
		return domain.RoomJoined{}, nil, err
	}

	participants, err := s.store.ListParticipants(ctx, session.ID)
	if err != nil {
		return domain.RoomJoined{}, nil, err
	}
	views := make([]domain.ParticipantView, 0, len(participants))
	for _, p := range participants {
		views = append(views, domain.ParticipantView{UserID: p.UserID, DisplayName: p.DisplayName})
	}

	sub := s.rooms.Join(session.ID, userID, displayName)
	s.rooms.Broadcast(session.ID, domain.Event{
		Type: domain.EventParticipantJoined,
		Payload: domain.ParticipantPresence{
			DisplayName:       displayName,
			TotalParticipants: len(participants),
		},
	})

	return domain.RoomJoined{
		SessionID:    session.ID,
		QuizID:       session.QuizID,
		Participants: views,
	}, sub, nil
}

// LeaveRoom drops the subscriber from live delivery and announces the new
// headcount. The durable participant record is kept; only live membership
// goes away.
func (s *Service) LeaveRoom(sessionID string, sub *room.Subscriber) {
	if sub == nil {
		return
	}
	remaining := s.rooms.Leave(sessionID, sub)
	s.rooms.Broadcast(sessionID, domain.Event{
		Type: domain.EventParticipantLeft,
		Payload: domain.ParticipantPresence{
			DisplayName:       sub.DisplayName,
			TotalParticipants: remaining,
		},
	})
}

// Session returns a session with its durable participant list.
func (s *Service) Session(ctx context.Context, sessionID string) (domain.Session, []domain.Participant, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return domain.Session{}, nil, err
	}
	return session, participants, nil
}

func (s *Service) resolveCode(ctx context.Context, code string) (domain.Session, error) {
	if s.codes != nil {
		sessionID, err := s.codes.Resolve(ctx, code)
		if err == nil && sessionID != "" {
			session, err := s.store.GetSession(ctx, sessionID)
			if err == nil && session.Joinable() {
				return session, nil
			}
		} else if err != nil {
			log.Printf("code directory resolve failed, falling back to store: %v", err)
		}
	}
	session, err := s.store.GetJoinableSessionByCode(ctx, code)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, domain.ErrRoomNotFound
	}
	return session, err
}

func (s *Service) randomCode() string {
	s.codeRndMu.Lock()
	defer s.codeRndMu.Unlock()
	b := make([]byte, s.codeLen)
	for i := range b {
		b[i] = codeAlphabet[s.codeRnd.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// snapshotQuestions deep-copies the question list so later quiz edits (or
// cache refreshes) cannot leak into a running session.
func snapshotQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	for i := range out {
		answers := make([]domain.Answer, len(questions[i].Answers))
		copy(answers, questions[i].Answers)
		out[i].Answers = answers
	}
	return out
}
