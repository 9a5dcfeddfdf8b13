package memory

import (
	"context"
	"sync"
	"time"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// Store is the in-memory implementation of app.Store, used in tests and in
// the no-database mode of the server. The same key uniqueness the postgres
// schema enforces with constraints is enforced here with map keys.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]domain.Session
	codes        map[string]string // room code -> session id
	participants map[string][]domain.Participant
	answers      map[string]map[answerKey]domain.SubmittedAnswer
	results      map[string][]domain.SessionResult
}

type answerKey struct {
	userID     string
	questionID string
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]domain.Session),
		codes:        make(map[string]string),
		participants: make(map[string][]domain.Participant),
		answers:      make(map[string]map[answerKey]domain.SubmittedAnswer),
		results:      make(map[string][]domain.SessionResult),
	}
}

func (s *Store) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[session.RoomCode]; taken {
		return domain.ErrRoomCodeTaken
	}
	s.codes[session.RoomCode] = session.ID
	s.sessions[session.ID] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) GetJoinableSessionByCode(_ context.Context, code string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.codes[code]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	session, ok := s.sessions[sessionID]
	if !ok || !session.Joinable() {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) SetSessionStarted(_ context.Context, sessionID string, at time.Time) error {
	return s.updateSession(sessionID, func(session *domain.Session) {
		session.Status = domain.StatusInProgress
		session.StartedAt = &at
	})
}

func (s *Store) SetSessionCompleted(_ context.Context, sessionID string, at time.Time) error {
	return s.updateSession(sessionID, func(session *domain.Session) {
		session.Status = domain.StatusCompleted
		session.EndedAt = &at
	})
}

func (s *Store) updateSession(sessionID string, mutate func(*domain.Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	mutate(&session)
	s.sessions[sessionID] = session
	return nil
}

// AddParticipant registers the participant once; a rejoin keeps the record
// (and display name) from the first join.
func (s *Store) AddParticipant(_ context.Context, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.participants[p.SessionID] {
		if existing.UserID == p.UserID {
			return nil
		}
	}
	s.participants[p.SessionID] = append(s.participants[p.SessionID], p)
	return nil
}

func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, len(s.participants[sessionID]))
	copy(out, s.participants[sessionID])
	return out, nil
}

// SaveAnswer upserts the (session, user, question) row: the last write
// before the question closes wins.
func (s *Store) SaveAnswer(_ context.Context, a domain.SubmittedAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers[a.SessionID] == nil {
		s.answers[a.SessionID] = make(map[answerKey]domain.SubmittedAnswer)
	}
	s.answers[a.SessionID][answerKey{userID: a.UserID, questionID: a.QuestionID}] = a
	return nil
}

func (s *Store) ListAnswers(_ context.Context, sessionID string) ([]domain.SubmittedAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SubmittedAnswer, 0, len(s.answers[sessionID]))
	for _, a := range s.answers[sessionID] {
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListQuestionAnswers(_ context.Context, sessionID, questionID string) ([]domain.SubmittedAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SubmittedAnswer
	for key, a := range s.answers[sessionID] {
		if key.questionID == questionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) SaveResults(_ context.Context, results []domain.SessionResult) error {
	if len(results) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionID := results[0].SessionID
	s.results[sessionID] = append([]domain.SessionResult(nil), results...)
	return nil
}

func (s *Store) ListResults(_ context.Context, sessionID string) ([]domain.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SessionResult, len(s.results[sessionID]))
	copy(out, s.results[sessionID])
	return out, nil
}
