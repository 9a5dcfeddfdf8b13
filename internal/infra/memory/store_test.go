package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

func TestCreateSessionEnforcesUniqueCode(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first := domain.Session{ID: "s1", QuizID: "quiz-1", RoomCode: "ABC123", CreatorID: "host", Status: domain.StatusWaiting}
	if err := store.CreateSession(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := domain.Session{ID: "s2", QuizID: "quiz-1", RoomCode: "ABC123", CreatorID: "host", Status: domain.StatusWaiting}
	if err := store.CreateSession(ctx, dup); !errors.Is(err, domain.ErrRoomCodeTaken) {
		t.Fatalf("expected code collision, got %v", err)
	}
}

func TestJoinableLookupExcludesCompleted(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	session := domain.Session{ID: "s1", QuizID: "quiz-1", RoomCode: "ABC123", CreatorID: "host", Status: domain.StatusWaiting}
	_ = store.CreateSession(ctx, session)

	if _, err := store.GetJoinableSessionByCode(ctx, "ABC123"); err != nil {
		t.Fatalf("expected joinable, got %v", err)
	}

	if err := store.SetSessionStarted(ctx, "s1", time.Now()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := store.GetJoinableSessionByCode(ctx, "ABC123"); err != nil {
		t.Fatalf("in_progress must stay joinable, got %v", err)
	}

	if err := store.SetSessionCompleted(ctx, "s1", time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := store.GetJoinableSessionByCode(ctx, "ABC123"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected retired code, got %v", err)
	}

	got, err := store.GetSession(ctx, "s1")
	if err != nil || got.Status != domain.StatusCompleted || got.EndedAt == nil {
		t.Fatalf("history must stay fetchable by id, got %+v err=%v", got, err)
	}
}

func TestAddParticipantIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_ = store.AddParticipant(ctx, domain.Participant{SessionID: "s1", UserID: "u1", DisplayName: "Alice"})
	_ = store.AddParticipant(ctx, domain.Participant{SessionID: "s1", UserID: "u1", DisplayName: "Alicia"})

	participants, _ := store.ListParticipants(ctx, "s1")
	if len(participants) != 1 {
		t.Fatalf("expected one participant, got %d", len(participants))
	}
	if participants[0].DisplayName != "Alice" {
		t.Fatalf("expected first display name kept, got %q", participants[0].DisplayName)
	}
}

func TestSaveAnswerOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_ = store.SaveAnswer(ctx, domain.SubmittedAnswer{SessionID: "s1", UserID: "u1", QuestionID: "q1", AnswerID: "a1", Correct: false})
	_ = store.SaveAnswer(ctx, domain.SubmittedAnswer{SessionID: "s1", UserID: "u1", QuestionID: "q1", AnswerID: "a2", Correct: true})

	answers, _ := store.ListQuestionAnswers(ctx, "s1", "q1")
	if len(answers) != 1 {
		t.Fatalf("expected one standing answer, got %d", len(answers))
	}
	if answers[0].AnswerID != "a2" || !answers[0].Correct {
		t.Fatalf("expected last answer to win, got %+v", answers[0])
	}
}

func TestResultsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	rows := []domain.SessionResult{
		{SessionID: "s1", UserID: "u1", TotalQuestions: 2, CorrectAnswers: 1, Score: 50},
		{SessionID: "s1", UserID: "u2", TotalQuestions: 2, CorrectAnswers: 2, Score: 100},
	}
	if err := store.SaveResults(ctx, rows); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.ListResults(ctx, "s1")
	if err != nil || len(got) != 2 {
		t.Fatalf("expected 2 results, got %d err=%v", len(got), err)
	}
}
