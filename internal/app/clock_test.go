package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yadarochka/quizz-room-server/internal/app"
	"github.com/yadarochka/quizz-room-server/internal/domain"
	"github.com/yadarochka/quizz-room-server/internal/infra/memory"
	"github.com/yadarochka/quizz-room-server/internal/room"
)

func TestResubmitBeforeDeadlineLastAnswerWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, _ := h.svc.CreateSession(ctx, "quiz-1", "host")
	_, sub, err := h.svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	expectEvent(t, sub, domain.EventParticipantJoined)

	if err := h.svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	prompt := expectEvent(t, sub, domain.EventNextQuestion).Payload.(domain.QuestionPrompt)
	if prompt.QuestionID != "q1" || prompt.TimeLimit != 5 || prompt.QuestionNumber != 1 || prompt.TotalQuestions != 1 {
		t.Fatalf("unexpected prompt: %+v", prompt)
	}
	if len(prompt.Answers) != 2 {
		t.Fatalf("expected 2 options, got %d", len(prompt.Answers))
	}

	// Wrong answer first, then the right one before the deadline.
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	ack, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a2")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if ack.Status != "ok" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	expectEvent(t, sub, domain.EventParticipantAnswered)

	h.sched.fireNext(t) // deadline
	closed := expectEvent(t, sub, domain.EventQuestionTimeout).Payload.(domain.QuestionClosed)
	if closed.CorrectAnswerID != "a2" {
		t.Fatalf("expected correct answer a2, got %q", closed.CorrectAnswerID)
	}
	if len(closed.AnswersBreakdown) != 1 {
		t.Fatalf("expected a single tallied option, got %+v", closed.AnswersBreakdown)
	}
	tally := closed.AnswersBreakdown[0]
	if tally.AnswerID != "a2" || tally.Count != 1 || len(tally.DisplayNames) != 1 || tally.DisplayNames[0] != "Alice" {
		t.Fatalf("expected one vote for a2 by Alice, got %+v", tally)
	}

	h.sched.fireNext(t) // grace -> finish
	report := expectEvent(t, sub, domain.EventQuizFinished).Payload.(domain.SessionReport)
	if len(report.Participants) != 1 {
		t.Fatalf("expected one result, got %+v", report.Participants)
	}
	result := report.Participants[0]
	if result.CorrectAnswers != 1 || result.TotalQuestions != 1 || result.Score != 100 {
		t.Fatalf("expected 1/1 = 100, got %+v", result)
	}

	got, _ := h.store.GetSession(ctx, session.ID)
	if got.Status != domain.StatusCompleted || got.EndedAt == nil {
		t.Fatalf("expected completed session with ended_at, got %+v", got)
	}
	if h.sched.pending() != 0 {
		t.Fatalf("expected no timers left, got %d", h.sched.pending())
	}
}

func TestNoAnswerScoresZero(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, _ := h.svc.CreateSession(ctx, "quiz-1", "host")
	_, sub, _ := h.svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")
	if err := h.svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.sched.fireNext(t) // deadline, nothing submitted
	closed := expectEvent(t, sub, domain.EventQuestionTimeout).Payload.(domain.QuestionClosed)
	if len(closed.AnswersBreakdown) != 0 {
		t.Fatalf("expected empty breakdown, got %+v", closed.AnswersBreakdown)
	}

	h.sched.fireNext(t) // grace -> finish
	report := expectEvent(t, sub, domain.EventQuizFinished).Payload.(domain.SessionReport)
	result := report.Participants[0]
	if result.CorrectAnswers != 0 || result.Score != 0 {
		t.Fatalf("expected zero score, got %+v", result)
	}
}

func TestLateSubmissionRejectedAndExcluded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, _ := h.svc.CreateSession(ctx, "quiz-1", "host")
	_, alice, _ := h.svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")
	_, _, _ = h.svc.JoinRoom(ctx, session.RoomCode, "u2", "Bob")
	if err := h.svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a2"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.sched.fireNext(t) // deadline

	// Bob's answer arrives after the close instant (delayed delivery).
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u2", "q1", "a2"); !errors.Is(err, domain.ErrQuestionClosed) {
		t.Fatalf("expected late submission rejected, got %v", err)
	}

	closed := expectEvent(t, alice, domain.EventQuestionTimeout).Payload.(domain.QuestionClosed)
	if len(closed.AnswersBreakdown) != 1 || closed.AnswersBreakdown[0].Count != 1 {
		t.Fatalf("late answer must not appear in breakdown: %+v", closed.AnswersBreakdown)
	}

	h.sched.fireNext(t) // grace -> finish
	report := expectEvent(t, alice, domain.EventQuizFinished).Payload.(domain.SessionReport)
	scores := map[string]float64{}
	for _, r := range report.Participants {
		scores[r.UserID] = r.Score
	}
	if scores["u1"] != 100 || scores["u2"] != 0 {
		t.Fatalf("expected Alice 100 / Bob 0, got %v", scores)
	}
}

func TestBroadcastsAreCausallyOrdered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, _ := h.svc.CreateSession(ctx, "quiz-2", "host")
	_, sub, _ := h.svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")
	if err := h.svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a2"); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	h.sched.fireNext(t) // q1 deadline
	h.sched.fireNext(t) // grace -> q2
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q2", "a3"); err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	h.sched.fireNext(t) // q2 deadline
	h.sched.fireNext(t) // grace -> finish

	want := []domain.EventType{
		domain.EventParticipantJoined,
		domain.EventQuizStarted,
		domain.EventNextQuestion,
		domain.EventParticipantAnswered,
		domain.EventQuestionTimeout,
		domain.EventQuizStarted,
		domain.EventNextQuestion,
		domain.EventParticipantAnswered,
		domain.EventQuestionTimeout,
		domain.EventQuizFinished,
	}
	var questions []string
	for i, wantType := range want {
		evt := nextEvent(t, sub)
		if evt.Type != wantType {
			t.Fatalf("event %d: expected %s, got %s", i, wantType, evt.Type)
		}
		if evt.Type == domain.EventNextQuestion {
			questions = append(questions, evt.Payload.(domain.QuestionPrompt).QuestionID)
		}
	}
	if len(questions) != 2 || questions[0] != "q1" || questions[1] != "q2" {
		t.Fatalf("expected q1 then q2, got %v", questions)
	}

	report, err := h.svc.Results(ctx, session.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if report.Participants[0].Score != 100 || report.Participants[0].CorrectAnswers != 2 {
		t.Fatalf("expected perfect score, got %+v", report.Participants[0])
	}
}

func TestStaleTimerFireIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, _ := h.svc.CreateSession(ctx, "quiz-1", "host")
	_, sub, _ := h.svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")
	if err := h.svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	h.sched.fireNext(t) // deadline
	expectEvent(t, sub, domain.EventQuestionTimeout)

	// A duplicate deadline fire (stale timer) must not close twice.
	h.sched.refire(t, 0)

	h.sched.fireNext(t) // grace -> finish
	expectEvent(t, sub, domain.EventQuizFinished)

	// And a stale fire after teardown is a safe no-op too.
	h.sched.refire(t, 0)
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected event after completion: %v", evt)
	default:
	}
}

// brokenResultsStore refuses to persist results, simulating storage going
// down between the last question and completion.
type brokenResultsStore struct {
	app.Store
}

func (s *brokenResultsStore) SaveResults(context.Context, []domain.SessionResult) error {
	return errors.New("storage unavailable")
}

func TestFinishDeliversReportWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	store := &brokenResultsStore{Store: memory.NewStore()}
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(testQuizzes()), 5*time.Minute)
	hub := room.NewHub()
	sched := &fakeScheduler{}
	svc := app.NewServiceWithScheduler(store, quizzes, hub, app.Options{Grace: time.Second}, time.Now, sched.schedule)

	session, _ := svc.CreateSession(ctx, "quiz-1", "host")
	_, sub, _ := svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")
	if err := svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a2"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	sched.fireNext(t) // deadline
	sched.fireNext(t) // grace -> finish

	// The room still hears the end of the quiz, with the computed scores.
	report := expectEvent(t, sub, domain.EventQuizFinished).Payload.(domain.SessionReport)
	if len(report.Participants) != 1 || report.Participants[0].Score != 100 {
		t.Fatalf("expected computed report despite persist failure, got %+v", report)
	}
}

func TestSubmitChecks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	session, _ := h.svc.CreateSession(ctx, "quiz-1", "host")
	_, _, _ = h.svc.JoinRoom(ctx, session.RoomCode, "u1", "Alice")

	// No question open yet.
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a2"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected no open question, got %v", err)
	}

	if err := h.svc.StartQuiz(ctx, session.ID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "", "q1", "a2"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "stranger", "q1", "a2"); !errors.Is(err, domain.ErrNotInSession) {
		t.Fatalf("expected not in session, got %v", err)
	}
	if _, err := h.svc.SubmitAnswer(ctx, session.ID, "u1", "q1", "a999"); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected invalid answer, got %v", err)
	}
}
