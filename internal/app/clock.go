package app

import (
	"context"
	"log"
	"time"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// The question clock drives the only forward progress of a running session:
// open question -> deadline -> breakdown -> grace -> next question or finish.
// All transitions for one session run under its runtime lock, and every
// callback re-checks the runtime so a stale timer firing after teardown is a
// no-op.

func (s *Service) getRuntime(sessionID string) *sessionRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime[sessionID]
}

// openQuestion publishes question `index` to the room and arms its deadline
// timer. Arming replaces any pending timer for the session, so there is
// never more than one in flight.
func (s *Service) openQuestion(sessionID string, index int) {
	rt := s.getRuntime(sessionID)
	if rt == nil {
		return
	}

	rt.mu.Lock()
	if index >= len(rt.questions) {
		rt.mu.Unlock()
		s.finishQuiz(sessionID)
		return
	}
	if rt.cancel != nil {
		rt.cancel()
	}
	rt.index = index
	rt.closed = false
	question := rt.questions[index]
	total := len(rt.questions)

	options := make([]domain.AnswerOption, 0, len(question.Answers))
	for _, a := range question.Answers {
		options = append(options, domain.AnswerOption{ID: a.ID, Text: a.Text})
	}

	s.rooms.Broadcast(sessionID, domain.Event{
		Type: domain.EventQuizStarted,
		Payload: domain.QuizProgress{
			CurrentQuestion: index + 1,
			TotalQuestions:  total,
		},
	})
	s.rooms.Broadcast(sessionID, domain.Event{
		Type: domain.EventNextQuestion,
		Payload: domain.QuestionPrompt{
			QuestionID:     question.ID,
			QuestionText:   question.Text,
			Answers:        options,
			TimeLimit:      question.TimeLimit,
			QuestionNumber: index + 1,
			TotalQuestions: total,
		},
	})

	rt.cancel = s.schedule(time.Duration(question.TimeLimit)*time.Second, func() {
		s.closeQuestion(sessionID, index)
	})
	rt.mu.Unlock()
}

// closeQuestion marks the question closed, computes the breakdown from
// answers on record at that instant, and schedules the advance after the
// grace interval. The closed flag and the breakdown read share one critical
// section, so a racing submit is counted or rejected, never both.
func (s *Service) closeQuestion(sessionID string, index int) {
	rt := s.getRuntime(sessionID)
	if rt == nil {
		return
	}

	rt.mu.Lock()
	if rt.index != index || rt.closed {
		rt.mu.Unlock()
		return
	}
	rt.closed = true
	question := rt.questions[index]

	s.rooms.Broadcast(sessionID, domain.Event{
		Type:    domain.EventQuestionTimeout,
		Payload: s.questionBreakdown(sessionID, question),
	})

	rt.cancel = s.schedule(s.grace, func() {
		s.advance(sessionID, index+1)
	})
	rt.mu.Unlock()
}

// questionBreakdown tallies who picked what. A storage failure here must not
// stall the room: we log and proceed with whatever could be read.
func (s *Service) questionBreakdown(sessionID string, question domain.Question) domain.QuestionClosed {
	ctx := context.Background()

	answers, err := s.store.ListQuestionAnswers(ctx, sessionID, question.ID)
	if err != nil {
		log.Printf("session %s: breakdown read failed, closing question %s with empty tally: %v", sessionID, question.ID, err)
		answers = nil
	}

	names := make(map[string]string)
	if participants, err := s.store.ListParticipants(ctx, sessionID); err != nil {
		log.Printf("session %s: participant read failed during breakdown: %v", sessionID, err)
	} else {
		for _, p := range participants {
			names[p.UserID] = p.DisplayName
		}
	}

	byAnswer := make(map[string]*domain.AnswerBreakdown)
	for _, a := range answers {
		entry, ok := byAnswer[a.AnswerID]
		if !ok {
			entry = &domain.AnswerBreakdown{AnswerID: a.AnswerID}
			byAnswer[a.AnswerID] = entry
		}
		entry.Count++
		entry.DisplayNames = append(entry.DisplayNames, names[a.UserID])
	}

	// Emit in option order so clients render a stable tally.
	breakdown := make([]domain.AnswerBreakdown, 0, len(byAnswer))
	for _, option := range question.Answers {
		if entry, ok := byAnswer[option.ID]; ok {
			breakdown = append(breakdown, *entry)
		}
	}

	return domain.QuestionClosed{
		CorrectAnswerID:  question.CorrectAnswerID(),
		AnswersBreakdown: breakdown,
	}
}

// advance moves to the next question, or finishes the quiz when none remain.
func (s *Service) advance(sessionID string, next int) {
	rt := s.getRuntime(sessionID)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	stale := rt.index != next-1 || !rt.closed
	rt.mu.Unlock()
	if stale {
		return
	}
	s.openQuestion(sessionID, next)
}

// finishQuiz releases the session's runtime state exactly once, finalizes
// the results and broadcasts them. A second call is a no-op.
func (s *Service) finishQuiz(sessionID string) {
	s.mu.Lock()
	rt, ok := s.runtime[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.runtime, sessionID)
	s.mu.Unlock()

	rt.mu.Lock()
	if rt.cancel != nil {
		rt.cancel()
		rt.cancel = nil
	}
	rt.mu.Unlock()

	// The room must hear the end of the quiz even when persistence is
	// down: broadcast whatever finalize managed to compute.
	report, err := s.finalize(context.Background(), sessionID, rt)
	if err != nil {
		log.Printf("session %s: finalize failed, delivering partial report: %v", sessionID, err)
	}
	s.rooms.Broadcast(sessionID, domain.Event{
		Type:    domain.EventQuizFinished,
		Payload: report,
	})
}
