package app

import (
	"context"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// SubmitAnswer records the caller's standing answer for the currently open
// question. Resubmission before the deadline overwrites the previous value
// without error; once the clock has closed the question the write is
// rejected. The submitter gets a private confirmation, the room only learns
// that someone answered.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID, userID, questionID, answerID string) (domain.AnswerRecorded, error) {
	if userID == "" {
		return domain.AnswerRecorded{}, domain.ErrUnauthenticated
	}
	member, ok := s.rooms.Member(sessionID, userID)
	if !ok {
		return domain.AnswerRecorded{}, domain.ErrNotInSession
	}

	rt := s.getRuntime(sessionID)
	if rt == nil {
		return domain.AnswerRecorded{}, domain.ErrSessionNotActive
	}

	// The runtime lock is the close instant: while held, the clock cannot
	// flip closed or compute the breakdown, so a submission is classified
	// before/after close exactly once.
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.index < 0 {
		return domain.AnswerRecorded{}, domain.ErrQuestionClosed
	}
	question := rt.questions[rt.index]
	if question.ID != questionID || rt.closed {
		return domain.AnswerRecorded{}, domain.ErrQuestionClosed
	}

	var answer *domain.Answer
	for i := range question.Answers {
		if question.Answers[i].ID == answerID {
			answer = &question.Answers[i]
			break
		}
	}
	if answer == nil {
		return domain.AnswerRecorded{}, domain.ErrInvalidAnswer
	}

	err := s.store.SaveAnswer(ctx, domain.SubmittedAnswer{
		SessionID:  sessionID,
		UserID:     userID,
		QuestionID: questionID,
		AnswerID:   answerID,
		Correct:    answer.Correct,
		AnsweredAt: s.now(),
	})
	if err != nil {
		return domain.AnswerRecorded{}, err
	}

	s.rooms.Broadcast(sessionID, domain.Event{
		Type: domain.EventParticipantAnswered,
		Payload: domain.ParticipantAnswered{
			DisplayName: member.DisplayName,
			Answered:    true,
		},
	})

	return domain.AnswerRecorded{QuestionID: questionID, Status: "ok"}, nil
}
