package app

import (
	"context"
	"log"

	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// finalize computes and persists one SessionResult per participant from the
// ledger contents at this instant, stamps the session completed and retires
// its join code. The returned report includes the per-question review built
// from the start-time snapshot, so the denominator is the question count at
// start, whatever happened to the quiz since.
//
// On error the report carries whatever was computed before the failure, so
// the caller can still deliver it to the room.
func (s *Service) finalize(ctx context.Context, sessionID string, rt *sessionRuntime) (domain.SessionReport, error) {
	total := len(rt.questions)
	report := domain.SessionReport{
		SessionID:      sessionID,
		QuizTitle:      rt.quizTitle,
		TotalQuestions: total,
	}

	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return report, err
	}
	answers, err := s.store.ListAnswers(ctx, sessionID)
	if err != nil {
		return report, err
	}

	byUser := make(map[string]map[string]domain.SubmittedAnswer)
	for _, a := range answers {
		if byUser[a.UserID] == nil {
			byUser[a.UserID] = make(map[string]domain.SubmittedAnswer)
		}
		byUser[a.UserID][a.QuestionID] = a
	}

	results := make([]domain.SessionResult, 0, len(participants))
	report.Participants = make([]domain.ParticipantResult, 0, len(participants))

	for _, p := range participants {
		submitted := byUser[p.UserID]
		correct := 0
		review := make([]domain.QuestionReview, 0, total)
		for _, q := range rt.questions {
			entry := domain.QuestionReview{
				QuestionID:      q.ID,
				QuestionText:    q.Text,
				CorrectAnswerID: q.CorrectAnswerID(),
			}
			for _, a := range q.Answers {
				if a.Correct {
					entry.CorrectAnswerText = a.Text
				}
				if sa, ok := submitted[q.ID]; ok && sa.AnswerID == a.ID {
					entry.ChosenAnswerID = a.ID
					entry.ChosenAnswerText = a.Text
				}
			}
			if sa, ok := submitted[q.ID]; ok && sa.Correct {
				correct++
			}
			review = append(review, entry)
		}

		score := 0.0
		if total > 0 {
			score = float64(correct) / float64(total) * 100
		}
		results = append(results, domain.SessionResult{
			SessionID:      sessionID,
			UserID:         p.UserID,
			TotalQuestions: total,
			CorrectAnswers: correct,
			Score:          score,
		})
		report.Participants = append(report.Participants, domain.ParticipantResult{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			CorrectAnswers: correct,
			TotalQuestions: total,
			Score:          score,
			Review:         review,
		})
	}

	if err := s.store.SaveResults(ctx, results); err != nil {
		return report, err
	}
	if err := s.store.SetSessionCompleted(ctx, sessionID, s.now()); err != nil {
		return report, err
	}
	s.retireCode(ctx, sessionID)
	return report, nil
}

// retireCode drops the join code from the live directory so it can never
// resolve to a completed session. Best effort: the store's joinable filter
// is the authoritative guard.
func (s *Service) retireCode(ctx context.Context, sessionID string) {
	if s.codes == nil {
		return
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		log.Printf("session %s: code retire lookup failed: %v", sessionID, err)
		return
	}
	if err := s.codes.Release(ctx, session.RoomCode); err != nil {
		log.Printf("session %s: code release failed: %v", sessionID, err)
	}
}

// Results returns the persisted final report of a session. It reads the
// rows written at completion, never a live recomputation, so repeated reads
// return identical numbers.
func (s *Service) Results(ctx context.Context, sessionID string) (domain.SessionReport, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}

	rows, err := s.store.ListResults(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	participants, err := s.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return domain.SessionReport{}, err
	}
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		names[p.UserID] = p.DisplayName
	}

	title := ""
	if quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID); err == nil {
		title = quiz.Title
	}

	report := domain.SessionReport{
		SessionID:    sessionID,
		QuizTitle:    title,
		Participants: make([]domain.ParticipantResult, 0, len(rows)),
	}
	for _, r := range rows {
		report.TotalQuestions = r.TotalQuestions
		report.Participants = append(report.Participants, domain.ParticipantResult{
			UserID:         r.UserID,
			DisplayName:    names[r.UserID],
			CorrectAnswers: r.CorrectAnswers,
			TotalQuestions: r.TotalQuestions,
			Score:          r.Score,
		})
	}
	return report, nil
}
