package domain

import "time"

// SessionStatus is the lifecycle state of a quiz session.
// It only ever moves forward: waiting -> in_progress -> completed.
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "waiting"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// Answer is one selectable option of a question.
type Answer struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct answer.
// TimeLimit is the per-question deadline in seconds.
type Question struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	TimeLimit int      `json:"timeLimit"`
	Answers   []Answer `json:"answers"`
}

// Quiz is an ordered collection of questions, read-only to the runtime.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatorID string     `json:"creatorId"`
	Questions []Question `json:"questions"`
}

// CorrectAnswerID returns the ID of the question's correct answer, or "".
func (q Question) CorrectAnswerID() string {
	for _, a := range q.Answers {
		if a.Correct {
			return a.ID
		}
	}
	return ""
}

// Session is one timed playthrough of a quiz by a group of participants.
type Session struct {
	ID        string        `json:"id"`
	QuizID    string        `json:"quizId"`
	RoomCode  string        `json:"roomCode"`
	CreatorID string        `json:"creatorId"`
	Status    SessionStatus `json:"status"`
	StartedAt *time.Time    `json:"startedAt,omitempty"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Joinable reports whether the session still accepts join_room calls.
func (s Session) Joinable() bool {
	return s.Status == StatusWaiting || s.Status == StatusInProgress
}

// Participant is a (session, user) registration. The display name chosen at
// the first join persists; rejoining does not duplicate or rename it.
type Participant struct {
	SessionID   string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// SubmittedAnswer is the single standing answer of a participant for one
// question. Resubmission before the question closes overwrites it.
type SubmittedAnswer struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	QuestionID string    `json:"questionId"`
	AnswerID   string    `json:"answerId"`
	Correct    bool      `json:"correct"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// SessionResult is the persisted final score of one participant.
// Written once, at session completion.
type SessionResult struct {
	SessionID      string  `json:"sessionId"`
	UserID         string  `json:"userId"`
	TotalQuestions int     `json:"totalQuestions"`
	CorrectAnswers int     `json:"correctAnswers"`
	Score          float64 `json:"score"`
}

// QuestionReview pairs what a participant chose with what was correct,
// for the post-game review screen.
type QuestionReview struct {
	QuestionID        string `json:"questionId"`
	QuestionText      string `json:"questionText"`
	ChosenAnswerID    string `json:"chosenAnswerId,omitempty"`
	ChosenAnswerText  string `json:"chosenAnswerText,omitempty"`
	CorrectAnswerID   string `json:"correctAnswerId"`
	CorrectAnswerText string `json:"correctAnswerText"`
}

// ParticipantResult is one row of the final report.
type ParticipantResult struct {
	UserID         string           `json:"userId"`
	DisplayName    string           `json:"displayName"`
	CorrectAnswers int              `json:"correctAnswers"`
	TotalQuestions int              `json:"totalQuestions"`
	Score          float64          `json:"score"`
	Review         []QuestionReview `json:"review,omitempty"`
}

// SessionReport is the full final scoreboard for a completed session.
type SessionReport struct {
	SessionID      string              `json:"sessionId"`
	QuizTitle      string              `json:"quizTitle"`
	TotalQuestions int                 `json:"totalQuestions"`
	Participants   []ParticipantResult `json:"participants"`
}
