package domain

// EventType names every room-scoped broadcast on the event surface.
type EventType string

const (
	EventRoomJoined          EventType = "room_joined"
	EventParticipantJoined   EventType = "participant_joined"
	EventParticipantLeft     EventType = "participant_left"
	EventQuizStarted         EventType = "quiz_started"
	EventNextQuestion        EventType = "next_question"
	EventQuestionTimeout     EventType = "question_timeout"
	EventQuizFinished        EventType = "quiz_finished"
	EventParticipantAnswered EventType = "participant_answered"
)

// Event is the envelope fanned out to a session's room.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ParticipantView is the membership entry shared with the room.
type ParticipantView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// RoomJoined is the private reply to a successful join_room.
type RoomJoined struct {
	SessionID    string            `json:"session_id"`
	QuizID       string            `json:"quiz_id"`
	Participants []ParticipantView `json:"participants"`
}

// ParticipantPresence announces a join or leave with the live headcount.
type ParticipantPresence struct {
	DisplayName       string `json:"display_name"`
	TotalParticipants int    `json:"total_participants"`
}

// QuizProgress precedes each question with the position in the quiz.
type QuizProgress struct {
	CurrentQuestion int `json:"current_question"`
	TotalQuestions  int `json:"total_questions"`
}

// AnswerOption is an answer as shown to players: no correctness flag.
type AnswerOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionPrompt is the next_question payload.
type QuestionPrompt struct {
	QuestionID     string         `json:"question_id"`
	QuestionText   string         `json:"question_text"`
	Answers        []AnswerOption `json:"answers"`
	TimeLimit      int            `json:"time_limit"`
	QuestionNumber int            `json:"question_number"`
	TotalQuestions int            `json:"total_questions"`
}

// AnswerBreakdown tallies one option of a just-closed question.
type AnswerBreakdown struct {
	AnswerID     string   `json:"answer_id"`
	Count        int      `json:"count"`
	DisplayNames []string `json:"display_name"`
}

// QuestionClosed is the question_timeout payload.
type QuestionClosed struct {
	CorrectAnswerID  string            `json:"correct_answer_id"`
	AnswersBreakdown []AnswerBreakdown `json:"answers_breakdown"`
}

// AnswerRecorded is the private confirmation to the submitter.
type AnswerRecorded struct {
	QuestionID string `json:"question_id"`
	Status     string `json:"status"`
}

// ParticipantAnswered tells the room someone answered, without revealing what.
type ParticipantAnswered struct {
	DisplayName string `json:"display_name"`
	Answered    bool   `json:"answered"`
}
