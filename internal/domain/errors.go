package domain

import "errors"

var (
	// ErrUnauthenticated is returned when no resolvable identity accompanies a call.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound indicates an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoomNotFound indicates a join code that matches no joinable session.
	ErrRoomNotFound = errors.New("room not found or already closed")
	// ErrRoomCodeTaken indicates a join-code collision on session creation.
	ErrRoomCodeTaken = errors.New("room code already taken")
	// ErrNotCreator is returned when someone other than the creator starts a session.
	ErrNotCreator = errors.New("only the creator can start the quiz")
	// ErrNotQuizOwner is returned when someone tries to host a quiz they do not own.
	ErrNotQuizOwner = errors.New("only the quiz owner can create a session")
	// ErrSessionNotWaiting is returned when starting a session that already ran.
	ErrSessionNotWaiting = errors.New("session is not in waiting state")
	// ErrSessionNotActive is returned when an answer arrives and no question is open.
	ErrSessionNotActive = errors.New("session has no open question")
	// ErrEmptyQuiz is returned when starting a session whose quiz has no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrNotInSession is returned when the caller has no live room membership.
	ErrNotInSession = errors.New("not in a session")
	// ErrInvalidAnswer indicates the answer does not belong to the question.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrQuestionClosed rejects submissions for a question whose deadline passed.
	ErrQuestionClosed = errors.New("question is closed")
)
