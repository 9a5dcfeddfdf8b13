package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yadarochka/quizz-room-server/internal/app"
	"github.com/yadarochka/quizz-room-server/internal/domain"
	"github.com/yadarochka/quizz-room-server/internal/room"
)

type WSHandler struct {
	service  *app.Service
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRoomPayload struct {
	RoomCode    string `json:"room_code"`
	DisplayName string `json:"display_name"`
}

type startQuizPayload struct {
	SessionID string `json:"session_id"`
}

type submitAnswerPayload struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// ServeWS upgrades the request and wires the connection into the session
// orchestrator. Identity arrives as query parameters; a connection without
// a user id is unauthenticated and rejected before the upgrade.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	var pumps sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var (
		sessionID string
		sub       *room.Subscriber
	)

	// pumpEvents forwards room broadcasts to this connection until the
	// subscription is closed (leave or session teardown).
	pumpEvents := func(s *room.Subscriber) {
		pumps.Add(1)
		go func() {
			defer pumps.Done()
			for {
				select {
				case evt, ok := <-s.Events():
					if !ok {
						return
					}
					select {
					case send <- outboundMessage[any]{Type: string(evt.Type), Payload: evt.Payload}:
					case <-closeSignals:
						return
					}
				case <-closeSignals:
					return
				}
			}
		}()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "join_room":
			var payload joinRoomPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("room_join_error", "invalid_argument", "invalid join_room payload")
				continue
			}
			name := payload.DisplayName
			if name == "" {
				name = displayName
			}
			if payload.RoomCode == "" || name == "" {
				send <- errorMessage("room_join_error", "invalid_argument", "room_code and display_name are required")
				continue
			}
			// An explicit rejoin replaces the previous live membership.
			if sub != nil {
				h.service.LeaveRoom(sessionID, sub)
				sub = nil
				sessionID = ""
			}
			joined, newSub, err := h.service.JoinRoom(r.Context(), payload.RoomCode, userID, name)
			if err != nil {
				send <- wireError("room_join_error", err)
				continue
			}
			sessionID = joined.SessionID
			sub = newSub
			pumpEvents(sub)
			send <- outboundMessage[any]{Type: string(domain.EventRoomJoined), Payload: joined}

		case "start_quiz":
			var payload startQuizPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.SessionID == "" {
				send <- errorMessage("quiz_error", "invalid_argument", "session_id is required")
				continue
			}
			if err := h.service.StartQuiz(r.Context(), payload.SessionID, userID); err != nil {
				send <- wireError("quiz_error", err)
			}

		case "submit_answer":
			var payload submitAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.QuestionID == "" || payload.AnswerID == "" {
				send <- errorMessage("answer_error", "invalid_argument", "question_id and answer_id are required")
				continue
			}
			if sub == nil {
				send <- wireError("answer_error", domain.ErrNotInSession)
				continue
			}
			ack, err := h.service.SubmitAnswer(r.Context(), sessionID, userID, payload.QuestionID, payload.AnswerID)
			if err != nil {
				send <- wireError("answer_error", err)
				continue
			}
			send <- outboundMessage[any]{Type: "answer_submitted", Payload: ack}

		case "leave_room":
			if sub != nil {
				h.service.LeaveRoom(sessionID, sub)
				sub = nil
				sessionID = ""
			}

		default:
			send <- errorMessage("quiz_error", "invalid_argument", "unsupported message type")
		}
	}

	if sub != nil {
		h.service.LeaveRoom(sessionID, sub)
	}
	close(closeSignals)
	pumps.Wait()
	close(send)
	<-writerDone
}

// wireError maps a service error to a private error event. Internal errors
// keep their detail in the server log only.
func wireError(eventType string, err error) outboundMessage[any] {
	code := errorCode(err)
	msg := err.Error()
	if code == "internal" {
		log.Printf("%s: %v", eventType, err)
		msg = "internal server error"
	}
	return errorMessage(eventType, code, msg)
}

func errorMessage(eventType, code, msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: eventType, Payload: errorPayload{Code: code, Error: msg}}
}

// errorCode assigns each service error its stable wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrNotCreator), errors.Is(err, domain.ErrNotQuizOwner):
		return "unauthorized"
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionNotWaiting),
		errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrQuestionClosed):
		return "invalid_state"
	case errors.Is(err, domain.ErrInvalidAnswer):
		return "invalid_answer"
	case errors.Is(err, domain.ErrEmptyQuiz):
		return "empty_quiz"
	case errors.Is(err, domain.ErrNotInSession):
		return "not_in_session"
	default:
		return "internal"
	}
}
