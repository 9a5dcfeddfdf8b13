package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/yadarochka/quizz-room-server/internal/app"
	"github.com/yadarochka/quizz-room-server/internal/domain"
)

// SessionHandler exposes the request/response side of sessions: creating
// one for a quiz, inspecting it, and fetching the persisted final results.
// The live flow happens over /ws.
type SessionHandler struct {
	service *app.Service
}

func NewSessionHandler(service *app.Service) *SessionHandler {
	return &SessionHandler{service: service}
}

// Register mounts the session routes on the mux.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /sessions", h.handleCreate)
	mux.HandleFunc("GET /sessions/{session_id}", h.handleGet)
	mux.HandleFunc("GET /sessions/{session_id}/results", h.handleResults)
}

type createSessionRequest struct {
	QuizID string `json:"quiz_id"`
}

type sessionResponse struct {
	ID        string                `json:"id"`
	QuizID    string                `json:"quiz_id"`
	RoomCode  string                `json:"room_code"`
	Status    domain.SessionStatus  `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	Members   []participantResponse `json:"participants,omitempty"`
}

type participantResponse struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

func (h *SessionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		writeError(w, http.StatusBadRequest, "quiz_id is required")
		return
	}

	session, err := h.service.CreateSession(r.Context(), req.QuizID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:        session.ID,
		QuizID:    session.QuizID,
		RoomCode:  session.RoomCode,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
	})
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, participants, err := h.service.Session(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	members := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		members = append(members, participantResponse{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			JoinedAt:    p.JoinedAt,
		})
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:        session.ID,
		QuizID:    session.QuizID,
		RoomCode:  session.RoomCode,
		Status:    session.Status,
		CreatedAt: session.CreatedAt,
		Members:   members,
	})
}

func (h *SessionHandler) handleResults(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Results(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrNotQuizOwner), errors.Is(err, domain.ErrNotCreator):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrSessionNotWaiting):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("session handler error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
