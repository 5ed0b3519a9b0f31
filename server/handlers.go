// File: server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lguibr/bollywood"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/game"
	"github.com/lguibr/quizcast/quiz"
)

const askTimeout = 2 * time.Second

const maxQuizBodyBytes = 1 << 20 // 1 MiB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuizImport validates and stores a quiz document, returning its id.
func (s *Server) handleQuizImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxQuizBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read request body"})
		return
	}
	q, err := quiz.Parse(body)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	id := s.quizzes.Put(q)
	s.logger.Info("quiz imported", zap.String("quiz_id", id), zap.String("title", q.Title))
	writeJSON(w, http.StatusCreated, map[string]string{"quiz_id": id})
}

func (s *Server) handleQuizGet(w http.ResponseWriter, r *http.Request) {
	q, err := s.quizzes.Get(chi.URLParam(r, "quizID"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Quiz not found"})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type createRoomRequest struct {
	QuizID    string          `json:"quiz_id"`
	Quiz      json.RawMessage `json:"quiz"`
	TimeLimit int             `json:"time_limit"`
}

type createRoomResponse struct {
	RoomCode       string `json:"room_code"`
	OrganizerToken string `json:"organizer_token"`
}

// handleRoomCreate resolves the quiz (inline document or stored id), flags
// bonus rounds on a private snapshot, and asks the directory for a room.
func (s *Server) handleRoomCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQuizBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	var snapshot *quiz.Quiz
	switch {
	case len(req.Quiz) > 0:
		q, err := quiz.Parse(req.Quiz)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		snapshot = q
	case req.QuizID != "":
		stored, err := s.quizzes.Get(req.QuizID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "Quiz not found"})
			return
		}
		// Rooms own their snapshot; the stored quiz stays untouched.
		copied := *stored
		copied.Questions = append([]quiz.Question(nil), stored.Questions...)
		snapshot = &copied
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "quiz or quiz_id is required"})
		return
	}
	s.assignBonusRounds(snapshot)

	reply, err := s.engine.Ask(s.directoryPID, game.CreateRoomRequest{
		Quiz:      snapshot,
		TimeLimit: req.TimeLimit,
	}, askTimeout)
	if err != nil {
		s.logger.Error("create room ask failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "room creation failed"})
		return
	}

	switch resp := reply.(type) {
	case game.CreateRoomResponse:
		s.logger.Info("room created", zap.String("room_code", resp.Code))
		writeJSON(w, http.StatusCreated, createRoomResponse{
			RoomCode:       resp.Code,
			OrganizerToken: resp.OrganizerToken,
		})
	case error:
		if errors.Is(resp, game.ErrOverloaded) {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "server is at room capacity"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: resp.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "room creation failed"})
	}
}

type roomStatusResponse struct {
	RoomCode    string `json:"room_code"`
	State       string `json:"state"`
	PlayerCount int    `json:"player_count"`
	QuizTitle   string `json:"quiz_title"`
}

// handleRoomStatus is the pre-join probe: does this code exist, and what
// state is the room in.
func (s *Server) handleRoomStatus(w http.ResponseWriter, r *http.Request) {
	roomPID := s.lookupRoom(chi.URLParam(r, "roomCode"))
	if roomPID == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Room not found"})
		return
	}

	reply, err := s.engine.Ask(roomPID, game.RoomStatusRequest{}, askTimeout)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Room not found"})
		return
	}
	status, ok := reply.(game.RoomStatusResponse)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "room status unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, roomStatusResponse{
		RoomCode:    status.Code,
		State:       status.State,
		PlayerCount: status.PlayerCount,
		QuizTitle:   status.QuizTitle,
	})
}

// lookupRoom resolves a room code through the directory. Nil means unknown.
func (s *Server) lookupRoom(code string) *bollywood.PID {
	reply, err := s.engine.Ask(s.directoryPID, game.LookupRoomRequest{Code: code}, askTimeout)
	if err != nil {
		return nil
	}
	resp, ok := reply.(game.LookupRoomResponse)
	if !ok {
		return nil
	}
	return resp.RoomPID
}

// handleWS upgrades the realtime channel. The room code and client id come
// from the path; the role comes from query flags. Unknown rooms still get an
// upgraded socket so the error can travel as a typed frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomCode := chi.URLParam(r, "roomCode")
	clientID := chi.URLParam(r, "clientID")

	role := game.RolePlayer
	switch {
	case r.URL.Query().Get("organizer") == "true":
		role = game.RoleOrganizer
	case r.URL.Query().Get("spectator") == "true":
		role = game.RoleSpectator
	}
	token := r.URL.Query().Get("token")

	roomPID := s.lookupRoom(roomCode)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	if roomPID == nil {
		frame, _ := json.Marshal(game.ErrorEvent{
			EventHeader: game.EventHeader{Type: game.EvtError},
			Message:     "Room not found",
		})
		ws.WriteMessage(websocket.TextMessage, frame)
		ws.Close()
		return
	}

	client := newWSClient(clientID, ws, s.engine, roomPID, s.cfg, s.logger)
	s.logger.Info("client connected",
		zap.String("room", roomCode),
		zap.String("conn", clientID),
		zap.String("role", role.String()))
	s.engine.Send(roomPID, game.ClientConnected{Conn: client, Role: role, Token: token}, nil)
	client.run()
}
