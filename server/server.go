// File: server/server.go
package server

import (
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/lguibr/bollywood"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/quiz"
	"github.com/lguibr/quizcast/utils"
)

// Server is the HTTP control plane plus the WebSocket entry point. All game
// state lives behind the actor engine; the server only translates requests
// into Ask calls and connections into actor messages.
type Server struct {
	cfg          utils.Config
	logger       *zap.Logger
	engine       *bollywood.Engine
	directoryPID *bollywood.PID
	quizzes      *quiz.Store
	upgrader     websocket.Upgrader

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewServer wires the HTTP layer to a running engine and room directory.
func NewServer(cfg utils.Config, logger *zap.Logger, engine *bollywood.Engine, directoryPID *bollywood.PID, quizzes *quiz.Store) *Server {
	s := &Server{
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "server")),
		engine:       engine,
		directoryPID: directoryPID,
		quizzes:      quizzes,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/health", s.handleHealth)
	r.Post("/quiz/import", s.handleQuizImport)
	r.Get("/quiz/{quizID}", s.handleQuizGet)
	r.Post("/room/create", s.handleRoomCreate)
	r.Get("/room/{roomCode}", s.handleRoomStatus)
	r.Get("/ws/{roomCode}/{clientID}", s.handleWS)

	return r
}

// checkOrigin enforces the configured origin allowlist. An empty list allows
// everything, which is the development default.
func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser client
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

// assignBonusRounds flags bonus questions on a quiz snapshot under the rng
// lock, since rand.Rand is not safe for concurrent use.
func (s *Server) assignBonusRounds(q *quiz.Quiz) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	q.AssignBonusRounds(s.cfg.BonusRoundFraction, s.rng)
}
