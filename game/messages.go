// File: game/messages.go
package game

import (
	"github.com/lguibr/bollywood"

	"github.com/lguibr/quizcast/quiz"
)

// --- Actor messages (internal communication) ---

// Role is how a connection identifies itself at upgrade time.
type Role int

const (
	RolePlayer Role = iota
	RoleOrganizer
	RoleSpectator
)

func (r Role) String() string {
	switch r {
	case RoleOrganizer:
		return "organizer"
	case RoleSpectator:
		return "spectator"
	default:
		return "player"
	}
}

// --- RoomDirectoryActor messages (used via Ask from the HTTP layer) ---

// CreateRoomRequest asks the directory to spawn a new room.
type CreateRoomRequest struct {
	Quiz      *quiz.Quiz
	TimeLimit int // seconds per question
}

// CreateRoomResponse carries the new room's code and organizer token.
type CreateRoomResponse struct {
	Code           string
	OrganizerToken string
	RoomPID        *bollywood.PID
}

// LookupRoomRequest resolves a room code to its actor.
type LookupRoomRequest struct {
	Code string
}

// LookupRoomResponse is the reply; RoomPID is nil when the code is unknown.
type LookupRoomResponse struct {
	RoomPID *bollywood.PID
}

// RoomStatusRequest asks a room for a lightweight public summary.
type RoomStatusRequest struct{}

// RoomStatusResponse is the reply to RoomStatusRequest.
type RoomStatusResponse struct {
	Code        string
	State       string
	PlayerCount int
	QuizTitle   string
}

// RoomTerminated tells the directory a room reached Closed and should be
// evicted and stopped.
type RoomTerminated struct {
	Code    string
	RoomPID *bollywood.PID
}

// --- RoomActor messages (from the connection adapter) ---

// ClientConnected announces a freshly upgraded connection to the room.
type ClientConnected struct {
	Conn  Conn
	Role  Role
	Token string // organizer token claim, empty otherwise
}

// ClientCommand carries one parsed inbound command.
type ClientCommand struct {
	Conn    Conn
	Command interface{}
}

// ClientDisconnected reports an unclean close. It is processed after any
// command already enqueued from the same connection.
type ClientDisconnected struct {
	Conn Conn
}

// --- RoomActor timer self-messages ---
// Each carries the question epoch it was scheduled in; stale fires are
// dropped, which makes timer cancellation race-free.

type questionTickMsg struct {
	Epoch     int
	Remaining int
}

type graceExpiredMsg struct {
	Epoch int
}

type ttlCheckMsg struct{}
