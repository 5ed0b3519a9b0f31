// File: game/directory.go
package game

import (
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/lguibr/bollywood"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/utils"
)

// roomEntry is one live room from the directory's point of view.
type roomEntry struct {
	pid  *bollywood.PID
	code string
}

// RoomDirectoryActor owns the code-to-room mapping. It spawns rooms, answers
// lookups from the HTTP layer via Ask, and evicts rooms that terminate. All
// state lives behind Receive; no locks needed.
type RoomDirectoryActor struct {
	engine  *bollywood.Engine
	cfg     utils.Config
	logger  *zap.Logger
	clock   Scheduler
	rooms   map[string]*roomEntry // keyed by room code
	selfPID *bollywood.PID
}

// NewRoomDirectoryProducer creates a producer for the RoomDirectoryActor.
func NewRoomDirectoryProducer(engine *bollywood.Engine, cfg utils.Config, logger *zap.Logger, clock Scheduler) bollywood.Producer {
	return func() bollywood.Actor {
		return &RoomDirectoryActor{
			engine: engine,
			cfg:    cfg,
			logger: logger.With(zap.String("actor", "room_directory")),
			clock:  clock,
			rooms:  make(map[string]*roomEntry),
		}
	}
}

func (a *RoomDirectoryActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic in directory receive",
				zap.Any("reason", r),
				zap.String("stack", string(debug.Stack())))
			if ctx.RequestID() != "" {
				ctx.Reply(ErrInvalidCommand)
			}
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		a.logger.Info("room directory started", zap.Int("max_rooms", a.cfg.MaxRooms))

	case CreateRoomRequest:
		a.handleCreateRoom(ctx, msg)

	case LookupRoomRequest:
		if ctx.RequestID() == "" {
			return
		}
		entry, ok := a.rooms[msg.Code]
		if !ok {
			ctx.Reply(LookupRoomResponse{RoomPID: nil})
			return
		}
		ctx.Reply(LookupRoomResponse{RoomPID: entry.pid})

	case RoomTerminated:
		a.handleRoomTerminated(msg)

	case bollywood.Stopping:
		a.logger.Info("room directory stopping", zap.Int("rooms", len(a.rooms)))
		pids := make([]*bollywood.PID, 0, len(a.rooms))
		for _, entry := range a.rooms {
			pids = append(pids, entry.pid)
		}
		a.rooms = make(map[string]*roomEntry)
		for _, pid := range pids {
			a.engine.Stop(pid)
		}

	case bollywood.Stopped:
		a.logger.Info("room directory stopped")

	default:
		a.logger.Warn("unknown message", zap.Any("message", msg))
		if ctx.RequestID() != "" {
			ctx.Reply(ErrInvalidCommand)
		}
	}
}

// handleCreateRoom admits a new room under the global cap, mints a collision-
// free code and an organizer token, and spawns the room actor.
func (a *RoomDirectoryActor) handleCreateRoom(ctx bollywood.Context, msg CreateRoomRequest) {
	if ctx.RequestID() == "" {
		return
	}
	if len(a.rooms) >= a.cfg.MaxRooms {
		a.logger.Warn("room cap reached", zap.Int("rooms", len(a.rooms)))
		ctx.Reply(ErrOverloaded)
		return
	}

	code, ok := a.uniqueCode()
	if !ok {
		a.logger.Error("could not allocate a unique room code")
		ctx.Reply(ErrOverloaded)
		return
	}
	token := uuid.NewString()

	pid := a.engine.Spawn(bollywood.NewProps(NewRoomActorProducer(RoomArgs{
		Engine:       a.engine,
		Cfg:          a.cfg,
		Logger:       a.logger,
		Clock:        a.clock,
		DirectoryPID: a.selfPID,
		Code:         code,
		Token:        token,
		Quiz:         msg.Quiz,
		TimeLimit:    msg.TimeLimit,
	})))
	if pid == nil {
		ctx.Reply(ErrOverloaded)
		return
	}

	a.rooms[code] = &roomEntry{pid: pid, code: code}
	a.logger.Info("room created",
		zap.String("code", code),
		zap.String("quiz", msg.Quiz.Title),
		zap.Int("rooms", len(a.rooms)))
	ctx.Reply(CreateRoomResponse{Code: code, OrganizerToken: token, RoomPID: pid})
}

// uniqueCode draws room codes until one misses the live set.
func (a *RoomDirectoryActor) uniqueCode() (string, bool) {
	for i := 0; i < utils.MaxRoomCodeAttempts; i++ {
		code := utils.NewRoomCode(utils.RoomCodeLength)
		if _, taken := a.rooms[code]; !taken {
			return code, true
		}
	}
	return "", false
}

// handleRoomTerminated evicts a closed room and stops its actor. The PID guard
// keeps a stale termination from evicting a newer room that reused the code.
func (a *RoomDirectoryActor) handleRoomTerminated(msg RoomTerminated) {
	entry, ok := a.rooms[msg.Code]
	if !ok {
		return
	}
	if msg.RoomPID != nil && entry.pid != nil && entry.pid.String() != msg.RoomPID.String() {
		return
	}
	delete(a.rooms, msg.Code)
	a.logger.Info("room evicted", zap.String("code", msg.Code), zap.Int("rooms", len(a.rooms)))
	if entry.pid != nil {
		a.engine.Stop(entry.pid)
	}
}
