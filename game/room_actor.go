// File: game/room_actor.go
package game

import (
	"math/rand"
	"runtime/debug"
	"time"

	"github.com/lguibr/bollywood"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/quiz"
	"github.com/lguibr/quizcast/utils"
)

// RoomActor owns the authoritative state of one game room. All command
// processing, timer callbacks and event publication happen inside Receive,
// so no field below needs a lock. Timers never touch state: they post
// messages back through the engine.
type RoomActor struct {
	cfg          utils.Config
	logger       *zap.Logger
	engine       *bollywood.Engine
	clock        Scheduler
	rng          *rand.Rand
	selfPID      *bollywood.PID
	directoryPID *bollywood.PID

	code           string
	organizerToken string
	quizSnapshot   *quiz.Quiz
	timeLimit      int // seconds per question

	registry *Registry
	bus      *Bus

	state         State
	currentIndex  int // -1 outside Intro/Question/Reveal
	questionStart time.Time
	answers       map[string]*answerRecord

	// Rank snapshot taken when the current question started; rank-change
	// deltas in QUESTION_OVER describe the question that just ended.
	prevRanks           map[string]int
	previousLeaderboard []LeaderboardEntry

	organizerConn     Conn
	organizerAttached bool // first organizer connect gets ROOM_CREATED
	connRoles         map[Conn]Role

	// questionEpoch invalidates in-flight tick messages across transitions;
	// graceSeq does the same for the organizer grace timer.
	questionEpoch int
	graceSeq      int
	cancelTick    CancelFunc
	cancelGrace   CancelFunc
	cancelTTL     CancelFunc

	lastActivity time.Time
}

// RoomArgs carries everything needed to spawn a room.
type RoomArgs struct {
	Engine       *bollywood.Engine
	Cfg          utils.Config
	Logger       *zap.Logger
	Clock        Scheduler
	Rng          *rand.Rand // nil = time-seeded
	DirectoryPID *bollywood.PID
	Code         string
	Token        string
	Quiz         *quiz.Quiz
	TimeLimit    int
}

// NewRoomActorProducer creates a producer for a RoomActor.
func NewRoomActorProducer(args RoomArgs) bollywood.Producer {
	return func() bollywood.Actor {
		rng := args.Rng
		if rng == nil {
			rng = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		timeLimit := args.TimeLimit
		if timeLimit <= 0 {
			timeLimit = args.Cfg.DefaultTimeLimit
		}
		logger := args.Logger.With(zap.String("room", args.Code))
		a := &RoomActor{
			cfg:            args.Cfg,
			logger:         logger,
			engine:         args.Engine,
			clock:          args.Clock,
			rng:            rng,
			directoryPID:   args.DirectoryPID,
			code:           args.Code,
			organizerToken: args.Token,
			quizSnapshot:   args.Quiz,
			timeLimit:      timeLimit,
			registry:       NewRegistry(args.Cfg.MaxPlayersPerRoom),
			state:          StateLobby,
			currentIndex:   -1,
			answers:        make(map[string]*answerRecord),
			prevRanks:      make(map[string]int),
			connRoles:      make(map[Conn]Role),
		}
		a.bus = NewBus(logger, a.onSubscriberOverflow)
		return a
	}
}

// onSubscriberOverflow is invoked by the bus after dropping a slow consumer.
// Treated as a disconnect; posted as a message so the drop finishes first.
func (a *RoomActor) onSubscriberOverflow(conn Conn) {
	if a.engine != nil && a.selfPID != nil {
		a.engine.Send(a.selfPID, ClientDisconnected{Conn: conn}, nil)
	}
}

// Receive is the single entry point for every room mutation.
func (a *RoomActor) Receive(ctx bollywood.Context) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic in room receive",
				zap.Any("reason", r),
				zap.String("state", a.state.String()),
				zap.Int("question_index", a.currentIndex),
				zap.String("stack", string(debug.Stack())))
			// An invariant violation poisons the room; terminate it cleanly.
			a.terminate("internal error")
		}
	}()

	if a.selfPID == nil {
		a.selfPID = ctx.Self()
	}

	switch msg := ctx.Message().(type) {
	case bollywood.Started:
		a.lastActivity = a.clock.Now()
		a.scheduleTTLCheck(a.cfg.RoomTTL)
		a.logger.Info("room started",
			zap.String("quiz", a.quizSnapshot.Title),
			zap.Int("questions", a.quizSnapshot.Len()),
			zap.Int("time_limit", a.timeLimit))

	case ClientConnected:
		a.handleConnect(msg)

	case ClientCommand:
		a.handleCommand(msg.Conn, msg.Command)

	case ClientDisconnected:
		a.handleDisconnect(msg.Conn)

	case questionTickMsg:
		a.handleQuestionTick(msg)

	case graceExpiredMsg:
		a.handleGraceExpired(msg)

	case ttlCheckMsg:
		a.handleTTLCheck()

	case RoomStatusRequest:
		if ctx.RequestID() != "" {
			ctx.Reply(RoomStatusResponse{
				Code:        a.code,
				State:       a.state.String(),
				PlayerCount: a.registry.Len(),
				QuizTitle:   a.quizSnapshot.Title,
			})
		}

	case bollywood.Stopping:
		a.cancelTimers()
		if a.cancelTTL != nil {
			a.cancelTTL()
			a.cancelTTL = nil
		}
		if a.state != StateClosed {
			a.state = StateClosed
			a.bus.CloseAll(RoomClosedEvent{
				EventHeader: a.header(EvtRoomClosed),
				Reason:      "server shutting down",
			})
		}

	case bollywood.Stopped:
		a.logger.Info("room stopped")

	default:
		a.logger.Warn("unknown message", zap.Any("message", msg))
		if ctx.RequestID() != "" {
			ctx.Reply(ErrInvalidCommand)
		}
	}
}

// header stamps an event with its type and the state it was generated in.
func (a *RoomActor) header(eventType string) EventHeader {
	return EventHeader{Type: eventType, State: a.state.String()}
}

// touch refreshes the activity timestamp that the TTL check reads.
func (a *RoomActor) touch() {
	a.lastActivity = a.clock.Now()
}

func (a *RoomActor) sendError(conn Conn, message string) {
	a.bus.ToConn(conn, ErrorEvent{EventHeader: a.header(EvtError), Message: message})
}

// cancelTimers stops the question tick chain and the organizer grace timer.
// Epoch bumps make any in-flight fire a no-op.
func (a *RoomActor) cancelTimers() {
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}
	if a.cancelGrace != nil {
		a.cancelGrace()
		a.cancelGrace = nil
	}
}

func (a *RoomActor) scheduleTTLCheck(d time.Duration) {
	engine, selfPID := a.engine, a.selfPID
	a.cancelTTL = a.clock.After(d, func() {
		engine.Send(selfPID, ttlCheckMsg{}, nil)
	})
}

func (a *RoomActor) handleTTLCheck() {
	if a.state == StateClosed {
		return
	}
	idle := a.clock.Now().Sub(a.lastActivity)
	if idle >= a.cfg.RoomTTL {
		a.logger.Info("room expired", zap.Duration("idle", idle))
		a.terminate("room expired")
		return
	}
	a.scheduleTTLCheck(a.cfg.RoomTTL - idle)
}

// terminate closes the room: every subscriber gets a final ROOM_CLOSED, all
// connections are closed, and the directory evicts and stops the actor.
func (a *RoomActor) terminate(reason string) {
	if a.state == StateClosed {
		return
	}
	a.cancelTimers()
	if a.cancelTTL != nil {
		a.cancelTTL()
		a.cancelTTL = nil
	}
	a.questionEpoch++
	a.state = StateClosed
	a.currentIndex = -1
	a.bus.CloseAll(RoomClosedEvent{EventHeader: a.header(EvtRoomClosed), Reason: reason})
	a.organizerConn = nil
	a.connRoles = make(map[Conn]Role)
	a.logger.Info("room closed", zap.String("reason", reason))
	if a.directoryPID != nil {
		a.engine.Send(a.directoryPID, RoomTerminated{Code: a.code, RoomPID: a.selfPID}, a.selfPID)
	}
}
