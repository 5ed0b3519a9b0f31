// File: game/room_actor_handlers.go
package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/lguibr/quizcast/quiz"
)

// handleConnect admits a freshly upgraded connection under its claimed role.
func (a *RoomActor) handleConnect(msg ClientConnected) {
	if a.state == StateClosed {
		a.sendError(msg.Conn, "Room is closed")
		msg.Conn.Close()
		return
	}
	a.touch()

	switch msg.Role {
	case RoleOrganizer:
		a.attachOrganizer(msg)
	case RoleSpectator:
		a.connRoles[msg.Conn] = RoleSpectator
		a.bus.Subscribe(msg.Conn, RoleSpectator, "")
		a.bus.ToConn(msg.Conn, a.roomSummaryEvent(EvtJoinedRoom, ""))
	default:
		// Players announce themselves with a JOIN command.
		a.connRoles[msg.Conn] = RolePlayer
	}
}

// attachOrganizer validates the organizer token and adopts the connection.
// The token is the only organizer credential; a bad claim closes the socket.
func (a *RoomActor) attachOrganizer(msg ClientConnected) {
	if msg.Token == "" || msg.Token != a.organizerToken {
		a.logger.Warn("organizer claim with invalid token", zap.String("conn", msg.Conn.ID()))
		a.sendError(msg.Conn, "Invalid organizer token")
		msg.Conn.Close()
		return
	}

	if prev := a.organizerConn; prev != nil && prev != msg.Conn {
		a.bus.Unsubscribe(prev)
		delete(a.connRoles, prev)
		prev.Close()
	}

	reconnectDuringGrace := a.cancelGrace != nil
	if reconnectDuringGrace {
		a.cancelGrace()
		a.cancelGrace = nil
		a.graceSeq++
	}

	a.organizerConn = msg.Conn
	a.connRoles[msg.Conn] = RoleOrganizer
	a.bus.Subscribe(msg.Conn, RoleOrganizer, "")

	if !a.organizerAttached {
		a.organizerAttached = true
		a.bus.ToConn(msg.Conn, RoomCreatedEvent{
			EventHeader: a.header(EvtRoomCreated),
			RoomCode:    a.code,
			QuizTitle:   a.quizSnapshot.Title,
			PlayerCount: a.registry.Len(),
		})
		a.logger.Info("organizer attached", zap.String("conn", msg.Conn.ID()))
		return
	}

	a.bus.ToConn(msg.Conn, a.organizerProjection())
	if reconnectDuringGrace {
		a.bus.ToPlayers(HostReconnectedEvent{EventHeader: a.header(EvtHostReconnected)})
	}
	a.logger.Info("organizer reconnected", zap.String("conn", msg.Conn.ID()))
}

// handleCommand routes one parsed command according to the sender's role.
func (a *RoomActor) handleCommand(conn Conn, command interface{}) {
	role, known := a.connRoles[conn]
	if !known {
		// Connection already detached; a close raced with this command.
		return
	}
	if a.state == StateClosed {
		a.sendError(conn, "Room is closed")
		return
	}
	a.touch()

	switch cmd := command.(type) {
	case JoinCommand:
		if role != RolePlayer {
			a.sendError(conn, "Only players can join")
			return
		}
		a.handleJoin(conn, cmd)
	case AnswerCommand:
		if role != RolePlayer {
			a.sendError(conn, "Only players can answer")
			return
		}
		a.handleAnswer(conn, cmd)
	case UsePowerUpCommand:
		if role != RolePlayer {
			a.sendError(conn, "Only players can use power-ups")
			return
		}
		a.handleUsePowerUp(conn, cmd)
	case StartGameCommand:
		if !a.requireOrganizer(conn, role) {
			return
		}
		a.handleStartGame()
	case NextQuestionCommand:
		if !a.requireOrganizer(conn, role) {
			return
		}
		a.handleNextQuestion()
	case EndQuizCommand:
		if !a.requireOrganizer(conn, role) {
			return
		}
		a.handleEndQuiz()
	case ResetRoomCommand:
		if !a.requireOrganizer(conn, role) {
			return
		}
		a.handleResetRoom(cmd)
	case SetTimeLimitCommand:
		if !a.requireOrganizer(conn, role) {
			return
		}
		a.handleSetTimeLimit(conn, cmd)
	default:
		a.sendError(conn, "Unknown command")
	}
}

func (a *RoomActor) requireOrganizer(conn Conn, role Role) bool {
	if role != RoleOrganizer || conn != a.organizerConn {
		a.sendError(conn, "Organizer only")
		return false
	}
	return true
}

// handleJoin upserts the participant. Same nickname from a new connection is
// a takeover: the old handle is kicked and the record (score included) is
// adopted by the new connection.
func (a *RoomActor) handleJoin(conn Conn, cmd JoinCommand) {
	if bound, ok := a.registry.NickByConn(conn); ok {
		// One participant record per connection; switching nicknames needs
		// a fresh socket.
		a.sendError(conn, fmt.Sprintf("Already joined as %q", bound))
		return
	}
	nick, err := ValidateIdentity(cmd.Nickname, cmd.Avatar, cmd.Team)
	if err != nil {
		a.sendError(conn, err.Error())
		return
	}

	p, wasReconnect, displaced, err := a.registry.Upsert(nick, cmd.Avatar, cmd.Team, conn, a.clock.Now())
	if err != nil {
		a.sendError(conn, "Room is full")
		conn.Close()
		return
	}

	if displaced != nil {
		a.bus.ToConn(displaced, KickedEvent{
			EventHeader: a.header(EvtKicked),
			Reason:      "another connection took over this nickname",
		})
		a.bus.Unsubscribe(displaced)
		delete(a.connRoles, displaced)
		displaced.Close()
	}

	a.bus.Subscribe(conn, RolePlayer, nick)

	reply := a.roomSummaryEvent(EvtJoinedRoom, nick)
	if wasReconnect {
		reply.EventHeader.Type = EvtReconnected
	}
	reply.Score = p.Score
	reply.Streak = p.Streak
	if a.state == StateQuestion {
		// Mid-question joiners see the live question with the live remainder.
		q := a.questionPayload()
		reply.Question = &q
		reply.TimeRemaining = a.timeRemaining()
	}
	a.bus.ToConn(conn, reply)

	rosterType := EvtPlayerJoined
	if wasReconnect {
		rosterType = EvtPlayerReconnected
	}
	a.broadcastRoster(rosterType, p, conn)
	a.logger.Info("player joined",
		zap.String("nickname", nick),
		zap.Bool("reconnect", wasReconnect),
		zap.Int("players", a.registry.Len()))
}

// handleAnswer scores at most one answer per participant per question.
func (a *RoomActor) handleAnswer(conn Conn, cmd AnswerCommand) {
	if a.state != StateQuestion {
		a.sendError(conn, "No question is active")
		return
	}
	nick, ok := a.registry.NickByConn(conn)
	if !ok {
		a.sendError(conn, "Join the room first")
		return
	}
	if _, answered := a.answers[nick]; answered {
		// At most one accepted answer per question; repeats are dropped.
		return
	}
	p := a.registry.ByNick(nick)
	question := a.quizSnapshot.Questions[a.currentIndex]

	now := a.clock.Now()
	latencyFrac := now.Sub(a.questionStart).Seconds() / float64(a.timeLimit)
	correct := cmd.AnswerIndex == question.AnswerIndex

	result := Score(correct, latencyFrac, p.Streak, p.Multiplier, question.IsBonus)
	p.Score += result.Points
	p.Streak = result.NewStreak

	a.answers[nick] = &answerRecord{
		OptionIndex: cmd.AnswerIndex,
		At:          now,
		Correct:     correct,
		Points:      result.Points,
		Multiplier:  result.Multiplier,
	}

	a.bus.ToConn(conn, AnswerResultEvent{
		EventHeader: a.header(EvtAnswerResult),
		Correct:     correct,
		Points:      result.Points,
		Multiplier:  result.Multiplier,
		Streak:      result.NewStreak,
	})
	a.bus.ToWatchers(AnswerCountEvent{
		EventHeader: a.header(EvtAnswerCount),
		Answered:    len(a.answers),
		Total:       a.registry.ConnectedCount(),
	})

	a.maybeEndEarly()
}

// maybeEndEarly transitions to Reveal once every live participant answered.
// Answers from players who dropped afterwards do not count toward the live
// set, so the check is per participant, not a count comparison.
func (a *RoomActor) maybeEndEarly() {
	if a.state != StateQuestion {
		return
	}
	live := 0
	for _, p := range a.registry.List() {
		if !p.Connected {
			continue
		}
		live++
		if _, answered := a.answers[p.Nickname]; !answered {
			return
		}
	}
	if live > 0 {
		a.endQuestion()
	}
}

// handleUsePowerUp consumes a one-shot power-up. Only before the player's
// answer for the current question.
func (a *RoomActor) handleUsePowerUp(conn Conn, cmd UsePowerUpCommand) {
	if a.state != StateQuestion {
		a.sendError(conn, "No question is active")
		return
	}
	nick, ok := a.registry.NickByConn(conn)
	if !ok {
		a.sendError(conn, "Join the room first")
		return
	}
	if _, answered := a.answers[nick]; answered {
		a.sendError(conn, "Power-ups must be used before answering")
		return
	}
	p := a.registry.ByNick(nick)
	question := a.quizSnapshot.Questions[a.currentIndex]

	switch cmd.PowerUp {
	case PowerUpDoublePoints:
		if !p.ConsumePowerUp(PowerUpDoublePoints) {
			a.sendError(conn, "Double points already used")
			return
		}
		p.Multiplier = 2.0
		a.bus.ToConn(conn, PowerUpActivatedEvent{
			EventHeader: a.header(EvtPowerUpActivated),
			PowerUp:     PowerUpDoublePoints,
		})

	case PowerUpFiftyFifty:
		if len(question.Options) != 4 {
			a.sendError(conn, "Fifty-fifty needs a four-option question")
			return
		}
		if !p.ConsumePowerUp(PowerUpFiftyFifty) {
			a.sendError(conn, "Fifty-fifty already used")
			return
		}
		a.bus.ToConn(conn, PowerUpActivatedEvent{
			EventHeader:   a.header(EvtPowerUpActivated),
			PowerUp:       PowerUpFiftyFifty,
			RemoveIndices: a.pickFiftyFifty(question.AnswerIndex, len(question.Options)),
		})

	default:
		a.sendError(conn, fmt.Sprintf("Unknown power-up %q", cmd.PowerUp))
	}
}

// pickFiftyFifty returns two distinct incorrect option indices at random.
func (a *RoomActor) pickFiftyFifty(correctIndex, optionCount int) []int {
	wrong := make([]int, 0, optionCount-1)
	for i := 0; i < optionCount; i++ {
		if i != correctIndex {
			wrong = append(wrong, i)
		}
	}
	a.rng.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
	return wrong[:2]
}

func (a *RoomActor) handleStartGame() {
	if a.state != StateLobby {
		a.sendError(a.organizerConn, "Game already started")
		return
	}
	if a.registry.Len() == 0 {
		a.sendError(a.organizerConn, "No players have joined")
		return
	}
	a.state = StateIntro
	a.currentIndex = 0
	a.bus.Broadcast(GameStartingEvent{
		EventHeader:    a.header(EvtGameStarting),
		QuizTitle:      a.quizSnapshot.Title,
		TotalQuestions: a.quizSnapshot.Len(),
	})
	a.logger.Info("game starting", zap.Int("players", a.registry.Len()))
}

func (a *RoomActor) handleNextQuestion() {
	switch a.state {
	case StateIntro:
		a.startQuestion(a.currentIndex)
	case StateReveal:
		next := a.currentIndex + 1
		if next >= a.quizSnapshot.Len() {
			a.showPodium()
			return
		}
		a.startQuestion(next)
	default:
		a.sendError(a.organizerConn, "Cannot advance from current state")
	}
}

func (a *RoomActor) handleEndQuiz() {
	if a.state != StateQuestion && a.state != StateReveal {
		a.sendError(a.organizerConn, "No quiz in progress")
		return
	}
	a.showPodium()
}

// handleResetRoom returns the room to Lobby for a replay. Participants stay
// connected and keep their teams; scores, streaks and power-ups reset.
func (a *RoomActor) handleResetRoom(cmd ResetRoomCommand) {
	if a.state != StatePodium {
		a.sendError(a.organizerConn, "Reset is only available from the podium")
		return
	}
	if len(cmd.QuizData) > 0 {
		newQuiz, err := quiz.Parse(cmd.QuizData)
		if err != nil {
			a.sendError(a.organizerConn, fmt.Sprintf("Invalid quiz: %v", err))
			return
		}
		newQuiz.AssignBonusRounds(a.cfg.BonusRoundFraction, a.rng)
		a.quizSnapshot = newQuiz
	}
	if cmd.TimeLimit > 0 {
		a.timeLimit = cmd.TimeLimit
	}

	a.cancelTimers()
	a.questionEpoch++
	a.registry.ResetScores()
	a.answers = make(map[string]*answerRecord)
	a.prevRanks = make(map[string]int)
	a.previousLeaderboard = nil
	a.currentIndex = -1
	a.state = StateLobby

	a.bus.Broadcast(RoomResetEvent{
		EventHeader: a.header(EvtRoomReset),
		PlayerCount: a.registry.Len(),
		Players:     a.playerSummaries(),
		TimeLimit:   a.timeLimit,
	})
	a.logger.Info("room reset", zap.String("quiz", a.quizSnapshot.Title))
}

func (a *RoomActor) handleSetTimeLimit(conn Conn, cmd SetTimeLimitCommand) {
	if a.state != StateLobby {
		a.sendError(conn, "Time limit can only change in the lobby")
		return
	}
	if cmd.TimeLimit < 1 || cmd.TimeLimit > 300 {
		a.sendError(conn, "Time limit must be between 1 and 300 seconds")
		return
	}
	a.timeLimit = cmd.TimeLimit
}

// handleDisconnect processes an unclean close. Lobby players are removed
// outright; mid-game players keep their record for reconnection. The
// organizer gets a grace window before the room closes.
func (a *RoomActor) handleDisconnect(conn Conn) {
	role, known := a.connRoles[conn]
	if !known {
		return
	}
	delete(a.connRoles, conn)
	a.bus.Unsubscribe(conn)

	if role == RoleOrganizer && conn == a.organizerConn {
		a.organizerDropped()
		return
	}

	if role == RolePlayer {
		nick, ok := a.registry.NickByConn(conn)
		if !ok {
			return // connected but never joined
		}
		p := a.registry.ByNick(nick)
		if !a.registry.Detach(nick, conn, a.clock.Now()) {
			return // superseded handle; the takeover already owns the record
		}
		if a.state == StateLobby {
			a.registry.Remove(nick)
			a.broadcastRoster(EvtPlayerLeft, p, nil)
		} else {
			a.broadcastRoster(EvtPlayerDisconnected, p, nil)
			// One less live participant may mean everyone left has answered.
			a.maybeEndEarly()
		}
		a.logger.Info("player disconnected", zap.String("nickname", nick))
	}
}

// organizerDropped starts the grace window. The room survives unless the
// window expires without a valid organizer reconnect.
func (a *RoomActor) organizerDropped() {
	a.organizerConn = nil
	a.graceSeq++
	seq := a.graceSeq
	engine, selfPID := a.engine, a.selfPID
	if a.cancelGrace != nil {
		a.cancelGrace()
	}
	a.cancelGrace = a.clock.After(a.cfg.OrganizerGrace, func() {
		engine.Send(selfPID, graceExpiredMsg{Epoch: seq}, nil)
	})
	a.bus.Broadcast(OrganizerDisconnectedEvent{
		EventHeader:  a.header(EvtOrganizerDisconnected),
		GraceSeconds: int(a.cfg.OrganizerGrace.Seconds()),
	})
	a.logger.Info("organizer disconnected, grace started",
		zap.Duration("grace", a.cfg.OrganizerGrace))
}

func (a *RoomActor) handleGraceExpired(msg graceExpiredMsg) {
	if msg.Epoch != a.graceSeq || a.organizerConn != nil || a.state == StateClosed {
		return
	}
	a.cancelGrace = nil
	a.terminate("organizer did not return")
}
