// File: game/room_actor_lifecycle.go
package game

import (
	"time"

	"go.uber.org/zap"
)

// startQuestion begins the question at index idx: fresh answer ledger, fresh
// multipliers, a rank snapshot for rank-change deltas, and a one-second tick
// chain that counts the timer down.
func (a *RoomActor) startQuestion(idx int) {
	a.questionEpoch++
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}

	a.state = StateQuestion
	a.currentIndex = idx
	a.questionStart = a.clock.Now()
	a.answers = make(map[string]*answerRecord)
	a.registry.ResetMultipliers()

	// Standings as of this moment become the "previous" side of the next
	// QUESTION_OVER.
	standing := computeLeaderboard(a.registry.List(), currentRanks(a.registry))
	a.previousLeaderboard = standing
	a.prevRanks = snapshotRanks(standing)

	a.bus.Broadcast(QuestionEvent{
		EventHeader:     a.header(EvtQuestion),
		QuestionPayload: a.questionPayload(),
	})
	a.bus.Broadcast(TimerEvent{EventHeader: a.header(EvtTimer), Remaining: a.timeLimit})
	a.scheduleTick(a.timeLimit - 1)

	a.logger.Info("question started",
		zap.Int("index", idx),
		zap.Int("time_limit", a.timeLimit))
}

// scheduleTick arms the next one-second tick carrying the current epoch.
func (a *RoomActor) scheduleTick(remaining int) {
	epoch := a.questionEpoch
	engine, selfPID := a.engine, a.selfPID
	a.cancelTick = a.clock.After(time.Second, func() {
		engine.Send(selfPID, questionTickMsg{Epoch: epoch, Remaining: remaining}, nil)
	})
}

// handleQuestionTick advances the countdown. Ticks from a superseded epoch
// are dropped, which is what makes early-end and reset race-free.
func (a *RoomActor) handleQuestionTick(msg questionTickMsg) {
	if msg.Epoch != a.questionEpoch || a.state != StateQuestion {
		return
	}
	a.cancelTick = nil
	a.bus.Broadcast(TimerEvent{EventHeader: a.header(EvtTimer), Remaining: msg.Remaining})
	if msg.Remaining <= 0 {
		a.endQuestion()
		return
	}
	a.scheduleTick(msg.Remaining - 1)
}

// endQuestion moves to Reveal and publishes the results of the question that
// just ended: the correct answer, the new standings with rank-change deltas,
// and the standings as they were before the question.
func (a *RoomActor) endQuestion() {
	a.questionEpoch++
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}
	a.state = StateReveal

	// Correct answer streaks survive; everyone who let the clock run out
	// loses theirs.
	for _, p := range a.registry.List() {
		if _, answered := a.answers[p.Nickname]; !answered {
			p.Streak = 0
		}
	}

	leaderboard := computeLeaderboard(a.registry.List(), a.prevRanks)
	for _, e := range leaderboard {
		if p := a.registry.ByNick(e.Nickname); p != nil {
			p.PrevRank = e.Rank
		}
	}

	question := a.quizSnapshot.Questions[a.currentIndex]
	a.bus.Broadcast(QuestionOverEvent{
		EventHeader:         a.header(EvtQuestionOver),
		Answer:              question.AnswerIndex,
		Leaderboard:         leaderboard,
		PreviousLeaderboard: a.previousLeaderboard,
		IsFinal:             a.currentIndex == a.quizSnapshot.Len()-1,
	})
	a.logger.Info("question over",
		zap.Int("index", a.currentIndex),
		zap.Int("answers", len(a.answers)))
}

// showPodium ends the quiz with final player and team standings.
func (a *RoomActor) showPodium() {
	a.questionEpoch++
	if a.cancelTick != nil {
		a.cancelTick()
		a.cancelTick = nil
	}
	a.state = StatePodium

	a.bus.Broadcast(PodiumEvent{
		EventHeader:     a.header(EvtPodium),
		Leaderboard:     computeLeaderboard(a.registry.List(), currentRanks(a.registry)),
		TeamLeaderboard: computeTeamLeaderboard(a.registry.Teams()),
	})
	a.logger.Info("podium shown")
}

// currentRanks reads the rank history stored on the participants themselves.
func currentRanks(r *Registry) map[string]int {
	ranks := make(map[string]int)
	for _, p := range r.List() {
		if p.PrevRank > 0 {
			ranks[p.Nickname] = p.PrevRank
		}
	}
	return ranks
}

// --- projections ---

// questionPayload is the player-safe view of the current question.
func (a *RoomActor) questionPayload() QuestionPayload {
	q := a.quizSnapshot.Questions[a.currentIndex]
	return QuestionPayload{
		QuestionNumber: a.currentIndex + 1,
		TotalQuestions: a.quizSnapshot.Len(),
		Text:           q.Text,
		Options:        q.Options,
		ImageURL:       q.ImageURL,
		IsBonus:        q.IsBonus,
		TimeLimit:      a.timeLimit,
	}
}

// timeRemaining is the countdown left on the active question, in whole
// seconds, never negative.
func (a *RoomActor) timeRemaining() int {
	if a.state != StateQuestion {
		return 0
	}
	elapsed := int(a.clock.Now().Sub(a.questionStart).Seconds())
	remaining := a.timeLimit - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (a *RoomActor) playerSummaries() []PlayerSummary {
	list := a.registry.List()
	out := make([]PlayerSummary, len(list))
	for i, p := range list {
		out[i] = PlayerSummary{
			Nickname:  p.Nickname,
			Avatar:    p.Avatar,
			Team:      p.Team,
			Score:     p.Score,
			Connected: p.Connected,
		}
	}
	return out
}

// roomSummaryEvent is the common join/reconnect reply shell.
func (a *RoomActor) roomSummaryEvent(eventType, nickname string) JoinedRoomEvent {
	e := JoinedRoomEvent{
		EventHeader:    a.header(eventType),
		RoomCode:       a.code,
		Nickname:       nickname,
		TotalQuestions: a.quizSnapshot.Len(),
		PlayerCount:    a.registry.Len(),
		Players:        a.playerSummaries(),
	}
	if a.state.hasQuestionIndex() {
		e.QuestionNumber = a.currentIndex + 1
	}
	return e
}

// broadcastRoster announces a roster change to everyone except the connection
// that caused it, which already received its direct reply.
func (a *RoomActor) broadcastRoster(eventType string, p *Participant, except Conn) {
	event := RosterEvent{
		EventHeader: a.header(eventType),
		Nickname:    p.Nickname,
		Avatar:      p.Avatar,
		PlayerCount: a.registry.Len(),
		Players:     a.playerSummaries(),
	}
	if except != nil {
		a.bus.BroadcastExcept(event, except)
	} else {
		a.bus.Broadcast(event)
	}
}

// organizerProjection resynchronizes a reconnecting organizer with the full
// room state, the correct answer included.
func (a *RoomActor) organizerProjection() OrganizerReconnectedEvent {
	e := OrganizerReconnectedEvent{
		EventHeader:    a.header(EvtOrganizerReconnected),
		RoomCode:       a.code,
		QuizTitle:      a.quizSnapshot.Title,
		TotalQuestions: a.quizSnapshot.Len(),
		Answered:       len(a.answers),
		PlayerCount:    a.registry.Len(),
		Players:        a.playerSummaries(),
		Leaderboard:    computeLeaderboard(a.registry.List(), currentRanks(a.registry)),
		CorrectIndex:   -1,
	}
	if a.state.hasQuestionIndex() {
		e.QuestionNumber = a.currentIndex + 1
		q := a.questionPayload()
		e.Question = &q
		e.CorrectIndex = a.quizSnapshot.Questions[a.currentIndex].AnswerIndex
	}
	if a.state == StateQuestion {
		e.TimeRemaining = a.timeRemaining()
	}
	return e
}
