// File: game/room_actor_test.go
package game

import (
	"math/rand"
	"testing"
	"time"

	"github.com/lguibr/bollywood"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lguibr/quizcast/quiz"
	"github.com/lguibr/quizcast/utils"
)

const testToken = "organizer-token"

func testQuiz() *quiz.Quiz {
	return &quiz.Quiz{
		Title: "Capitals",
		Questions: []quiz.Question{
			{ID: 1, Text: "Capital of France?", Options: []string{"Paris", "Lyon", "Nice", "Lille"}, AnswerIndex: 0},
			{ID: 2, Text: "Capital of Japan?", Options: []string{"Osaka", "Tokyo", "Kyoto", "Nagoya"}, AnswerIndex: 1},
			{ID: 3, Text: "Two plus two?", Options: []string{"Three", "Four"}, AnswerIndex: 1},
		},
	}
}

type roomHarness struct {
	engine *bollywood.Engine
	pid    *bollywood.PID
	clock  *ManualClock
}

func setupRoom(t *testing.T, q *quiz.Quiz, mutate func(*utils.Config)) *roomHarness {
	t.Helper()
	cfg := utils.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := NewManualClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	engine := bollywood.NewEngine()
	pid := engine.Spawn(bollywood.NewProps(NewRoomActorProducer(RoomArgs{
		Engine:    engine,
		Cfg:       cfg,
		Logger:    zap.NewNop(),
		Clock:     clock,
		Rng:       rand.New(rand.NewSource(1)),
		Code:      "ABC123",
		Token:     testToken,
		Quiz:      q,
		TimeLimit: 10,
	})))
	require.NotNil(t, pid)
	t.Cleanup(func() { engine.Shutdown(time.Second) })
	settle()
	return &roomHarness{engine: engine, pid: pid, clock: clock}
}

func (h *roomHarness) connect(conn Conn, role Role, token string) {
	h.engine.Send(h.pid, ClientConnected{Conn: conn, Role: role, Token: token}, nil)
	settle()
}

func (h *roomHarness) command(conn Conn, cmd interface{}) {
	h.engine.Send(h.pid, ClientCommand{Conn: conn, Command: cmd}, nil)
	settle()
}

func (h *roomHarness) disconnect(conn Conn) {
	h.engine.Send(h.pid, ClientDisconnected{Conn: conn}, nil)
	settle()
}

// tick advances the manual clock one second at a time so chained timers fire
// in order and the actor drains its mailbox between steps.
func (h *roomHarness) tick(seconds int) {
	for i := 0; i < seconds; i++ {
		h.clock.Advance(time.Second)
		settle()
	}
}

func (h *roomHarness) attachOrganizer(t *testing.T) *fakeConn {
	t.Helper()
	org := newFakeConn("org")
	h.connect(org, RoleOrganizer, testToken)
	waitForEvent(t, org, EvtRoomCreated, time.Second)
	return org
}

func (h *roomHarness) joinPlayer(t *testing.T, nick string) *fakeConn {
	t.Helper()
	conn := newFakeConn("conn-" + nick)
	h.connect(conn, RolePlayer, "")
	h.command(conn, JoinCommand{Nickname: nick})
	waitForEvent(t, conn, EvtJoinedRoom, time.Second)
	return conn
}

func (h *roomHarness) startFirstQuestion(t *testing.T, org *fakeConn) {
	t.Helper()
	h.command(org, StartGameCommand{})
	waitForEvent(t, org, EvtGameStarting, time.Second)
	h.command(org, NextQuestionCommand{})
	waitForEvent(t, org, EvtQuestion, time.Second)
}

func TestRoom_OrganizerAttachAndTokenCheck(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)

	bad := newFakeConn("intruder")
	h.connect(bad, RoleOrganizer, "wrong-token")
	waitForEvent(t, bad, EvtError, time.Second)
	assert.True(t, bad.isClosed())

	org := h.attachOrganizer(t)
	created, _ := org.lastEventOfType(EvtRoomCreated)
	assert.Equal(t, "ABC123", created["room_code"])
	assert.Equal(t, "Capitals", created["quiz_title"])
}

func TestRoom_JoinRosterAndStart(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)

	alice := h.joinPlayer(t, "alice")
	joined, _ := alice.lastEventOfType(EvtJoinedRoom)
	assert.Equal(t, "alice", joined["nickname"])
	assert.Equal(t, float64(1), joined["player_count"])

	// Organizer sees the roster grow.
	rosterEvt := waitForEvent(t, org, EvtPlayerJoined, time.Second)
	assert.Equal(t, "alice", rosterEvt["nickname"])

	h.joinPlayer(t, "bob")

	h.command(org, StartGameCommand{})
	starting := waitForEvent(t, alice, EvtGameStarting, time.Second)
	assert.Equal(t, "INTRO", starting["state"])
	assert.Equal(t, float64(3), starting["total_questions"])
}

func TestRoom_StartRequiresPlayersAndOrganizer(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)

	// Empty lobby cannot start.
	h.command(org, StartGameCommand{})
	waitForEvent(t, org, EvtError, time.Second)

	alice := h.joinPlayer(t, "alice")

	// Players cannot drive the game; the connection stays open.
	h.command(alice, StartGameCommand{})
	waitForEvent(t, alice, EvtError, time.Second)
	assert.False(t, alice.isClosed())
}

func TestRoom_QuestionHidesAnswerFromPlayers(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.startFirstQuestion(t, org)

	q := waitForEvent(t, alice, EvtQuestion, time.Second)
	assert.Equal(t, float64(1), q["question_number"])
	assert.Equal(t, "Capital of France?", q["text"])
	_, leaked := q["answer_index"]
	assert.False(t, leaked, "correct answer must never reach players")

	timer := waitForEvent(t, alice, EvtTimer, time.Second)
	assert.Equal(t, float64(10), timer["remaining"])
}

func TestRoom_AnswerScoringAndEarlyEnd(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	bob := h.joinPlayer(t, "bob")
	h.startFirstQuestion(t, org)

	h.tick(2) // answer at 2s of a 10s limit

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	result := waitForEvent(t, alice, EvtAnswerResult, time.Second)
	assert.Equal(t, true, result["correct"])
	assert.Equal(t, float64(900), result["points"])
	assert.Equal(t, float64(1), result["streak"])

	count := waitForEvent(t, org, EvtAnswerCount, time.Second)
	assert.Equal(t, float64(1), count["answered"])
	assert.Equal(t, float64(2), count["total"])
	_, playerSawCount := bob.lastEventOfType(EvtAnswerCount)
	assert.False(t, playerSawCount, "answer counts are watcher-only")

	// Second answer completes the set: the question ends without waiting for
	// the timer.
	h.command(bob, AnswerCommand{AnswerIndex: 3})
	wrong := waitForEvent(t, bob, EvtAnswerResult, time.Second)
	assert.Equal(t, false, wrong["correct"])
	assert.Equal(t, float64(0), wrong["points"])

	over := waitForEvent(t, alice, EvtQuestionOver, time.Second)
	assert.Equal(t, float64(0), over["answer"])
	leaderboard := over["leaderboard"].([]interface{})
	top := leaderboard[0].(map[string]interface{})
	assert.Equal(t, "alice", top["nickname"])
	assert.Equal(t, float64(900), top["score"])
	assert.Equal(t, float64(1), top["rank"])
	assert.Equal(t, false, over["is_final"])
}

func TestRoom_DuplicateAnswerIgnored(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.joinPlayer(t, "bob")
	h.startFirstQuestion(t, org)

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	waitForEvent(t, alice, EvtAnswerResult, time.Second)
	before := len(alice.events())

	// A second submission changes nothing: no event, no rescore.
	h.command(alice, AnswerCommand{AnswerIndex: 3})
	settle()
	assert.Equal(t, before, len(alice.events()))
}

func TestRoom_TimerExpiryEndsQuestion(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	h.tick(10)

	over := waitForEvent(t, alice, EvtQuestionOver, time.Second)
	assert.Equal(t, float64(0), over["answer"])

	// The countdown reached zero on the wire.
	timer, _ := alice.lastEventOfType(EvtTimer)
	assert.Equal(t, float64(0), timer["remaining"])

	// No more ticks after the question ended.
	n := len(alice.events())
	h.tick(3)
	assert.Equal(t, n, len(alice.events()))
}

func TestRoom_StreakBuildsAcrossQuestions(t *testing.T) {
	q := testQuiz()
	h := setupRoom(t, q, nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	// Instant correct answers: 1000, 1000, then 1500 at streak three.
	correct := []int{0, 1, 1}
	expected := []float64{1000, 1000, 1500}
	for i, answer := range correct {
		h.command(alice, AnswerCommand{AnswerIndex: answer})
		result := waitForEvent(t, alice, EvtAnswerResult, time.Second)
		assert.Equal(t, expected[i], result["points"], "question %d", i+1)
		assert.Equal(t, float64(i+1), result["streak"])
		if i < len(correct)-1 {
			h.command(org, NextQuestionCommand{})
			settle()
		}
	}

	over := waitForEvent(t, alice, EvtQuestionOver, time.Second)
	assert.Equal(t, true, over["is_final"])
	leaderboard := over["leaderboard"].([]interface{})
	top := leaderboard[0].(map[string]interface{})
	assert.Equal(t, float64(3500), top["score"])
}

func TestRoom_BonusRoundDoubles(t *testing.T) {
	q := testQuiz()
	q.Questions[0].IsBonus = true
	h := setupRoom(t, q, nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	h.tick(5) // half the limit

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	result := waitForEvent(t, alice, EvtAnswerResult, time.Second)
	assert.Equal(t, float64(1500), result["points"])
}

func TestRoom_DoublePointsPowerUp(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	h.command(alice, UsePowerUpCommand{PowerUp: PowerUpDoublePoints})
	activated := waitForEvent(t, alice, EvtPowerUpActivated, time.Second)
	assert.Equal(t, "double_points", activated["power_up"])

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	result := waitForEvent(t, alice, EvtAnswerResult, time.Second)
	assert.Equal(t, float64(2000), result["points"])
	assert.Equal(t, float64(2), result["multiplier"])

	// One-shot: the next attempt is rejected.
	h.command(org, NextQuestionCommand{})
	settle()
	h.command(alice, UsePowerUpCommand{PowerUp: PowerUpDoublePoints})
	waitForEvent(t, alice, EvtError, time.Second)
}

func TestRoom_FiftyFiftyPowerUp(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	h.command(alice, UsePowerUpCommand{PowerUp: PowerUpFiftyFifty})
	activated := waitForEvent(t, alice, EvtPowerUpActivated, time.Second)
	removed := activated["remove_indices"].([]interface{})
	require.Len(t, removed, 2)
	for _, idx := range removed {
		assert.NotEqual(t, float64(0), idx, "fifty-fifty must keep the correct option")
	}
}

func TestRoom_FiftyFiftyRejectedOnTwoOptionQuestion(t *testing.T) {
	q := testQuiz()
	// Make the two-option question come first.
	q.Questions[0], q.Questions[2] = q.Questions[2], q.Questions[0]
	h := setupRoom(t, q, nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	h.command(alice, UsePowerUpCommand{PowerUp: PowerUpFiftyFifty})
	waitForEvent(t, alice, EvtError, time.Second)

	// The rejection did not consume the power-up: it works on the next
	// four-option question.
	h.command(alice, AnswerCommand{AnswerIndex: 1})
	settle()
	h.command(org, NextQuestionCommand{})
	settle()
	h.command(alice, UsePowerUpCommand{PowerUp: PowerUpFiftyFifty})
	waitForEvent(t, alice, EvtPowerUpActivated, time.Second)
}

func TestRoom_PlayerReconnectMidQuestion(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.joinPlayer(t, "bob")
	h.startFirstQuestion(t, org)

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	waitForEvent(t, alice, EvtAnswerResult, time.Second)

	h.disconnect(alice)
	h.tick(3)

	// Same nickname, new connection: the record with its score comes back,
	// along with the live question and the remaining time.
	alice2 := newFakeConn("conn-alice-2")
	h.connect(alice2, RolePlayer, "")
	h.command(alice2, JoinCommand{Nickname: "alice"})
	rec := waitForEvent(t, alice2, EvtReconnected, time.Second)
	assert.Equal(t, float64(1000), rec["score"])
	require.NotNil(t, rec["question"])
	assert.Equal(t, float64(7), rec["time_remaining"])
}

func TestRoom_NicknameTakeoverKicksOldConn(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	alice2 := newFakeConn("conn-alice-2")
	h.connect(alice2, RolePlayer, "")
	h.command(alice2, JoinCommand{Nickname: "alice"})

	waitForEvent(t, alice, EvtKicked, time.Second)
	assert.True(t, alice.isClosed())
	waitForEvent(t, alice2, EvtReconnected, time.Second)
}

func TestRoom_SecondJoinOnSameConnectionRejected(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	// The same socket cannot claim a second nickname.
	h.command(alice, JoinCommand{Nickname: "bob"})
	errEvt := waitForEvent(t, alice, EvtError, time.Second)
	assert.Contains(t, errEvt["message"], "alice")
	assert.False(t, alice.isClosed())

	reply, err := h.engine.Ask(h.pid, RoomStatusRequest{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, reply.(RoomStatusResponse).PlayerCount)

	// No ghost record: the lone live player answering still ends the
	// question immediately.
	h.startFirstQuestion(t, org)
	h.tick(2)
	h.command(alice, AnswerCommand{AnswerIndex: 0})
	waitForEvent(t, alice, EvtQuestionOver, time.Second)
}

func TestRoom_LobbyLeaveRemovesRecord(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.disconnect(alice)
	left := waitForEvent(t, org, EvtPlayerLeft, time.Second)
	assert.Equal(t, "alice", left["nickname"])
	assert.Equal(t, float64(0), left["player_count"])
}

func TestRoom_MidGameDisconnectKeepsRecordAndMayEndQuestion(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	bob := h.joinPlayer(t, "bob")
	h.startFirstQuestion(t, org)

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	waitForEvent(t, alice, EvtAnswerResult, time.Second)

	// bob drops without answering; alice is now the only live participant
	// and has answered, so the question ends.
	h.disconnect(bob)
	disc := waitForEvent(t, org, EvtPlayerDisconnected, time.Second)
	assert.Equal(t, "bob", disc["nickname"])
	waitForEvent(t, alice, EvtQuestionOver, time.Second)
}

func TestRoom_OrganizerGraceExpiryClosesRoom(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.disconnect(org)
	grace := waitForEvent(t, alice, EvtOrganizerDisconnected, time.Second)
	assert.Equal(t, float64(30), grace["grace_seconds"])

	h.tick(30)

	closed := waitForEvent(t, alice, EvtRoomClosed, time.Second)
	assert.Contains(t, closed["reason"], "organizer")
	assert.True(t, alice.isClosed())
}

func TestRoom_OrganizerReconnectCancelsGrace(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.disconnect(org)
	waitForEvent(t, alice, EvtOrganizerDisconnected, time.Second)
	h.tick(10)

	org2 := newFakeConn("org-2")
	h.connect(org2, RoleOrganizer, testToken)
	sync := waitForEvent(t, org2, EvtOrganizerReconnected, time.Second)
	assert.Equal(t, "ABC123", sync["room_code"])
	waitForEvent(t, alice, EvtHostReconnected, time.Second)

	// Well past the original grace window: the room is still alive.
	h.tick(40)
	_, closed := alice.lastEventOfType(EvtRoomClosed)
	assert.False(t, closed)
}

func TestRoom_OrganizerReconnectSeesCorrectAnswer(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)

	h.disconnect(org)
	org2 := newFakeConn("org-2")
	h.connect(org2, RoleOrganizer, testToken)
	sync := waitForEvent(t, org2, EvtOrganizerReconnected, time.Second)
	assert.Equal(t, float64(0), sync["correct_index"])
	require.NotNil(t, sync["question"])
}

func TestRoom_EndQuizAndPodium(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := newFakeConn("conn-alice")
	h.connect(alice, RolePlayer, "")
	h.command(alice, JoinCommand{Nickname: "alice", Team: "reds"})
	waitForEvent(t, alice, EvtJoinedRoom, time.Second)
	h.startFirstQuestion(t, org)

	h.command(alice, AnswerCommand{AnswerIndex: 0})
	waitForEvent(t, alice, EvtQuestionOver, time.Second)

	h.command(org, EndQuizCommand{})
	podium := waitForEvent(t, alice, EvtPodium, time.Second)
	leaderboard := podium["leaderboard"].([]interface{})
	top := leaderboard[0].(map[string]interface{})
	assert.Equal(t, "alice", top["nickname"])
	teams := podium["team_leaderboard"].([]interface{})
	require.Len(t, teams, 1)
	assert.Equal(t, "reds", teams[0].(map[string]interface{})["team"])
}

func TestRoom_ResetReturnsToLobbyWithZeroScores(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")
	h.startFirstQuestion(t, org)
	h.command(alice, AnswerCommand{AnswerIndex: 0})
	waitForEvent(t, alice, EvtQuestionOver, time.Second)
	h.command(org, EndQuizCommand{})
	waitForEvent(t, alice, EvtPodium, time.Second)

	h.command(org, ResetRoomCommand{})
	reset := waitForEvent(t, alice, EvtRoomReset, time.Second)
	assert.Equal(t, "LOBBY", reset["state"])
	players := reset["players"].([]interface{})
	require.Len(t, players, 1)
	assert.Equal(t, float64(0), players[0].(map[string]interface{})["score"])

	// The room plays again from the top.
	h.startFirstQuestion(t, org)
	h.command(alice, AnswerCommand{AnswerIndex: 0})
	result := waitForEvent(t, alice, EvtAnswerResult, time.Second)
	assert.Equal(t, float64(1000), result["points"], "streak history was cleared")
}

func TestRoom_ResetOnlyFromPodium(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	h.joinPlayer(t, "alice")

	h.command(org, ResetRoomCommand{})
	waitForEvent(t, org, EvtError, time.Second)
}

func TestRoom_SetTimeLimitInLobby(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.command(org, SetTimeLimitCommand{TimeLimit: 5})
	h.startFirstQuestion(t, org)

	q := waitForEvent(t, alice, EvtQuestion, time.Second)
	assert.Equal(t, float64(5), q["time_limit"])
}

func TestRoom_ExpiresAfterInactivity(t *testing.T) {
	h := setupRoom(t, testQuiz(), func(cfg *utils.Config) {
		cfg.RoomTTL = 60 * time.Second
	})
	h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.clock.Advance(60 * time.Second)
	settle()

	closed := waitForEvent(t, alice, EvtRoomClosed, time.Second)
	assert.Equal(t, "room expired", closed["reason"])
}

func TestRoom_ActivityDefersExpiry(t *testing.T) {
	h := setupRoom(t, testQuiz(), func(cfg *utils.Config) {
		cfg.RoomTTL = 60 * time.Second
	})
	org := h.attachOrganizer(t)
	alice := h.joinPlayer(t, "alice")

	h.clock.Advance(50 * time.Second)
	settle()
	h.command(org, SetTimeLimitCommand{TimeLimit: 20}) // activity

	h.clock.Advance(30 * time.Second)
	settle()
	_, closed := alice.lastEventOfType(EvtRoomClosed)
	assert.False(t, closed, "recent activity must keep the room alive")

	h.clock.Advance(60 * time.Second)
	settle()
	waitForEvent(t, alice, EvtRoomClosed, time.Second)
}

func TestRoom_StatusAsk(t *testing.T) {
	h := setupRoom(t, testQuiz(), nil)
	h.attachOrganizer(t)
	h.joinPlayer(t, "alice")

	reply, err := h.engine.Ask(h.pid, RoomStatusRequest{}, time.Second)
	require.NoError(t, err)
	status, ok := reply.(RoomStatusResponse)
	require.True(t, ok)
	assert.Equal(t, "ABC123", status.Code)
	assert.Equal(t, "LOBBY", status.State)
	assert.Equal(t, 1, status.PlayerCount)
	assert.Equal(t, "Capitals", status.QuizTitle)
}
