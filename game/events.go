// File: game/events.go
package game

// --- Outbound event catalog (server -> client) ---
// Every frame is a JSON object with a "type" discriminator; every event also
// carries the room state it was generated in.

const (
	EvtRoomCreated           = "ROOM_CREATED"
	EvtJoinedRoom            = "JOINED_ROOM"
	EvtReconnected           = "RECONNECTED"
	EvtPlayerJoined          = "PLAYER_JOINED"
	EvtPlayerLeft            = "PLAYER_LEFT"
	EvtPlayerDisconnected    = "PLAYER_DISCONNECTED"
	EvtPlayerReconnected     = "PLAYER_RECONNECTED"
	EvtGameStarting          = "GAME_STARTING"
	EvtQuestion              = "QUESTION"
	EvtTimer                 = "TIMER"
	EvtAnswerResult          = "ANSWER_RESULT"
	EvtAnswerCount           = "ANSWER_COUNT"
	EvtPowerUpActivated      = "POWER_UP_ACTIVATED"
	EvtQuestionOver          = "QUESTION_OVER"
	EvtPodium                = "PODIUM"
	EvtRoomReset             = "ROOM_RESET"
	EvtOrganizerDisconnected = "ORGANIZER_DISCONNECTED"
	EvtOrganizerReconnected  = "ORGANIZER_RECONNECTED"
	EvtHostReconnected       = "HOST_RECONNECTED"
	EvtRoomClosed            = "ROOM_CLOSED"
	EvtKicked                = "KICKED"
	EvtError                 = "ERROR"
)

// EventHeader is embedded in every outbound event.
type EventHeader struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// PlayerSummary is the roster entry sent with join/leave/reset events.
type PlayerSummary struct {
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar,omitempty"`
	Team      string `json:"team,omitempty"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// LeaderboardEntry is one row of a question-over or podium leaderboard.
// Positions are 1-based; RankChange is previous rank minus new rank, so
// positive means the player rose.
type LeaderboardEntry struct {
	Nickname   string `json:"nickname"`
	Avatar     string `json:"avatar,omitempty"`
	Score      int    `json:"score"`
	Rank       int    `json:"rank"`
	RankChange int    `json:"rank_change"`
	Streak     int    `json:"streak"`
}

// TeamEntry is one row of the podium team leaderboard.
type TeamEntry struct {
	Team    string `json:"team"`
	Score   int    `json:"score"`
	Players int    `json:"players"`
}

// QuestionPayload is the player-safe projection of the current question. The
// correct index is never part of it.
type QuestionPayload struct {
	QuestionNumber int      `json:"question_number"` // 1-based
	TotalQuestions int      `json:"total_questions"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	ImageURL       string   `json:"image_url,omitempty"`
	IsBonus        bool     `json:"is_bonus"`
	TimeLimit      int      `json:"time_limit"`
}

type RoomCreatedEvent struct {
	EventHeader
	RoomCode    string `json:"room_code"`
	QuizTitle   string `json:"quiz_title"`
	PlayerCount int    `json:"player_count"`
}

// JoinedRoomEvent doubles as RECONNECTED: a reconnect carries the player's
// restored score and, mid-question, the live question projection with the
// remaining time.
type JoinedRoomEvent struct {
	EventHeader
	RoomCode       string           `json:"room_code"`
	Nickname       string           `json:"nickname,omitempty"`
	QuestionNumber int              `json:"question_number,omitempty"`
	TotalQuestions int              `json:"total_questions"`
	PlayerCount    int              `json:"player_count"`
	Players        []PlayerSummary  `json:"players"`
	Score          int              `json:"score"`
	Streak         int              `json:"streak"`
	Question       *QuestionPayload `json:"question,omitempty"`
	TimeRemaining  int              `json:"time_remaining,omitempty"`
}

// RosterEvent covers PLAYER_JOINED, PLAYER_LEFT, PLAYER_DISCONNECTED and
// PLAYER_RECONNECTED: the affected nickname plus the full roster.
type RosterEvent struct {
	EventHeader
	Nickname    string          `json:"nickname"`
	Avatar      string          `json:"avatar,omitempty"`
	PlayerCount int             `json:"player_count"`
	Players     []PlayerSummary `json:"players"`
}

type GameStartingEvent struct {
	EventHeader
	QuizTitle      string `json:"quiz_title"`
	TotalQuestions int    `json:"total_questions"`
}

type QuestionEvent struct {
	EventHeader
	QuestionPayload
}

type TimerEvent struct {
	EventHeader
	Remaining int `json:"remaining"`
}

type AnswerResultEvent struct {
	EventHeader
	Correct    bool    `json:"correct"`
	Points     int     `json:"points"`
	Multiplier float64 `json:"multiplier"`
	Streak     int     `json:"streak"`
}

type AnswerCountEvent struct {
	EventHeader
	Answered int `json:"answered"`
	Total    int `json:"total"` // connected players
}

type PowerUpActivatedEvent struct {
	EventHeader
	PowerUp       PowerUp `json:"power_up"`
	RemoveIndices []int   `json:"remove_indices,omitempty"` // fifty-fifty only
}

type QuestionOverEvent struct {
	EventHeader
	Answer              int                `json:"answer"` // correct option index
	Leaderboard         []LeaderboardEntry `json:"leaderboard"`
	PreviousLeaderboard []LeaderboardEntry `json:"previous_leaderboard"`
	IsFinal             bool               `json:"is_final"`
}

type PodiumEvent struct {
	EventHeader
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	TeamLeaderboard []TeamEntry        `json:"team_leaderboard"`
}

type RoomResetEvent struct {
	EventHeader
	PlayerCount int             `json:"player_count"`
	Players     []PlayerSummary `json:"players"`
	TimeLimit   int             `json:"time_limit"`
}

type OrganizerDisconnectedEvent struct {
	EventHeader
	GraceSeconds int `json:"grace_seconds"`
}

// OrganizerReconnectedEvent carries the full state projection so the organizer
// UI can resynchronize. CorrectIndex is only meaningful during a question.
type OrganizerReconnectedEvent struct {
	EventHeader
	RoomCode       string             `json:"room_code"`
	QuizTitle      string             `json:"quiz_title"`
	QuestionNumber int                `json:"question_number,omitempty"`
	TotalQuestions int                `json:"total_questions"`
	TimeRemaining  int                `json:"time_remaining,omitempty"`
	Answered       int                `json:"answered"`
	PlayerCount    int                `json:"player_count"`
	Players        []PlayerSummary    `json:"players"`
	Leaderboard    []LeaderboardEntry `json:"leaderboard"`
	Question       *QuestionPayload   `json:"question,omitempty"`
	CorrectIndex   int                `json:"correct_index"`
}

type HostReconnectedEvent struct {
	EventHeader
}

type RoomClosedEvent struct {
	EventHeader
	Reason string `json:"reason"`
}

type KickedEvent struct {
	EventHeader
	Reason string `json:"reason"`
}

type ErrorEvent struct {
	EventHeader
	Message string `json:"message"`
}
