// File: game/commands.go
package game

import (
	"encoding/json"
	"fmt"
)

// --- Inbound command catalog (client -> server) ---
// The connection adapter decodes each frame into one of these and posts it to
// the room actor; the room rejects commands that are invalid for the sender's
// role or the current state.

const (
	CmdJoin         = "JOIN"
	CmdAnswer       = "ANSWER"
	CmdUsePowerUp   = "USE_POWER_UP"
	CmdStartGame    = "START_GAME"
	CmdNextQuestion = "NEXT_QUESTION"
	CmdEndQuiz      = "END_QUIZ"
	CmdResetRoom    = "RESET_ROOM"
	CmdSetTimeLimit = "SET_TIME_LIMIT"
)

type commandHeader struct {
	Type string `json:"type"`
}

type JoinCommand struct {
	Nickname string `json:"nickname"`
	Team     string `json:"team"`
	Avatar   string `json:"avatar"`
}

type AnswerCommand struct {
	AnswerIndex int `json:"answer_index"`
}

type UsePowerUpCommand struct {
	PowerUp PowerUp `json:"power_up"`
}

type StartGameCommand struct{}

type NextQuestionCommand struct{}

type EndQuizCommand struct{}

type ResetRoomCommand struct {
	QuizData  json.RawMessage `json:"quiz_data"`
	TimeLimit int             `json:"time_limit"`
}

type SetTimeLimitCommand struct {
	TimeLimit int `json:"time_limit"`
}

// ParseCommand decodes a raw frame into a typed command. A frame that is not
// JSON, has no type, or carries an unknown type is a MalformedFrame.
func ParseCommand(data []byte) (interface{}, error) {
	var header commandHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch header.Type {
	case CmdJoin:
		var cmd JoinCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return cmd, nil
	case CmdAnswer:
		var cmd AnswerCommand
		cmd.AnswerIndex = -1
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return cmd, nil
	case CmdUsePowerUp:
		var cmd UsePowerUpCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return cmd, nil
	case CmdStartGame:
		return StartGameCommand{}, nil
	case CmdNextQuestion:
		return NextQuestionCommand{}, nil
	case CmdEndQuiz:
		return EndQuizCommand{}, nil
	case CmdResetRoom:
		var cmd ResetRoomCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return cmd, nil
	case CmdSetTimeLimit:
		var cmd SetTimeLimitCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return cmd, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, header.Type)
	}
}
