// File: game/registry.go
package game

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lguibr/quizcast/utils"
)

// PowerUp is a one-shot per-player modifier.
type PowerUp string

const (
	PowerUpDoublePoints PowerUp = "double_points"
	PowerUpFiftyFifty   PowerUp = "fifty_fifty"
)

// Participant is one scoring player. The record survives disconnects; only
// the connection handle changes on reconnect or takeover.
type Participant struct {
	Nickname   string
	Avatar     string
	Team       string
	Score      int
	Streak     int
	PowerUps   map[PowerUp]bool // pending (unconsumed) power-ups
	Multiplier float64          // active multiplier for the current question
	PrevRank   int              // 1-based rank after the previous question, 0 = none yet
	Conn       Conn             // nil while disconnected
	Connected  bool
	LastSeen   time.Time
}

func freshPowerUps() map[PowerUp]bool {
	return map[PowerUp]bool{
		PowerUpDoublePoints: true,
		PowerUpFiftyFifty:   true,
	}
}

// ConsumePowerUp marks a pending power-up as used. Returns false if the
// participant no longer has it.
func (p *Participant) ConsumePowerUp(pu PowerUp) bool {
	if !p.PowerUps[pu] {
		return false
	}
	p.PowerUps[pu] = false
	return true
}

// Registry maps nickname to participant, preserving insertion order. It is
// owned by a single room actor and needs no locking.
type Registry struct {
	order  []string
	byNick map[string]*Participant
	max    int
}

// NewRegistry creates a registry admitting at most max players.
func NewRegistry(max int) *Registry {
	return &Registry{
		byNick: make(map[string]*Participant),
		max:    max,
	}
}

// ValidateIdentity trims and checks the join identity fields, returning the
// trimmed nickname. Nickname must be 1..20 code points after trim.
func ValidateIdentity(nickname, avatar, team string) (string, error) {
	nick := strings.TrimSpace(nickname)
	if nick == "" {
		return "", fmt.Errorf("nickname must not be empty")
	}
	if utf8.RuneCountInString(nick) > utils.MaxNicknameLength {
		return "", fmt.Errorf("nickname exceeds %d characters", utils.MaxNicknameLength)
	}
	if utf8.RuneCountInString(avatar) > utils.MaxAvatarLength {
		return "", fmt.Errorf("avatar exceeds %d characters", utils.MaxAvatarLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(team)) > utils.MaxTeamNameLength {
		return "", fmt.Errorf("team name exceeds %d characters", utils.MaxTeamNameLength)
	}
	return nick, nil
}

// Upsert adds a participant or reattaches an existing one. On nickname
// collision the new connection wins: the previous live handle is returned as
// displaced so the caller can notify and close it. wasReconnect reports
// whether the nickname already existed.
func (r *Registry) Upsert(nick, avatar, team string, conn Conn, now time.Time) (p *Participant, wasReconnect bool, displaced Conn, err error) {
	if existing, ok := r.byNick[nick]; ok {
		if existing.Connected && existing.Conn != nil && existing.Conn != conn {
			displaced = existing.Conn
		}
		existing.Conn = conn
		existing.Connected = true
		existing.LastSeen = now
		if avatar != "" {
			existing.Avatar = avatar
		}
		return existing, true, displaced, nil
	}

	if r.max > 0 && len(r.byNick) >= r.max {
		return nil, false, nil, ErrRoomFull
	}

	p = &Participant{
		Nickname:   nick,
		Avatar:     avatar,
		Team:       strings.TrimSpace(team),
		PowerUps:   freshPowerUps(),
		Multiplier: 1.0,
		Conn:       conn,
		Connected:  true,
		LastSeen:   now,
	}
	r.byNick[nick] = p
	r.order = append(r.order, nick)
	return p, false, nil, nil
}

// Detach marks a participant disconnected, but only when the closing handle is
// still the current one. A late close from a superseded connection must not
// knock the replacement offline.
func (r *Registry) Detach(nick string, conn Conn, now time.Time) bool {
	p, ok := r.byNick[nick]
	if !ok || p.Conn != conn {
		return false
	}
	p.Conn = nil
	p.Connected = false
	p.LastSeen = now
	return true
}

// Remove deletes the participant record entirely.
func (r *Registry) Remove(nick string) {
	if _, ok := r.byNick[nick]; !ok {
		return
	}
	delete(r.byNick, nick)
	for i, n := range r.order {
		if n == nick {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ByNick returns the participant for a nickname, or nil.
func (r *Registry) ByNick(nick string) *Participant { return r.byNick[nick] }

// List returns all participants in insertion order.
func (r *Registry) List() []*Participant {
	out := make([]*Participant, 0, len(r.order))
	for _, nick := range r.order {
		out = append(out, r.byNick[nick])
	}
	return out
}

// Len returns the number of participant records.
func (r *Registry) Len() int { return len(r.byNick) }

// ConnectedCount returns the number of participants with a live connection.
func (r *Registry) ConnectedCount() int {
	n := 0
	for _, p := range r.byNick {
		if p.Connected {
			n++
		}
	}
	return n
}

// NickByConn finds the participant currently bound to a connection.
func (r *Registry) NickByConn(conn Conn) (string, bool) {
	for _, p := range r.byNick {
		if p.Conn == conn {
			return p.Nickname, true
		}
	}
	return "", false
}

// Teams groups participants by team tag, skipping the untagged.
func (r *Registry) Teams() map[string][]*Participant {
	teams := make(map[string][]*Participant)
	for _, nick := range r.order {
		p := r.byNick[nick]
		if p.Team == "" {
			continue
		}
		teams[p.Team] = append(teams[p.Team], p)
	}
	return teams
}

// ResetScores zeroes scores, streaks and rank history and restores power-ups.
// Team tags and connections are kept.
func (r *Registry) ResetScores() {
	for _, p := range r.byNick {
		p.Score = 0
		p.Streak = 0
		p.Multiplier = 1.0
		p.PrevRank = 0
		p.PowerUps = freshPowerUps()
	}
}

// ResetMultipliers restores every participant's active multiplier to 1.0.
// Called at question start.
func (r *Registry) ResetMultipliers() {
	for _, p := range r.byNick {
		p.Multiplier = 1.0
	}
}
