// File: game/leaderboard.go
package game

import (
	"sort"
	"time"
)

// answerRecord is the per-question ledger entry for one participant. There is
// at most one per (question, nickname); recomputing scores from these records
// must reproduce the leaderboard.
type answerRecord struct {
	OptionIndex int
	At          time.Time
	Correct     bool
	Points      int
	Multiplier  float64
}

// rankParticipants orders by score descending, nickname ascending. Positions
// are 1-based.
func rankParticipants(participants []*Participant) []*Participant {
	ranked := make([]*Participant, len(participants))
	copy(ranked, participants)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Nickname < ranked[j].Nickname
	})
	return ranked
}

// computeLeaderboard builds leaderboard rows against a previous-rank snapshot.
// RankChange is previous minus new, so positive means the player rose; a
// participant absent from the snapshot gets a zero change.
func computeLeaderboard(participants []*Participant, prevRanks map[string]int) []LeaderboardEntry {
	ranked := rankParticipants(participants)
	entries := make([]LeaderboardEntry, len(ranked))
	for i, p := range ranked {
		rank := i + 1
		change := 0
		if prev, ok := prevRanks[p.Nickname]; ok && prev > 0 {
			change = prev - rank
		}
		entries[i] = LeaderboardEntry{
			Nickname:   p.Nickname,
			Avatar:     p.Avatar,
			Score:      p.Score,
			Rank:       rank,
			RankChange: change,
			Streak:     p.Streak,
		}
	}
	return entries
}

// snapshotRanks maps nickname to 1-based rank for the given ordering.
func snapshotRanks(entries []LeaderboardEntry) map[string]int {
	ranks := make(map[string]int, len(entries))
	for _, e := range entries {
		ranks[e.Nickname] = e.Rank
	}
	return ranks
}

// computeTeamLeaderboard sums member scores per team tag, ordered by score
// descending then team name ascending.
func computeTeamLeaderboard(teams map[string][]*Participant) []TeamEntry {
	entries := make([]TeamEntry, 0, len(teams))
	for team, members := range teams {
		total := 0
		for _, p := range members {
			total += p.Score
		}
		entries = append(entries, TeamEntry{Team: team, Score: total, Players: len(members)})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Team < entries[j].Team
	})
	return entries
}
